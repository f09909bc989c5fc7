package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/carpore/carpore-backend/internal/app/service"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

// GetOrders returns the signed-in user's orders, newest first
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	orders, err := ctrl.orderService.GetUserOrders(c.Request.Context(), userID)
	if err != nil {
		log.Error("Failed to fetch orders", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "Failed to fetch orders")
		return
	}

	log.Info("Orders fetched successfully", map[string]interface{}{
		"user_id": userID,
		"count":   len(orders),
	})
	c.JSON(http.StatusOK, gin.H{
		"data":  orders,
		"count": len(orders),
	})
}

// GetOrderByID returns one order
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrderByID(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrderByID(c.Request.Context(), userID, id)
	if err != nil {
		ctrl.respondOrderError(c, err, "Failed to fetch order")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": order,
	})
}

// GetOrderByNumber looks an order up by its CP-YYYY-NNNNNN number
// GET /api/v1/orders/number/:order_number
func (ctrl *OrderController) GetOrderByNumber(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	order, err := ctrl.orderService.GetOrderByNumber(c.Request.Context(), userID, c.Param("order_number"))
	if err != nil {
		ctrl.respondOrderError(c, err, "Failed to fetch order")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": order,
	})
}

// CancelOrder cancels a pending, unpaid order
// POST /api/v1/orders/:id/cancel
func (ctrl *OrderController) CancelOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.CancelOrder(c.Request.Context(), userID, id)
	if err != nil {
		ctrl.respondOrderError(c, err, "Failed to cancel order")
		return
	}

	log.Info("Order cancelled", map[string]interface{}{
		"user_id":      userID,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled",
		"data":    order,
	})
}

func (ctrl *OrderController) respondOrderError(c *gin.Context, err error, message string) {
	var persistenceErr *service.PersistenceError
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
	case errors.Is(err, service.ErrOrderNotCancellable):
		apperrors.Conflict(c, apperrors.OrderNotCancellable, "Only unpaid pending orders can be cancelled")
	case errors.As(err, &persistenceErr):
		middleware.GetLoggerFromContext(c).Error(message, err)
		apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.OrderPersistenceFailed, "Orders are temporarily unavailable. Please try again")
	default:
		middleware.GetLoggerFromContext(c).Error(message, err)
		apperrors.InternalError(c, message)
	}
}

// parseIDParam reads a numeric path id, answering 400 when malformed
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid ID format", map[string]interface{}{
			name: raw,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
