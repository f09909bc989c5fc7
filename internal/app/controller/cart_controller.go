package controller

import (
	"errors"
	"net/http"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/service"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type CartController struct {
	cartService     service.CartService
	checkoutService service.CheckoutService
}

func NewCartController(cartService service.CartService, checkoutService service.CheckoutService) *CartController {
	return &CartController{
		cartService:     cartService,
		checkoutService: checkoutService,
	}
}

type AddToCartRequest struct {
	ItemID   string `json:"item_id" binding:"required,max=130"`
	Quantity int    `json:"quantity" binding:"omitempty,gte=0"`
}

type UpdateCartRequest struct {
	// Quantity 0 removes the line
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

func cartBody(cart *model.Cart) gin.H {
	return gin.H{
		"items": cart.Items,
		"count": cart.Count(),
		"total": cart.Total(),
	}
}

// cartSession aborts with 400 when CartSession did not run
func cartSession(c *gin.Context) (string, bool) {
	session, ok := middleware.GetCartSession(c)
	if !ok {
		apperrors.BadRequest(c, apperrors.CartSessionMissing, "Cart session is missing")
	}
	return session, ok
}

// GetCart returns the session cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	session, ok := cartSession(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.GetCart(c.Request.Context(), session)
	if err != nil {
		log.Error("Failed to fetch cart", err, map[string]interface{}{
			"session": session,
		})
		apperrors.InternalError(c, "Failed to fetch cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": cartBody(cart),
	})
}

// GetQuote prices the cart the way checkout will
// GET /api/v1/cart/quote
func (ctrl *CartController) GetQuote(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	session, ok := cartSession(c)
	if !ok {
		return
	}

	cart, totals, err := ctrl.checkoutService.Quote(c.Request.Context(), session)
	if err != nil {
		log.Error("Failed to price cart", err, map[string]interface{}{
			"session": session,
		})
		apperrors.InternalError(c, "Failed to price cart")
		return
	}

	body := cartBody(cart)
	body["totals"] = totals
	c.JSON(http.StatusOK, gin.H{
		"data": body,
	})
}

// AddToCart adds a catalog item, incrementing an existing line
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	session, ok := cartSession(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithBindError(c, err)
		return
	}

	cart, err := ctrl.cartService.AddItem(c.Request.Context(), session, req.ItemID, req.Quantity)
	if err != nil {
		ctrl.respondCartError(c, err, req.ItemID)
		return
	}

	log.Info("Item added to cart", map[string]interface{}{
		"item_id":  req.ItemID,
		"quantity": req.Quantity,
		"count":    cart.Count(),
	})
	c.JSON(http.StatusCreated, gin.H{
		"message": "Item added to cart successfully",
		"data":    cartBody(cart),
	})
}

// UpdateCartItem replaces a line quantity. Unknown items leave the cart as is.
// PUT /api/v1/cart/items/:item_id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	session, ok := cartSession(c)
	if !ok {
		return
	}

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithBindError(c, err)
		return
	}

	itemID := c.Param("item_id")
	cart, err := ctrl.cartService.UpdateQuantity(c.Request.Context(), session, itemID, *req.Quantity)
	if err != nil {
		ctrl.respondCartError(c, err, itemID)
		return
	}

	log.Debug("Cart item updated", map[string]interface{}{
		"item_id":  itemID,
		"quantity": *req.Quantity,
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart updated",
		"data":    cartBody(cart),
	})
}

// RemoveCartItem deletes a line
// DELETE /api/v1/cart/items/:item_id
func (ctrl *CartController) RemoveCartItem(c *gin.Context) {
	session, ok := cartSession(c)
	if !ok {
		return
	}

	itemID := c.Param("item_id")
	cart, err := ctrl.cartService.RemoveItem(c.Request.Context(), session, itemID)
	if err != nil {
		ctrl.respondCartError(c, err, itemID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart",
		"data":    cartBody(cart),
	})
}

// ClearCart empties the cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	session, ok := cartSession(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.ClearCart(c.Request.Context(), session); err != nil {
		log.Error("Failed to clear cart", err, map[string]interface{}{
			"session": session,
		})
		apperrors.InternalError(c, "Failed to clear cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared",
		"data":    cartBody(model.NewCart()),
	})
}

// MergeGuestCart moves the X-Cart-Session guest cart into the signed-in cart
// POST /api/v1/cart/merge
func (ctrl *CartController) MergeGuestCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}
	into := middleware.UserCartSession(userID)
	from, _ := middleware.GuestCartSession(c)

	cart, err := ctrl.cartService.MergeCarts(c.Request.Context(), from, into)
	if err != nil {
		log.Error("Failed to merge guest cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "Failed to merge cart")
		return
	}

	log.Info("Guest cart merged", map[string]interface{}{
		"user_id": userID,
		"count":   cart.Count(),
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart merged",
		"data":    cartBody(cart),
	})
}

func (ctrl *CartController) respondCartError(c *gin.Context, err error, itemID string) {
	log := middleware.GetLoggerFromContext(c)
	switch {
	case errors.Is(err, service.ErrCatalogItemNotFound):
		log.Warn("Catalog item not found for cart", map[string]interface{}{
			"item_id": itemID,
		})
		apperrors.NotFound(c, apperrors.CatalogItemNotFound, "Product not found")
	case errors.Is(err, service.ErrCartQuantityTooLarge):
		apperrors.BadRequest(c, apperrors.CartQuantityTooLarge, "Quantity exceeds the limit for one item")
	default:
		log.Error("Cart update failed", err, map[string]interface{}{
			"item_id": itemID,
		})
		apperrors.InternalError(c, "Failed to update cart")
	}
}
