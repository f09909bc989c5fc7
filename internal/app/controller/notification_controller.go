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

type NotificationController struct {
	service service.NotificationService
}

func NewNotificationController(service service.NotificationService) *NotificationController {
	return &NotificationController{
		service: service,
	}
}

// GetNotifications lists notifications with paging
// GET /api/v1/notifications?page=1&page_size=20&unread=true
func (ctrl *NotificationController) GetNotifications(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	unreadOnly := c.Query("unread") == "true"

	notifications, total, err := ctrl.service.GetNotifications(userID, unreadOnly, page, pageSize)
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to fetch notifications", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "Failed to fetch notifications")
		return
	}
	unread, err := ctrl.service.GetUnreadCount(userID)
	if err != nil {
		apperrors.InternalError(c, "Failed to fetch notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":         notifications,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"unread_count": unread,
	})
}

// GetUnreadCount feeds the header badge
// GET /api/v1/notifications/unread-count
func (ctrl *NotificationController) GetUnreadCount(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	unread, err := ctrl.service.GetUnreadCount(userID)
	if err != nil {
		apperrors.InternalError(c, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{"unread_count": unread},
	})
}

// MarkAsRead marks one notification read
// PUT /api/v1/notifications/:id/read
func (ctrl *NotificationController) MarkAsRead(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.service.MarkAsRead(userID, id); err != nil {
		ctrl.respondNotificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Notification marked as read",
	})
}

// MarkAllAsRead clears the badge
// PUT /api/v1/notifications/read-all
func (ctrl *NotificationController) MarkAllAsRead(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.service.MarkAllAsRead(userID); err != nil {
		ctrl.respondNotificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "All notifications marked as read",
	})
}

// DeleteNotification removes one notification
// DELETE /api/v1/notifications/:id
func (ctrl *NotificationController) DeleteNotification(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.service.DeleteNotification(userID, id); err != nil {
		ctrl.respondNotificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Notification deleted",
	})
}

func (ctrl *NotificationController) respondNotificationError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotificationNotFound) {
		apperrors.NotFound(c, apperrors.NotificationNotFound, "Notification not found")
		return
	}
	middleware.GetLoggerFromContext(c).Error("Notification update failed", err)
	apperrors.InternalError(c, "")
}
