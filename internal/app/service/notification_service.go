package service

import (
	"errors"
	"fmt"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/pkg/logger"
)

var ErrNotificationNotFound = errors.New("notification not found")

// UserPusher delivers realtime events to a signed-in user's open sessions
type UserPusher interface {
	SendToUser(userID uint, eventType string, data interface{}) error
}

type NotificationService interface {
	GetNotifications(userID uint, unreadOnly bool, page, pageSize int) ([]model.Notification, int64, error)
	GetUnreadCount(userID uint) (int64, error)
	MarkAsRead(userID, notificationID uint) error
	MarkAllAsRead(userID uint) error
	DeleteNotification(userID, notificationID uint) error

	NotifyOrderConfirmed(order *model.Order) error
	NotifyOrderCancelled(order *model.Order) error
	NotifyPaymentNeedsReview(order *model.Order, paymentID string) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	prefs  repository.PreferencesRepository
	pusher UserPusher
}

// NewNotificationService stores notifications and pushes them to online users.
// prefs and pusher may be nil.
func NewNotificationService(repo repository.NotificationRepository, prefs repository.PreferencesRepository, pusher UserPusher) NotificationService {
	return &notificationService{repo: repo, prefs: prefs, pusher: pusher}
}

func (s *notificationService) GetNotifications(userID uint, unreadOnly bool, page, pageSize int) ([]model.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.FindByUserID(userID, unreadOnly, pageSize, (page-1)*pageSize)
}

func (s *notificationService) GetUnreadCount(userID uint) (int64, error) {
	return s.repo.UnreadCount(userID)
}

func (s *notificationService) MarkAsRead(userID, notificationID uint) error {
	ok, err := s.repo.MarkAsRead(userID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(userID uint) error {
	return s.repo.MarkAllAsRead(userID)
}

func (s *notificationService) DeleteNotification(userID, notificationID uint) error {
	ok, err := s.repo.Delete(userID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

// wantsOrderUpdates honours the order_updates preference; lookups that fail default to sending
func (s *notificationService) wantsOrderUpdates(userID uint) bool {
	if s.prefs == nil {
		return true
	}
	prefs, err := s.prefs.FindByUserID(userID)
	if err != nil {
		return true
	}
	return prefs.OrderUpdates
}

func (s *notificationService) create(n *model.Notification) error {
	if err := s.repo.Create(n); err != nil {
		logger.Error("Failed to create notification", err, map[string]interface{}{
			"user_id": n.UserID,
			"type":    n.Type,
		})
		return err
	}
	if s.pusher != nil {
		if err := s.pusher.SendToUser(n.UserID, "notification", n); err != nil {
			logger.Warn("Failed to push notification", map[string]interface{}{
				"user_id": n.UserID,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

func (s *notificationService) NotifyOrderConfirmed(order *model.Order) error {
	if order.UserID == 0 || !s.wantsOrderUpdates(order.UserID) {
		return nil
	}
	orderID := order.ID
	return s.create(&model.Notification{
		UserID:  order.UserID,
		Type:    model.NotificationTypeOrderConfirmed,
		Title:   "Order confirmed",
		Message: fmt.Sprintf("Your order %s for ₹%s has been placed successfully.", order.OrderNumber, order.Total.String()),
		Link:    fmt.Sprintf("/orders/%d", order.ID),
		OrderID: &orderID,
	})
}

func (s *notificationService) NotifyOrderCancelled(order *model.Order) error {
	if order.UserID == 0 || !s.wantsOrderUpdates(order.UserID) {
		return nil
	}
	orderID := order.ID
	return s.create(&model.Notification{
		UserID:  order.UserID,
		Type:    model.NotificationTypeOrderCancelled,
		Title:   "Order cancelled",
		Message: fmt.Sprintf("Order %s was cancelled. No payment was taken.", order.OrderNumber),
		Link:    fmt.Sprintf("/orders/%d", order.ID),
		OrderID: &orderID,
	})
}

// NotifyPaymentNeedsReview is sent regardless of preferences; money was taken
func (s *notificationService) NotifyPaymentNeedsReview(order *model.Order, paymentID string) error {
	if order.UserID == 0 {
		return nil
	}
	orderID := order.ID
	return s.create(&model.Notification{
		UserID: order.UserID,
		Type:   model.NotificationTypePaymentNeedsReview,
		Title:  "Payment received, confirmation pending",
		Message: fmt.Sprintf(
			"We received payment %s but could not confirm order %s yet. Our team will reconcile it; contact support if you have questions.",
			paymentID, order.OrderNumber,
		),
		Link:    fmt.Sprintf("/orders/%d", order.ID),
		OrderID: &orderID,
	})
}
