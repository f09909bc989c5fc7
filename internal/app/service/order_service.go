package service

import (
	"context"
	"errors"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/internal/app/repository"
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/carpore/carpore-backend/pkg/util"
	"gorm.io/gorm"
)

const createOrderAttempts = 3

var (
	ErrOrderNotFound       = repository.ErrOrderNotFound
	ErrOrderNotCancellable = errors.New("only pending, unpaid orders can be cancelled")
)

type OrderService interface {
	CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error)
	UpdateOrderPayment(ctx context.Context, orderID uint, update model.PaymentUpdate) (*model.Order, error)
	GetUserOrders(ctx context.Context, userID uint) ([]model.Order, error)
	GetOrderByID(ctx context.Context, userID, orderID uint) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, userID uint, orderNumber string) (*model.Order, error)
	CancelOrder(ctx context.Context, userID, orderID uint) (*model.Order, error)
	CancelStaleOrders(ctx context.Context, olderThan time.Duration) (int, error)
}

type orderService struct {
	orderRepo     repository.OrderRepository
	notifications NotificationService
	now           func() time.Time
}

// NewOrderService wraps the order store. notifications may be nil.
func NewOrderService(orderRepo repository.OrderRepository, notifications NotificationService) OrderService {
	return &orderService{
		orderRepo:     orderRepo,
		notifications: notifications,
		now:           time.Now,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	logger.Info("Creating order", map[string]interface{}{
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"total":        order.Total.String(),
	})

	for attempt := 1; ; attempt++ {
		created, err := s.orderRepo.CreateOrder(ctx, order)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt >= createOrderAttempts {
			return nil, &PersistenceError{Op: "create", Err: err}
		}

		// the idempotency key was free, so the order number collided
		previous := order.OrderNumber
		order.OrderNumber = util.RenumberOrder(previous, s.now())
		order.ID = 0
		for i := range order.Items {
			order.Items[i].ID = 0
			order.Items[i].OrderID = 0
		}
		logger.Warn("Order number collision, retrying", map[string]interface{}{
			"previous":     previous,
			"order_number": order.OrderNumber,
		})
	}
}

func (s *orderService) UpdateOrderPayment(ctx context.Context, orderID uint, update model.PaymentUpdate) (*model.Order, error) {
	order, err := s.orderRepo.UpdateOrderPayment(ctx, orderID, update, s.now().UTC())
	if err != nil {
		logger.Error("Failed to record order payment", err, map[string]interface{}{
			"order_id":   orderID,
			"payment_id": update.PaymentID,
		})
		return nil, &PersistenceError{Op: "update_payment", Err: err}
	}

	logger.Info("Order payment recorded", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"payment_id":   update.PaymentID,
	})
	return order, nil
}

func (s *orderService) GetUserOrders(ctx context.Context, userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return orders, nil
}

func (s *orderService) owned(order *model.Order, err error, userID uint) (*model.Order, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, &PersistenceError{Op: "find", Err: err}
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	return s.owned(order, err, userID)
}

func (s *orderService) GetOrderByNumber(ctx context.Context, userID uint, orderNumber string) (*model.Order, error) {
	order, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	return s.owned(order, err, userID)
}

func (s *orderService) CancelOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.GetOrderByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	changed, err := s.orderRepo.MarkCancelled(ctx, order.ID, s.now().UTC())
	if err != nil {
		return nil, &PersistenceError{Op: "cancel", Err: err}
	}
	if !changed {
		logger.Warn("Order cancel rejected", map[string]interface{}{
			"order_id":       order.ID,
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
		})
		return nil, ErrOrderNotCancellable
	}

	order, err = s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "find", Err: err}
	}
	logger.Info("Order cancelled by customer", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      userID,
	})
	if s.notifications != nil {
		_ = s.notifications.NotifyOrderCancelled(order)
	}
	return order, nil
}

// CancelStaleOrders cancels pending orders older than the cutoff whose payment
// never completed, and returns how many were cancelled
func (s *orderService) CancelStaleOrders(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.orderRepo.FindStalePending(ctx, cutoff, 500)
	if err != nil {
		return 0, &PersistenceError{Op: "find_stale", Err: err}
	}

	cancelled := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return cancelled, err
		}
		changed, err := s.orderRepo.MarkCancelled(ctx, stale[i].ID, s.now().UTC())
		if err != nil {
			logger.Error("Failed to cancel stale order", err, map[string]interface{}{
				"order_id": stale[i].ID,
			})
			continue
		}
		if changed {
			cancelled++
		}
	}

	if cancelled > 0 {
		logger.Info("Stale pending orders cancelled", map[string]interface{}{
			"count":  cancelled,
			"cutoff": cutoff.Format(time.RFC3339),
		})
	}
	return cancelled, nil
}
