package repository

import (
	"context"
	"errors"
	"time"

	"github.com/carpore/carpore-backend/internal/app/model"
	"github.com/carpore/carpore-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderAlreadyPaid is returned when a different payment already settled the order
	ErrOrderAlreadyPaid = errors.New("order already paid with a different payment")
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error)
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, error)
	FindByUserID(ctx context.Context, userID uint) ([]model.Order, error)
	UpdateOrderPayment(ctx context.Context, id uint, update model.PaymentUpdate, paidAt time.Time) (*model.Order, error)
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]model.Order, error)
	MarkCancelled(ctx context.Context, id uint, at time.Time) (bool, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
	SumPaidByUser(ctx context.Context, userID uint) (model.Money, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

// CreateOrder inserts the order with its items. An order carrying an
// idempotency key that is already stored is not inserted again; the stored
// order is returned instead.
func (r *orderRepository) CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	logger.Debug("Creating order in database", map[string]interface{}{
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"total":        order.Total.String(),
		"items":        len(order.Items),
	})

	if order.IdempotencyKey != nil {
		existing, err := r.FindByIdempotencyKey(ctx, *order.IdempotencyKey)
		if err == nil {
			logger.Info("Order already exists for idempotency key", map[string]interface{}{
				"order_id":     existing.ID,
				"order_number": existing.OrderNumber,
			})
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && order.IdempotencyKey != nil {
			// lost a race with a concurrent retry of the same attempt
			if existing, findErr := r.FindByIdempotencyKey(ctx, *order.IdempotencyKey); findErr == nil {
				return existing, nil
			}
		}
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"order_number": order.OrderNumber,
			"user_id":      order.UserID,
		})
		return nil, err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	return order, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	if err := r.withItems(ctx).First(&order, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find order by ID", err, map[string]interface{}{
				"order_id": id,
			})
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	if err := r.withItems(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, error) {
	var order model.Order
	if err := r.withItems(ctx).Where("idempotency_key = ?", key).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByUserID returns the user's orders newest first
func (r *orderRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Order, error) {
	logger.Debug("Finding orders by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var orders []model.Order
	if err := r.withItems(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Orders found by user ID in database", map[string]interface{}{
		"user_id": userID,
		"count":   len(orders),
	})
	return orders, nil
}

// UpdateOrderPayment confirms the order under a row lock. Re-applying the same
// payment id is a no-op; a different payment id on a paid order is refused.
func (r *orderRepository) UpdateOrderPayment(ctx context.Context, id uint, update model.PaymentUpdate, paidAt time.Time) (*model.Order, error) {
	logger.Debug("Updating order payment in database", map[string]interface{}{
		"order_id":         id,
		"payment_id":       update.PaymentID,
		"gateway_order_id": update.GatewayOrderID,
	})

	var order model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
			return err
		}

		if order.PaymentStatus == model.PaymentStatusPaid {
			if order.PaymentID == update.PaymentID {
				return nil
			}
			return ErrOrderAlreadyPaid
		}
		if order.Status == model.OrderStatusCancelled {
			logger.Warn("Payment captured for a cancelled order, confirming it", map[string]interface{}{
				"order_id":   id,
				"payment_id": update.PaymentID,
			})
		}

		order.Status = model.OrderStatusConfirmed
		order.PaymentStatus = model.PaymentStatusPaid
		order.PaymentProvider = update.Provider
		order.PaymentID = update.PaymentID
		order.GatewayOrderID = update.GatewayOrderID
		order.PaymentSignature = update.Signature
		order.PaidAt = &paidAt
		order.CancelledAt = nil

		return tx.Model(&order).Select(
			"status", "payment_status", "payment_provider", "payment_id",
			"gateway_order_id", "payment_signature", "paid_at", "cancelled_at",
		).Updates(&order).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		logger.Error("Failed to update order payment in database", err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}

	if err := r.db.WithContext(ctx).Where("order_id = ?", order.ID).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}

	logger.Debug("Order payment updated in database", map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return &order, nil
}

// FindStalePending returns pending orders created before the cutoff, oldest first
func (r *orderRepository) FindStalePending(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	q := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?", model.OrderStatusPending, model.PaymentStatusPending, before).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		logger.Error("Failed to find stale pending orders", err)
		return nil, err
	}
	return orders, nil
}

// MarkCancelled cancels the order only if it is still pending and unpaid.
// It reports whether a row changed.
func (r *orderRepository) MarkCancelled(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, model.OrderStatusPending, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":         model.OrderStatusCancelled,
			"payment_status": model.PaymentStatusFailed,
			"cancelled_at":   at,
		})
	if res.Error != nil {
		logger.Error("Failed to cancel order", res.Error, map[string]interface{}{
			"order_id": id,
		})
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// SumPaidByUser totals paid orders in Go so decimal precision survives every driver
func (r *orderRepository) SumPaidByUser(ctx context.Context, userID uint) (model.Money, error) {
	var totals []model.Money
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ? AND payment_status = ?", userID, model.PaymentStatusPaid).
		Pluck("total", &totals).Error
	if err != nil {
		return model.ZeroMoney(), err
	}
	sum := model.ZeroMoney()
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}
