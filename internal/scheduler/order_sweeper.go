package scheduler

import (
	"context"
	"time"

	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/carpore/carpore-backend/pkg/metrics"
	"github.com/robfig/cron/v3"
)

const (
	JobCancelStaleOrders = "cancel_stale_orders"
	JobPruneAttempts     = "prune_checkout_attempts"
)

// StaleOrderCanceller cancels pending orders whose payment never completed
type StaleOrderCanceller interface {
	CancelStaleOrders(ctx context.Context, olderThan time.Duration) (int, error)
}

// AttemptPruner forgets finished checkout attempts
type AttemptPruner interface {
	Prune(olderThan time.Duration) int
}

// OrderSweeper periodically cancels orphaned pending orders and drops old
// checkout attempts from memory
type OrderSweeper struct {
	cron     *cron.Cron
	orders   StaleOrderCanceller
	attempts AttemptPruner
	metrics  *metrics.CronJobMetrics
	spec     string
	ttl      time.Duration
	timeout  time.Duration
}

// NewOrderSweeper runs on spec (standard cron or "@every 15m"). Orders
// pending longer than ttl are cancelled. attempts and m may be nil.
func NewOrderSweeper(orders StaleOrderCanceller, attempts AttemptPruner, m *metrics.CronJobMetrics, spec string, ttl time.Duration) *OrderSweeper {
	return &OrderSweeper{
		cron:     cron.New(),
		orders:   orders,
		attempts: attempts,
		metrics:  m,
		spec:     spec,
		ttl:      ttl,
		timeout:  2 * time.Minute,
	}
}

func (s *OrderSweeper) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		logger.Error("Failed to add cron job for order sweeper", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Order sweeper started", map[string]interface{}{
		"spec": s.spec,
		"ttl":  s.ttl.String(),
	})
	return nil
}

// Stop waits for a running sweep to finish
func (s *OrderSweeper) Stop() {
	logger.Info("Stopping order sweeper...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Order sweeper stopped", nil)
}

// RunOnce performs one sweep
func (s *OrderSweeper) RunOnce(ctx context.Context) {
	s.run(JobCancelStaleOrders, func() (int, error) {
		return s.orders.CancelStaleOrders(ctx, s.ttl)
	})
	if s.attempts != nil {
		s.run(JobPruneAttempts, func() (int, error) {
			return s.attempts.Prune(s.ttl), nil
		})
	}
}

func (s *OrderSweeper) run(job string, fn func() (int, error)) {
	start := time.Now()
	n, err := fn()
	s.metrics.ObserveDuration(job, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(job)
		logger.Error("Scheduled job failed", err, map[string]interface{}{
			"job": job,
		})
		return
	}
	s.metrics.IncSuccess(job)
	s.metrics.AddAffected(job, n)

	logger.Debug("Scheduled job finished", map[string]interface{}{
		"job":      job,
		"affected": n,
		"took_ms":  time.Since(start).Milliseconds(),
	})
}
