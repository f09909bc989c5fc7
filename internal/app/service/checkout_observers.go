package service

import (
	"github.com/carpore/carpore-backend/pkg/logger"
	"github.com/carpore/carpore-backend/pkg/metrics"
)

const eventCheckoutState = "checkout_state"

// NewMetricsObserver feeds transitions and final outcomes into prometheus
func NewMetricsObserver(m *metrics.CheckoutMetrics) CheckoutObserver {
	return ObserverFunc(func(a CheckoutAttempt) {
		m.IncTransition(string(a.State))
		if a.Finished {
			m.ObserveOutcome(string(a.State), a.ErrorKind, a.UpdatedAt.Sub(a.StartedAt))
		}
	})
}

// NewPushObserver sends each snapshot to the shopper's open sockets. Guest
// attempts are not pushed.
func NewPushObserver(pusher UserPusher) CheckoutObserver {
	return ObserverFunc(func(a CheckoutAttempt) {
		if a.UserID == 0 {
			return
		}
		if err := pusher.SendToUser(a.UserID, eventCheckoutState, a); err != nil {
			logger.Debug("Checkout state not pushed", map[string]interface{}{
				"attempt_id": a.ID,
				"error":      err.Error(),
			})
		}
	})
}
