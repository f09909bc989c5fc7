package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carpore"

// CheckoutMetrics counts checkout state transitions and attempt outcomes
type CheckoutMetrics struct {
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_transitions_total",
		Help:      "Checkout state machine transitions by target state.",
	}, []string{"state"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_attempts_total",
		Help:      "Finished checkout attempts by final state and error kind.",
	}, []string{"state", "error_kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_seconds",
		Help:      "Time from attempt start to its final state.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900},
	}, []string{"state"})
	reg.MustRegister(transitions, outcomes, duration)
	return &CheckoutMetrics{
		transitions: transitions,
		outcomes:    outcomes,
		duration:    duration,
	}
}

func (m *CheckoutMetrics) IncTransition(state string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(state)).Inc()
}

// ObserveOutcome records a finished attempt. errorKind is empty on success.
func (m *CheckoutMetrics) ObserveOutcome(state, errorKind string, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	if errorKind == "" {
		errorKind = "none"
	}
	m.outcomes.WithLabelValues(normalizeLabel(state), errorKind).Inc()
	m.duration.WithLabelValues(normalizeLabel(state)).Observe(elapsed.Seconds())
}
