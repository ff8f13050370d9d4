package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// breakerStates are the values of the state label on tollgate_breaker_state.
var breakerStates = []string{"closed", "open", "half_open"}

// BudgetMetrics tracks budget consumption and the circuit breaker.
//
// Metrics:
//   - tollgate_budget_used: consumption per window and kind
//   - tollgate_budget_limit: configured ceiling per window and kind
//   - tollgate_budget_usage_ratio: used / limit per window and kind
//   - tollgate_breaker_state: 1 for the current state, 0 otherwise
//   - tollgate_breaker_transitions_total: transitions by from, to and reason
//   - tollgate_alerts_total: alert deliveries by kind and result
//   - tollgate_persistence_errors_total: failed store operations
type BudgetMetrics struct {
	used              *prometheus.GaugeVec
	limit             *prometheus.GaugeVec
	ratio             *prometheus.GaugeVec
	breakerState      *prometheus.GaugeVec
	transitions       *prometheus.CounterVec
	alertsTotal       *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
}

// NewBudgetMetrics creates and registers budget metrics with the provided registry.
func NewBudgetMetrics(namespace string, registry prometheus.Registerer) *BudgetMetrics {
	window := []string{"window", "kind"}
	bm := &BudgetMetrics{
		used: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_used",
			Help:      "Consumption in the current window (units or USD)",
		}, window),
		limit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_limit",
			Help:      "Configured ceiling for the window (units or USD)",
		}, window),
		ratio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_usage_ratio",
			Help:      "Fraction of the ceiling consumed",
		}, window),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state (1 = current)",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"from", "to", "reason"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert delivery attempts by kind and result",
		}, []string{"kind", "result"}),
		persistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed persistence operations",
		}, []string{"op"}),
	}

	registry.MustRegister(
		bm.used,
		bm.limit,
		bm.ratio,
		bm.breakerState,
		bm.transitions,
		bm.alertsTotal,
		bm.persistenceErrors,
	)

	return bm
}

// SetUsage sets the gauges of one ceiling.
func (bm *BudgetMetrics) SetUsage(window, kind string, used, limit float64) {
	bm.used.WithLabelValues(window, kind).Set(used)
	bm.limit.WithLabelValues(window, kind).Set(limit)
	if limit > 0 {
		bm.ratio.WithLabelValues(window, kind).Set(used / limit)
	}
}

// SetBreakerState marks state as current.
func (bm *BudgetMetrics) SetBreakerState(state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		bm.breakerState.WithLabelValues(s).Set(v)
	}
}

// RecordTransition counts one breaker transition.
func (bm *BudgetMetrics) RecordTransition(from, to, reason string) {
	bm.transitions.WithLabelValues(from, to, reason).Inc()
}

// RecordAlert counts one alert delivery attempt.
func (bm *BudgetMetrics) RecordAlert(kind string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	bm.alertsTotal.WithLabelValues(kind, result).Inc()
}

// RecordPersistenceError counts one failed store operation.
func (bm *BudgetMetrics) RecordPersistenceError(op string) {
	bm.persistenceErrors.WithLabelValues(op).Inc()
}
