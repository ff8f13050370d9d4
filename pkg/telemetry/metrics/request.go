package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes recorded on tollgate_requests_total.
const (
	OutcomeSuccess     = "success"
	OutcomeCacheHit    = "cache_hit"
	OutcomeFallback    = "fallback"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// RequestMetrics tracks governed calls.
//
// Metrics:
//   - tollgate_requests_total: calls by model and outcome
//   - tollgate_request_duration_seconds: end-to-end call duration
//   - tollgate_units_total: recorded units by model and kind (prompt, completion)
//   - tollgate_cost_usd_total: recorded spend by model
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	unitsTotal      *prometheus.CounterVec
	costTotal       *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(namespace string, registry prometheus.Registerer) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of governed calls by outcome",
			},
			[]string{"model", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of governed calls in seconds",
				// Inference latencies (100ms - 30s)
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"model"},
		),

		unitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_total",
				Help:      "Total units recorded against the budget",
			},
			[]string{"model", "kind"},
		),

		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_usd_total",
				Help:      "Total spend recorded against the budget in USD",
			},
			[]string{"model"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.unitsTotal,
		rm.costTotal,
	)

	return rm
}

// RecordCall records the outcome and duration of one call.
func (rm *RequestMetrics) RecordCall(model, outcome string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(model, outcome).Inc()
	rm.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordUsage records units and spend charged to the budget.
func (rm *RequestMetrics) RecordUsage(model string, promptUnits, completionUnits int, cost float64) {
	if promptUnits > 0 {
		rm.unitsTotal.WithLabelValues(model, "prompt").Add(float64(promptUnits))
	}
	if completionUnits > 0 {
		rm.unitsTotal.WithLabelValues(model, "completion").Add(float64(completionUnits))
	}
	if cost > 0 {
		rm.costTotal.WithLabelValues(model).Add(cost)
	}
}
