package alerts

import (
	"context"
	"time"

	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
)

// Kind identifies the type of an alert.
type Kind string

const (
	// KindUsageThreshold is the consolidated alert for ceilings at or above
	// the alert threshold.
	KindUsageThreshold Kind = "usage_threshold"

	// KindCircuitTransition reports a circuit breaker state change.
	KindCircuitTransition Kind = "circuit_transition"
)

// Alert is one notification delivered to a Sink.
type Alert struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`

	// Threshold is the configured alert percentage (usage alerts only).
	Threshold float64 `json:"threshold,omitempty"`

	// Breaches lists every ceiling at or above the threshold (usage alerts only).
	Breaches []budget.WindowUsage `json:"breaches,omitempty"`

	// Transition is the breaker state change (transition alerts only).
	Transition *breaker.Transition `json:"transition,omitempty"`
}

// Sink receives alerts.
type Sink interface {
	Notify(ctx context.Context, alert Alert) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, alert Alert) error

// Notify calls f(ctx, alert).
func (f SinkFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}
