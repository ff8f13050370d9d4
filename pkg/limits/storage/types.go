package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
)

// Backend defines the interface for gateway state persistence.
// Implementations must be thread-safe and support concurrent access.
// Every failure is reported as a *PersistenceError.
type Backend interface {
	// LoadMetrics returns the persisted usage metrics, or nil when none
	// have been saved.
	LoadMetrics(ctx context.Context) (*budget.UsageMetrics, error)

	// SaveMetrics replaces the persisted usage metrics.
	SaveMetrics(ctx context.Context, m budget.UsageMetrics) error

	// LoadCircuitState returns the persisted breaker state, or nil when none
	// has been saved.
	LoadCircuitState(ctx context.Context) (*breaker.Snapshot, error)

	// SaveCircuitState replaces the persisted breaker state.
	SaveCircuitState(ctx context.Context, s breaker.Snapshot) error

	// AppendUsageRecord adds one entry to the audit log.
	AppendUsageRecord(ctx context.Context, r UsageRecord) error

	// ListUsageRecords returns records with Timestamp at or after since,
	// oldest first. A limit of 0 or less returns every match.
	ListUsageRecords(ctx context.Context, since time.Time, limit int) ([]UsageRecord, error)

	// PruneUsageRecords deletes records older than before and returns how
	// many were removed.
	PruneUsageRecords(ctx context.Context, before time.Time) (int, error)

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// UsageRecord is one append-only audit log entry for a governed call.
type UsageRecord struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// RequestedModel is the model the caller asked for.
	RequestedModel string `json:"requested_model"`

	// Model is the model that served the call; it differs from
	// RequestedModel when the fallback was used.
	Model string `json:"model"`

	PromptUnits     int     `json:"prompt_units"`
	CompletionUnits int     `json:"completion_units"`
	Cost            float64 `json:"cost"`

	// Estimated is true when the API reported no usage and the pre-flight
	// estimate was recorded instead.
	Estimated bool `json:"estimated"`

	Fallback  bool   `json:"fallback"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("storage backend is closed")

// PersistenceError reports a failed storage operation.
type PersistenceError struct {
	// Op is the backend operation, such as "save_metrics".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
