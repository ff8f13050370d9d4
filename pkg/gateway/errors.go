package gateway

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuotaExceeded is matched by every QuotaExceededError.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrClosed is returned by Execute after Close.
	ErrClosed = errors.New("gateway is closed")
)

// QuotaExceededError is returned when admission refuses a call and no
// fallback model can serve it.
type QuotaExceededError struct {
	// Reason names the breached ceiling or the condition that opened the
	// breaker, such as "daily quota" or "upstream rate limit".
	Reason string

	// Model is the requested model.
	Model string

	// RetryAfter is how long the caller should wait before retrying.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("quota exceeded for model %q: %s (retry after %s)", e.Model, e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("quota exceeded for model %q: %s", e.Model, e.Reason)
}

// Unwrap returns ErrQuotaExceeded so errors.Is works on wrapped errors.
func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// IsQuotaExceeded reports whether err is a quota refusal.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// RetryAfterOf returns the retry hint of a quota refusal, or 0.
func RetryAfterOf(err error) time.Duration {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe.RetryAfter
	}
	return 0
}
