package cache

import (
	"context"
	"time"

	"mercator-hq/tollgate/pkg/providers"
)

// Usage is the unit consumption recorded with a cached response.
type Usage struct {
	PromptUnits     int `json:"prompt_units"`
	CompletionUnits int `json:"completion_units"`
}

// Total returns prompt plus completion units.
func (u Usage) Total() int {
	return u.PromptUnits + u.CompletionUnits
}

// Entry is one cached response.
type Entry struct {
	Fingerprint string                        `json:"fingerprint"`
	Model       string                        `json:"model"`
	Response    *providers.CompletionResponse `json:"response"`
	Usage       Usage                         `json:"usage"`
	CreatedAt   time.Time                     `json:"created_at"`
}

// clone returns a copy of e that shares no memory with it.
func (e *Entry) clone() *Entry {
	cp := *e
	cp.Response = e.Response.Clone()
	return &cp
}

// Store holds cache entries keyed by fingerprint. Staleness is decided by
// ResponseCache, not by the store.
type Store interface {
	// Get returns the entry for key, or nil when absent.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under key. Stores with native expiry use ttl.
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Sweep removes entries created before the cutoff and returns how many
	// were removed.
	Sweep(ctx context.Context, before time.Time) (int, error)

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}

// Stats are the lookup counters of a ResponseCache.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
