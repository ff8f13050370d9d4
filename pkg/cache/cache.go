package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/tollgate/pkg/providers"
)

// ResponseCache is a TTL-bounded, fingerprint-keyed cache of completion
// responses in front of a Store.
type ResponseCache struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu            sync.RWMutex
	ttl           time.Duration
	sweepInterval time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	started  atomic.Bool
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResponseCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSweepInterval sets how often Start sweeps the store.
func WithSweepInterval(d time.Duration) Option {
	return func(c *ResponseCache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// New creates a response cache. A ttl of 0 disables reads and writes.
func New(store Store, ttl time.Duration, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		store:         store,
		logger:        slog.Default(),
		now:           time.Now,
		ttl:           ttl,
		sweepInterval: time.Minute,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cache")
	return c
}

// TTL returns the current time-to-live.
func (c *ResponseCache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// SetTTL changes the time-to-live. Entries are judged against the new value
// from the next read.
func (c *ResponseCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Enabled reports whether the TTL is positive.
func (c *ResponseCache) Enabled() bool {
	return c.TTL() > 0
}

// Get returns the cached entry for req when it is younger than the TTL and
// was produced by the requested model. A stale or mismatched entry is deleted.
// Store errors are logged and treated as a miss.
func (c *ResponseCache) Get(ctx context.Context, req *providers.CompletionRequest) (*Entry, bool) {
	ttl := c.TTL()
	if ttl <= 0 || req == nil {
		return nil, false
	}

	key := Fingerprint(req)
	e, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if e == nil {
		c.misses.Add(1)
		return nil, false
	}

	if c.now().Sub(e.CreatedAt) >= ttl || e.Model != req.Model {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("cache delete failed", "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e, true
}

// Put stores a copy of resp for req, so later changes to resp by the caller
// do not reach the cache. It does nothing when the TTL is 0.
func (c *ResponseCache) Put(ctx context.Context, req *providers.CompletionRequest, resp *providers.CompletionResponse, usage Usage) error {
	ttl := c.TTL()
	if ttl <= 0 || req == nil || resp == nil {
		return nil
	}

	key := Fingerprint(req)
	return c.store.Set(ctx, key, &Entry{
		Fingerprint: key,
		Model:       req.Model,
		Response:    resp.Clone(),
		Usage:       usage,
		CreatedAt:   c.now(),
	}, ttl)
}

// Sweep removes every entry older than the TTL.
func (c *ResponseCache) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx, c.now().Add(-c.TTL()))
}

// Stats returns the hit and miss counters.
func (c *ResponseCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Len returns the number of stored entries.
func (c *ResponseCache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}

// Start runs Sweep every sweep interval until Stop is called or ctx is done.
// Calling Start more than once has no effect.
func (c *ResponseCache) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.sweepLoop(ctx)
}

// Stop ends the sweep loop and waits for it to exit.
func (c *ResponseCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.started.Load() {
		<-c.done
	}
}

// Close stops the sweep loop and closes the store.
func (c *ResponseCache) Close() error {
	c.Stop()
	return c.store.Close()
}

func (c *ResponseCache) sweepLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := c.Sweep(ctx)
			if err != nil {
				c.logger.Warn("cache sweep failed", "error", err)
				continue
			}
			if n > 0 {
				c.logger.Debug("cache sweep", "removed", n)
			}
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
