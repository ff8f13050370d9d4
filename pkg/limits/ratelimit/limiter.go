package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mercator-hq/tollgate/pkg/config"
)

// CheckResult is the outcome of one Allow call.
type CheckResult struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the sustained rate in requests per second.
	Limit float64

	// Remaining is the number of requests the client could still send
	// immediately.
	Remaining int

	// RetryAfter is how long a rejected client should wait.
	RetryAfter time.Duration
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client. A nil or disabled Limiter
// allows everything.
type Limiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter from configuration.
func New(cfg config.RateLimitConfig, opts ...Option) *Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   burst,
		idle:    cfg.IdleTimeout,
		now:     time.Now,
		clients: make(map[string]*client),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enabled reports whether requests are limited at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.rps > 0
}

// Allow takes one request from key's bucket.
func (l *Limiter) Allow(key string) CheckResult {
	if !l.Enabled() {
		return CheckResult{Allowed: true}
	}

	now := l.now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	res := CheckResult{Limit: float64(l.rps)}

	r := c.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Duration(float64(time.Second) / float64(l.rps))
		}
		return res
	}

	res.Allowed = true
	if tokens := c.limiter.TokensAt(now); tokens > 0 {
		res.Remaining = int(tokens)
	}
	return res
}

// Sweep forgets clients idle for longer than the idle timeout and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	if l == nil || l.idle <= 0 {
		return 0
	}

	cutoff := l.now().Add(-l.idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Run sweeps idle clients until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	if !l.Enabled() || l.idle <= 0 {
		return
	}

	interval := l.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
