package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(rps float64, burst int) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
	l := New(config.RateLimitConfig{
		RequestsPerSecond: rps,
		Burst:             burst,
		IdleTimeout:       time.Minute,
	}, WithClock(clock.Now))
	return l, clock
}

func TestLimiter_Disabled(t *testing.T) {
	var nilLimiter *Limiter
	for _, l := range []*Limiter{nilLimiter, New(config.RateLimitConfig{})} {
		for i := 0; i < 100; i++ {
			if !l.Allow("client").Allowed {
				t.Fatal("disabled limiter rejected a request")
			}
		}
		if l.Len() != 0 {
			t.Errorf("disabled limiter tracks %d clients", l.Len())
		}
	}
}

func TestLimiter_Burst(t *testing.T) {
	l, _ := newTestLimiter(1, 3)

	for i := 0; i < 3; i++ {
		res := l.Allow("a")
		if !res.Allowed {
			t.Fatalf("request %d rejected within burst", i+1)
		}
		if res.Remaining != 2-i {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, res.Remaining, 2-i)
		}
	}

	res := l.Allow("a")
	if res.Allowed {
		t.Fatal("request beyond burst allowed")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Second {
		t.Errorf("RetryAfter = %v, want within (0, 1s]", res.RetryAfter)
	}
}

func TestLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(2, 1)

	if !l.Allow("a").Allowed {
		t.Fatal("first request rejected")
	}
	if l.Allow("a").Allowed {
		t.Fatal("second request allowed before refill")
	}

	clock.Advance(500 * time.Millisecond)
	if !l.Allow("a").Allowed {
		t.Fatal("request rejected after refill interval")
	}
}

func TestLimiter_RejectionDoesNotConsume(t *testing.T) {
	l, clock := newTestLimiter(1, 1)

	l.Allow("a")
	for i := 0; i < 5; i++ {
		if l.Allow("a").Allowed {
			t.Fatal("request allowed while empty")
		}
	}

	// Rejected requests were cancelled, so one second refills one token.
	clock.Advance(time.Second)
	if !l.Allow("a").Allowed {
		t.Fatal("rejections consumed future tokens")
	}
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, 1)

	if !l.Allow("a").Allowed || !l.Allow("b").Allowed {
		t.Fatal("first request of each client must be allowed")
	}
	if l.Allow("a").Allowed {
		t.Error("client a exceeded its bucket")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(10, 10)

	l.Allow("old")
	clock.Advance(45 * time.Second)
	l.Allow("recent")
	clock.Advance(30 * time.Second)

	if removed := l.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(1, 50)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d requests, want exactly the burst of 50", got)
	}
}
