package breaker

import (
	"sync"
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

func testConfig() config.BreakerConfig {
	return config.BreakerConfig{
		ProbeInterval:     5 * time.Minute,
		DailyCooldown:     time.Hour,
		WeeklyCooldown:    6 * time.Hour,
		MonthlyCooldown:   6 * time.Hour,
		RateLimitCooldown: time.Minute,
	}
}

func newTestBreaker() (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)}
	return New(testConfig(), WithClock(clock.Now), WithFallbackModel("gpt-3.5-turbo")), clock
}

func TestBreaker_ClosedAdmitsWithoutBreaches(t *testing.T) {
	b, _ := newTestBreaker()

	d := b.Evaluate(nil)
	if !d.Allowed || d.State != StateClosed {
		t.Errorf("Decision = %+v, want allowed in closed", d)
	}
	if d.SuggestedFallbackModel != "" {
		t.Error("no fallback is suggested for an admitted call")
	}
}

func TestBreaker_OpensOnBreach(t *testing.T) {
	b, clock := newTestBreaker()

	d := b.Evaluate([]Reason{ReasonDailyQuota, ReasonMonthlyCostLimit})
	if d.Allowed {
		t.Fatal("breach must refuse")
	}
	if d.Reason != "daily quota" {
		t.Errorf("Reason = %q, want first breach", d.Reason)
	}
	if d.State != StateOpen {
		t.Errorf("State = %s, want open", d.State)
	}
	if d.SuggestedFallbackModel != "gpt-3.5-turbo" {
		t.Errorf("SuggestedFallbackModel = %q", d.SuggestedFallbackModel)
	}
	if d.RetryAfter != time.Hour {
		t.Errorf("RetryAfter = %v, want daily cooldown", d.RetryAfter)
	}

	s := b.Snapshot()
	if s.OpenReason != ReasonDailyQuota || !s.CooldownUntil.Equal(clock.Now().Add(time.Hour)) {
		t.Errorf("Snapshot = %+v", s)
	}
}

func TestBreaker_CooldownPerReason(t *testing.T) {
	tests := []struct {
		reason Reason
		want   time.Duration
	}{
		{ReasonDailyQuota, time.Hour},
		{ReasonDailyCostLimit, time.Hour},
		{ReasonWeeklyQuota, 6 * time.Hour},
		{ReasonWeeklyCostLimit, 6 * time.Hour},
		{ReasonMonthlyQuota, 6 * time.Hour},
		{ReasonMonthlyCostLimit, 6 * time.Hour},
		{ReasonRateLimit, time.Minute},
		{Reason("something else"), 5 * time.Minute},
	}
	b, _ := newTestBreaker()
	for _, tt := range tests {
		if got := b.Cooldown(tt.reason); got != tt.want {
			t.Errorf("Cooldown(%q) = %v, want %v", tt.reason, got, tt.want)
		}
	}
}

func TestBreaker_OpenStaysOpenUntilProbeInterval(t *testing.T) {
	b, clock := newTestBreaker()
	b.Evaluate([]Reason{ReasonDailyQuota})

	clock.Advance(5 * time.Minute)
	if d := b.Evaluate(nil); d.Allowed || d.State != StateOpen {
		t.Fatalf("at exactly the probe interval the breaker must stay open, got %+v", d)
	}

	clock.Advance(time.Second)
	if s := b.Snapshot(); s.State != StateHalfOpen {
		t.Fatalf("after the probe interval a status read must see half_open, got %s", s.State)
	}
	if s := b.Snapshot(); s.OpenReason != ReasonDailyQuota {
		t.Errorf("half_open keeps the open reason, got %q", s.OpenReason)
	}
}

func TestBreaker_HalfOpenCloses(t *testing.T) {
	b, clock := newTestBreaker()
	b.Evaluate([]Reason{ReasonRateLimit})

	clock.Advance(6 * time.Minute)
	d := b.Evaluate(nil)
	if !d.Allowed || d.State != StateClosed {
		t.Fatalf("clean re-check should close, got %+v", d)
	}
	if s := b.Snapshot(); s.OpenReason != "" || !s.CooldownUntil.IsZero() {
		t.Errorf("closed snapshot should be clear, got %+v", s)
	}
}

func TestBreaker_HalfOpenReopensWithFreshCooldown(t *testing.T) {
	b, clock := newTestBreaker()
	b.Evaluate([]Reason{ReasonDailyQuota})

	clock.Advance(10 * time.Minute)
	d := b.Evaluate([]Reason{ReasonWeeklyCostLimit})
	if d.Allowed || d.State != StateOpen {
		t.Fatalf("breached re-check should re-open, got %+v", d)
	}

	s := b.Snapshot()
	if s.OpenReason != ReasonWeeklyCostLimit {
		t.Errorf("OpenReason = %q", s.OpenReason)
	}
	if want := clock.Now().Add(6 * time.Hour); !s.CooldownUntil.Equal(want) {
		t.Errorf("CooldownUntil = %v, want %v", s.CooldownUntil, want)
	}
	if !s.LastTransitionAt.Equal(clock.Now()) {
		t.Error("re-opening restarts the probe interval")
	}
}

func TestBreaker_RetryAfterNeverShorterThanProbe(t *testing.T) {
	b, clock := newTestBreaker()
	b.Trip(ReasonRateLimit)

	clock.Advance(2 * time.Minute)
	d := b.Evaluate(nil)
	if d.RetryAfter != 3*time.Minute {
		t.Errorf("RetryAfter = %v, want time until probe (3m)", d.RetryAfter)
	}
}

func TestBreaker_TripDoesNotExtendOpen(t *testing.T) {
	b, clock := newTestBreaker()
	b.Trip(ReasonDailyQuota)
	opened := b.Snapshot()

	clock.Advance(time.Minute)
	b.Trip(ReasonRateLimit)

	if s := b.Snapshot(); s.OpenReason != ReasonDailyQuota || !s.LastTransitionAt.Equal(opened.LastTransitionAt) {
		t.Errorf("Trip while open changed state: %+v", s)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker()
	b.Trip(ReasonMonthlyQuota)

	b.Reset()
	if s := b.Snapshot(); s.State != StateClosed {
		t.Fatalf("Reset must close immediately, got %s", s.State)
	}
	if d := b.Evaluate(nil); !d.Allowed {
		t.Error("closed breaker should admit")
	}
}

func TestBreaker_Restore(t *testing.T) {
	b, clock := newTestBreaker()

	b.Restore(Snapshot{
		State:            StateOpen,
		LastTransitionAt: clock.Now().Add(-time.Minute),
		OpenReason:       ReasonWeeklyQuota,
		CooldownUntil:    clock.Now().Add(time.Hour),
	})
	if d := b.Evaluate(nil); d.Allowed || d.Reason != "weekly quota" {
		t.Errorf("restored open breaker should refuse, got %+v", d)
	}

	b.Restore(Snapshot{State: "bogus"})
	if s := b.Snapshot(); s.State != StateClosed {
		t.Errorf("unknown state should restore as closed, got %s", s.State)
	}
}

func TestBreaker_RestoredOpenPastProbeGoesHalfOpen(t *testing.T) {
	b, clock := newTestBreaker()
	b.Restore(Snapshot{
		State:            StateOpen,
		LastTransitionAt: clock.Now().Add(-time.Hour),
		OpenReason:       ReasonDailyQuota,
	})

	if d := b.Evaluate(nil); !d.Allowed || d.State != StateClosed {
		t.Errorf("stale open state should probe and close, got %+v", d)
	}
}

func TestBreaker_OnTransition(t *testing.T) {
	b, clock := newTestBreaker()

	var got []Transition
	b.OnTransition(func(tr Transition) {
		// Callbacks run outside the lock, so reading state here must not deadlock.
		_ = b.State()
		got = append(got, tr)
	})

	b.Evaluate([]Reason{ReasonDailyQuota})
	clock.Advance(6 * time.Minute)
	b.Evaluate(nil)
	b.Trip(ReasonRateLimit)
	b.Reset()

	want := []struct {
		from, to State
		reason   Reason
	}{
		{StateClosed, StateOpen, ReasonDailyQuota},
		{StateOpen, StateHalfOpen, ReasonProbe},
		{StateHalfOpen, StateClosed, ReasonRecovered},
		{StateClosed, StateOpen, ReasonRateLimit},
		{StateOpen, StateClosed, ReasonManualReset},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d transitions, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].From != w.from || got[i].To != w.to || got[i].Reason != w.reason {
			t.Errorf("transition %d = %+v, want %s->%s (%s)", i, got[i], w.from, w.to, w.reason)
		}
	}
}

func TestBreaker_ResetWhenClosedIsSilent(t *testing.T) {
	b, _ := newTestBreaker()
	calls := 0
	b.OnTransition(func(Transition) { calls++ })

	b.Reset()
	if calls != 0 {
		t.Errorf("resetting a closed breaker emitted %d transitions", calls)
	}
}

func TestBreaker_ConcurrentEvaluate(t *testing.T) {
	b, _ := newTestBreaker()

	var mu sync.Mutex
	opened := 0
	b.OnTransition(func(tr Transition) {
		if tr.To == StateOpen {
			mu.Lock()
			opened++
			mu.Unlock()
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Evaluate([]Reason{ReasonDailyQuota})
		}()
	}
	wg.Wait()

	if opened != 1 {
		t.Errorf("concurrent breaches opened the breaker %d times, want 1", opened)
	}
}

func TestReasons(t *testing.T) {
	got := Reasons([]string{"daily quota", "monthly cost limit"})
	if len(got) != 2 || got[0] != ReasonDailyQuota || got[1] != ReasonMonthlyCostLimit {
		t.Errorf("Reasons = %v", got)
	}
}
