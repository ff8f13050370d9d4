package breaker

import (
	"strings"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/config"
)

// Breaker is the budget circuit breaker.
//
// It opens on any budget breach or upstream rate limit and refuses calls
// until the probe interval has passed. The OPEN to HALF_OPEN transition is
// evaluated lazily on the next admission or status read; no timer runs.
// In HALF_OPEN the next admission re-checks the budget and either closes the
// breaker or re-opens it with a fresh cooldown.
//
// Per-reason cooldowns only set the retry-after hint. They do not gate the
// probe.
type Breaker struct {
	mu            sync.Mutex
	cfg           config.BreakerConfig
	fallbackModel string
	now           func() time.Time

	state     Snapshot
	listeners []func(Transition)

	// fired collects transitions made under the lock; they are delivered
	// after unlocking.
	fired []Transition
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the breaker's time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithFallbackModel sets the model suggested on refusal.
func WithFallbackModel(model string) Option {
	return func(b *Breaker) {
		b.fallbackModel = model
	}
}

// New creates a closed breaker.
func New(cfg config.BreakerConfig, opts ...Option) *Breaker {
	b := &Breaker{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.state = Snapshot{State: StateClosed, LastTransitionAt: b.now()}
	return b
}

// Evaluate is the admission check. breaches are the reasons of the ceilings
// the pre-flight budget check found breached, in priority order.
func (b *Breaker) Evaluate(breaches []Reason) Decision {
	b.mu.Lock()
	now := b.now()
	b.probeLocked(now)

	var d Decision
	switch b.state.State {
	case StateOpen:
		d = b.refusalLocked(now)

	case StateHalfOpen:
		if len(breaches) == 0 {
			b.transitionLocked(now, StateClosed, ReasonRecovered)
			d = Decision{Allowed: true, State: StateClosed}
		} else {
			b.openLocked(now, breaches[0])
			d = b.refusalLocked(now)
		}

	default:
		if len(breaches) == 0 {
			d = Decision{Allowed: true, State: StateClosed}
		} else {
			b.openLocked(now, breaches[0])
			d = b.refusalLocked(now)
		}
	}

	fired := b.drainLocked()
	b.mu.Unlock()

	b.notify(fired)
	return d
}

// Trip opens the breaker for reason unless it is already open. It is used
// for post-hoc budget breaches and upstream rate limits.
func (b *Breaker) Trip(reason Reason) {
	b.mu.Lock()
	now := b.now()
	b.probeLocked(now)
	if b.state.State != StateOpen {
		b.openLocked(now, reason)
	}
	fired := b.drainLocked()
	b.mu.Unlock()

	b.notify(fired)
}

// Snapshot returns a copy of the state, applying a due OPEN to HALF_OPEN
// transition first.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	b.probeLocked(b.now())
	s := b.state
	fired := b.drainLocked()
	b.mu.Unlock()

	b.notify(fired)
	return s
}

// State returns the current state.
func (b *Breaker) State() State {
	return b.Snapshot().State
}

// Restore replaces the state with a persisted snapshot. No transition is
// reported. An empty or unknown state restores as closed.
func (b *Breaker) Restore(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch s.State {
	case StateOpen, StateHalfOpen, StateClosed:
	default:
		s = Snapshot{State: StateClosed, LastTransitionAt: b.now()}
	}
	if s.State == StateClosed {
		s.OpenReason = ""
		s.CooldownUntil = time.Time{}
	}
	b.state = s
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	now := b.now()
	if b.state.State != StateClosed {
		b.transitionLocked(now, StateClosed, ReasonManualReset)
	}
	fired := b.drainLocked()
	b.mu.Unlock()

	b.notify(fired)
}

// OnTransition registers fn to be called after every state change. Callbacks
// run on the caller's goroutine, outside the breaker's lock.
func (b *Breaker) OnTransition(fn func(Transition)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// UpdateConfig replaces the probe interval and cooldowns. An open breaker
// keeps its current cooldown.
func (b *Breaker) UpdateConfig(cfg config.BreakerConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
}

// SetFallbackModel changes the model suggested on refusal.
func (b *Breaker) SetFallbackModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallbackModel = model
}

// Cooldown returns the cooldown configured for reason. Unknown reasons use
// the probe interval.
func (b *Breaker) Cooldown(reason Reason) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cooldownLocked(reason)
}

func (b *Breaker) cooldownLocked(reason Reason) time.Duration {
	r := string(reason)
	switch {
	case reason == ReasonRateLimit:
		return b.cfg.RateLimitCooldown
	case strings.HasPrefix(r, "daily"):
		return b.cfg.DailyCooldown
	case strings.HasPrefix(r, "weekly"):
		return b.cfg.WeeklyCooldown
	case strings.HasPrefix(r, "monthly"):
		return b.cfg.MonthlyCooldown
	default:
		return b.cfg.ProbeInterval
	}
}

// probeLocked moves OPEN to HALF_OPEN once more than the probe interval has
// passed since the breaker opened.
func (b *Breaker) probeLocked(now time.Time) {
	if b.state.State == StateOpen && now.Sub(b.state.LastTransitionAt) > b.cfg.ProbeInterval {
		b.transitionLocked(now, StateHalfOpen, ReasonProbe)
	}
}

func (b *Breaker) openLocked(now time.Time, reason Reason) {
	b.transitionLocked(now, StateOpen, reason)
}

func (b *Breaker) transitionLocked(now time.Time, to State, reason Reason) {
	from := b.state.State
	next := Snapshot{State: to, LastTransitionAt: now}

	switch to {
	case StateOpen:
		next.OpenReason = reason
		next.CooldownUntil = now.Add(b.cooldownLocked(reason))
	case StateHalfOpen:
		// Keep why it opened visible while probing.
		next.OpenReason = b.state.OpenReason
		next.CooldownUntil = b.state.CooldownUntil
	}

	b.state = next
	b.fired = append(b.fired, Transition{
		From:          from,
		To:            to,
		Reason:        reason,
		At:            now,
		CooldownUntil: next.CooldownUntil,
	})
}

// refusalLocked builds the refusal for an open breaker. RetryAfter is the
// time left on the cooldown, but never less than the time left until the
// next probe, since no call on the requested model is admitted before then.
func (b *Breaker) refusalLocked(now time.Time) Decision {
	retry := b.state.CooldownUntil.Sub(now)
	if probe := b.state.LastTransitionAt.Add(b.cfg.ProbeInterval).Sub(now); probe > retry {
		retry = probe
	}
	if retry < 0 {
		retry = 0
	}

	return Decision{
		Allowed:                false,
		Reason:                 string(b.state.OpenReason),
		SuggestedFallbackModel: b.fallbackModel,
		RetryAfter:             retry,
		State:                  b.state.State,
	}
}

// drainLocked takes the pending transitions together with the listeners
// that should see them. Caller must hold the lock.
func (b *Breaker) drainLocked() pending {
	p := pending{transitions: b.fired, listeners: b.listeners}
	b.fired = nil
	return p
}

type pending struct {
	transitions []Transition
	listeners   []func(Transition)
}

func (b *Breaker) notify(p pending) {
	for _, t := range p.transitions {
		for _, fn := range p.listeners {
			fn(t)
		}
	}
}
