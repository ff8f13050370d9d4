package budget

import (
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/config"
)

// Tracker tracks unit and cost usage across the daily, weekly and monthly
// calendar windows.
//
// A single mutex owns every counter. Window boundaries are detected lazily on
// each read and write: crossing a boundary zeroes only that window, and the
// per-model breakdown follows the daily window.
//
// # Reservations
//
// Admit checks the ceilings and reserves the projected usage in one critical
// section. Pending reservations count against later checks until they are
// committed or released, so two concurrent calls that jointly exceed a ceiling
// cannot both be admitted.
type Tracker struct {
	mu sync.Mutex

	limits    config.BudgetConfig
	loc       *time.Location
	weekStart time.Weekday
	now       func() time.Time

	metrics UsageMetrics

	pending      map[uint64]*Reservation
	pendingUnits int64
	pendingCost  float64
	nextID       uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker enforcing the ceilings in cfg. Zero ceilings
// are not enforced.
//
// Example:
//
//	tracker := budget.NewTracker(config.BudgetConfig{
//	    DailyUnits:     100000,
//	    DailyCost:      20.00,
//	    MonthlyCost:    400.00,
//	    AlertThreshold: 80,
//	})
func NewTracker(cfg config.BudgetConfig, opts ...Option) *Tracker {
	t := &Tracker{
		now:     time.Now,
		pending: make(map[uint64]*Reservation),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.setLimits(cfg)
	t.metrics = UsageMetrics{
		LastUpdated: t.now(),
		PerModel:    make(map[string]ModelUsage),
	}
	return t
}

func (t *Tracker) setLimits(cfg config.BudgetConfig) {
	t.limits = cfg
	t.loc = cfg.Location()
	t.weekStart = cfg.Weekday()
}

// Check is a dry run: it reports the ceilings a call projecting units and
// cost would breach without changing any counter.
func (t *Tracker) Check(units int64, cost float64) *Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked(t.now())
	return t.checkLocked(units, cost)
}

// Admit checks the ceilings and, when none would be breached, reserves units
// and cost. The reservation is nil when the status is not allowed.
func (t *Tracker) Admit(units int64, cost float64) (*Reservation, *Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked(t.now())
	status := t.checkLocked(units, cost)
	if !status.Allowed {
		return nil, status
	}
	return t.reserveLocked(units, cost), status
}

// Reserve reserves units and cost without checking any ceiling.
func (t *Tracker) Reserve(units int64, cost float64) *Reservation {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked(t.now())
	return t.reserveLocked(units, cost)
}

// Commit settles res and records the actual usage of a completed call in one
// step, returning the updated metrics. Committing the same reservation twice
// records nothing the second time. A nil reservation records unreserved usage.
func (t *Tracker) Commit(res *Reservation, model string, promptUnits, completionUnits int, cost float64) UsageMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rolloverLocked(now)

	if res != nil {
		if res.state == reservationCommitted {
			return t.metrics.Clone()
		}
		t.releaseLocked(res)
		res.state = reservationCommitted
	}

	t.recordLocked(now, model, int64(promptUnits+completionUnits), cost)
	return t.metrics.Clone()
}

// Release drops res without recording usage. It is a no-op for a nil or
// already settled reservation.
func (t *Tracker) Release(res *Reservation) {
	if res == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if res.state != reservationPending {
		return
	}
	t.releaseLocked(res)
	res.state = reservationReleased
}

// Record adds usage that was never reserved.
func (t *Tracker) Record(model string, promptUnits, completionUnits int, cost float64) UsageMetrics {
	return t.Commit(nil, model, promptUnits, completionUnits, cost)
}

// Exceeded is the post-hoc check: it returns every ceiling whose recorded
// usage has reached its limit.
func (t *Tracker) Exceeded() []Breach {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked(t.now())

	var breaches []Breach
	t.eachCeiling(func(w Window, k Kind, limit, used float64) {
		if used >= limit {
			breaches = append(breaches, Breach{Window: w, Kind: k, Limit: limit, Used: used})
		}
	})
	return breaches
}

// Snapshot returns a deep copy of the current metrics.
func (t *Tracker) Snapshot() UsageMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked(t.now())
	return t.metrics.Clone()
}

// Restore replaces the metrics with m, then resets every window whose
// boundary has passed since m.LastUpdated.
func (t *Tracker) Restore(m UsageMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics = m.Clone()
	if t.metrics.PerModel == nil {
		t.metrics.PerModel = make(map[string]ModelUsage)
	}
	now := t.now()
	if t.metrics.LastUpdated.IsZero() {
		t.metrics.LastUpdated = now
	}
	t.rolloverLocked(now)
}

// ResetDaily zeroes the daily window and the per-model breakdown.
func (t *Tracker) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetDailyLocked()
	t.metrics.LastUpdated = t.now()
}

// UpdateLimits replaces the ceilings, threshold, week start and time zone.
// Counters are kept.
func (t *Tracker) UpdateLimits(cfg config.BudgetConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.setLimits(cfg)
	t.rolloverLocked(t.now())
}

// Limits returns the active budget configuration.
func (t *Tracker) Limits() config.BudgetConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits
}

// Usage reports the consumed percentage of every non-zero ceiling, daily
// first.
func (t *Tracker) Usage() []WindowUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rolloverLocked(now)

	var out []WindowUsage
	t.eachCeiling(func(w Window, k Kind, limit, used float64) {
		out = append(out, WindowUsage{
			Window:   w,
			Kind:     k,
			Limit:    limit,
			Used:     used,
			Percent:  used / limit * 100,
			ResetsAt: nextWindowStart(w, now, t.loc, t.weekStart),
		})
	})
	return out
}

// Pending returns the units and cost held by unsettled reservations.
func (t *Tracker) Pending() (int64, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingUnits, t.pendingCost
}

// checkLocked applies the breach rule to every non-zero ceiling: a ceiling
// is breached when used >= limit or used+pending+projected > limit.
// Caller must hold the lock.
func (t *Tracker) checkLocked(units int64, cost float64) *Status {
	status := &Status{Allowed: true}

	t.eachCeiling(func(w Window, k Kind, limit, used float64) {
		pending, projected := float64(t.pendingUnits), float64(units)
		if k == KindCost {
			pending, projected = t.pendingCost, cost
		}
		if used >= limit || used+pending+projected > limit {
			status.Breaches = append(status.Breaches, Breach{
				Window:    w,
				Kind:      k,
				Limit:     limit,
				Used:      used,
				Projected: pending + projected,
			})
		}
	})

	status.Allowed = len(status.Breaches) == 0
	return status
}

// eachCeiling calls fn for every configured (non-zero) ceiling in window
// order, units before cost. Caller must hold the lock.
func (t *Tracker) eachCeiling(fn func(w Window, k Kind, limit, used float64)) {
	for _, w := range Windows {
		if limit := t.unitLimit(w); limit > 0 {
			fn(w, KindUnits, float64(limit), float64(t.metrics.Units(w)))
		}
		if limit := t.costLimit(w); limit > 0 {
			fn(w, KindCost, limit, t.metrics.Cost(w))
		}
	}
}

func (t *Tracker) unitLimit(w Window) int64 {
	switch w {
	case WindowDaily:
		return t.limits.DailyUnits
	case WindowWeekly:
		return t.limits.WeeklyUnits
	case WindowMonthly:
		return t.limits.MonthlyUnits
	}
	return 0
}

func (t *Tracker) costLimit(w Window) float64 {
	switch w {
	case WindowDaily:
		return t.limits.DailyCost
	case WindowWeekly:
		return t.limits.WeeklyCost
	case WindowMonthly:
		return t.limits.MonthlyCost
	}
	return 0
}

func (t *Tracker) reserveLocked(units int64, cost float64) *Reservation {
	t.nextID++
	res := &Reservation{id: t.nextID, Units: units, Cost: cost}
	t.pending[res.id] = res
	t.pendingUnits += units
	t.pendingCost += cost
	return res
}

func (t *Tracker) releaseLocked(res *Reservation) {
	if _, ok := t.pending[res.id]; !ok {
		return
	}
	delete(t.pending, res.id)
	t.pendingUnits -= res.Units
	t.pendingCost -= res.Cost
	if len(t.pending) == 0 {
		// Clear float drift once nothing is in flight.
		t.pendingUnits, t.pendingCost = 0, 0
	}
}

func (t *Tracker) recordLocked(now time.Time, model string, units int64, cost float64) {
	m := &t.metrics
	m.DailyUnits += units
	m.WeeklyUnits += units
	m.MonthlyUnits += units
	m.DailyCost += cost
	m.WeeklyCost += cost
	m.MonthlyCost += cost

	mu := m.PerModel[model]
	mu.Units += units
	mu.Cost += cost
	mu.Calls++
	m.PerModel[model] = mu

	if now.After(m.LastUpdated) {
		m.LastUpdated = now
	}
}

// rolloverLocked zeroes every window whose boundary lies between
// LastUpdated and now. Caller must hold the lock.
func (t *Tracker) rolloverLocked(now time.Time) {
	last := t.metrics.LastUpdated
	rolled := false

	if crossed(WindowDaily, last, now, t.loc, t.weekStart) {
		t.resetDailyLocked()
		rolled = true
	}
	if crossed(WindowWeekly, last, now, t.loc, t.weekStart) {
		t.metrics.WeeklyUnits, t.metrics.WeeklyCost = 0, 0
		rolled = true
	}
	if crossed(WindowMonthly, last, now, t.loc, t.weekStart) {
		t.metrics.MonthlyUnits, t.metrics.MonthlyCost = 0, 0
		rolled = true
	}

	if rolled {
		t.metrics.LastUpdated = now
	}
}

func (t *Tracker) resetDailyLocked() {
	t.metrics.DailyUnits, t.metrics.DailyCost = 0, 0
	t.metrics.PerModel = make(map[string]ModelUsage)
}
