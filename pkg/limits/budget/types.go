package budget

import "time"

// Window identifies a calendar accounting window.
type Window string

const (
	// WindowDaily is the current calendar day.
	WindowDaily Window = "daily"

	// WindowWeekly is the current calendar week.
	WindowWeekly Window = "weekly"

	// WindowMonthly is the current calendar month.
	WindowMonthly Window = "monthly"
)

// Windows lists every window from shortest to longest.
var Windows = []Window{WindowDaily, WindowWeekly, WindowMonthly}

// Kind is the quantity a ceiling limits.
type Kind string

const (
	// KindUnits limits metered units (tokens).
	KindUnits Kind = "units"

	// KindCost limits spend in USD.
	KindCost Kind = "cost"
)

// ModelUsage is the per-model breakdown of the daily window.
type ModelUsage struct {
	Units int64   `json:"units"`
	Cost  float64 `json:"cost"`
	Calls int64   `json:"calls"`
}

// UsageMetrics holds the counters of every window. Windows are independent
// counters, not nested sums. Each resets at its own calendar boundary.
type UsageMetrics struct {
	DailyUnits   int64   `json:"daily_units"`
	WeeklyUnits  int64   `json:"weekly_units"`
	MonthlyUnits int64   `json:"monthly_units"`
	DailyCost    float64 `json:"daily_cost"`
	WeeklyCost   float64 `json:"weekly_cost"`
	MonthlyCost  float64 `json:"monthly_cost"`

	// LastUpdated is the last time a counter changed or a window rolled over.
	LastUpdated time.Time `json:"last_updated"`

	// PerModel resets together with the daily window.
	PerModel map[string]ModelUsage `json:"per_model,omitempty"`
}

// Clone returns a deep copy of m.
func (m UsageMetrics) Clone() UsageMetrics {
	out := m
	if m.PerModel != nil {
		out.PerModel = make(map[string]ModelUsage, len(m.PerModel))
		for k, v := range m.PerModel {
			out.PerModel[k] = v
		}
	}
	return out
}

// Units returns the unit counter of window w.
func (m UsageMetrics) Units(w Window) int64 {
	switch w {
	case WindowDaily:
		return m.DailyUnits
	case WindowWeekly:
		return m.WeeklyUnits
	case WindowMonthly:
		return m.MonthlyUnits
	}
	return 0
}

// Cost returns the cost counter of window w.
func (m UsageMetrics) Cost(w Window) float64 {
	switch w {
	case WindowDaily:
		return m.DailyCost
	case WindowWeekly:
		return m.WeeklyCost
	case WindowMonthly:
		return m.MonthlyCost
	}
	return 0
}

// Breach describes one ceiling that a check found exceeded.
type Breach struct {
	Window Window
	Kind   Kind

	// Limit is the configured ceiling.
	Limit float64

	// Used is the recorded amount in the window.
	Used float64

	// Projected is the pending plus requested amount a pre-flight check
	// added on top of Used. It is zero for post-hoc checks.
	Projected float64
}

// Reason returns the circuit breaker reason for b, such as "daily quota" or
// "monthly cost limit".
func (b Breach) Reason() string {
	if b.Kind == KindCost {
		return string(b.Window) + " cost limit"
	}
	return string(b.Window) + " quota"
}

// Status is the result of a budget check.
type Status struct {
	// Allowed is true when no ceiling is breached.
	Allowed bool

	// Breaches lists every breached ceiling, daily first.
	Breaches []Breach
}

// Reasons returns the breaker reason of every breach, in order.
func (s *Status) Reasons() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Breaches))
	for _, b := range s.Breaches {
		out = append(out, b.Reason())
	}
	return out
}

// WindowUsage reports how much of one non-zero ceiling is consumed.
type WindowUsage struct {
	Window  Window  `json:"window"`
	Kind    Kind    `json:"kind"`
	Limit   float64 `json:"limit"`
	Used    float64 `json:"used"`
	Percent float64 `json:"percent"`

	// ResetsAt is the start of the next window.
	ResetsAt time.Time `json:"resets_at"`
}

type reservationState int

const (
	reservationPending reservationState = iota
	reservationCommitted
	reservationReleased
)

// Reservation holds projected usage against every window while a call is in
// flight. Settle it with Tracker.Commit or Tracker.Release.
type Reservation struct {
	id    uint64
	Units int64
	Cost  float64
	state reservationState
}
