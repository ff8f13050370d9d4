package budget

import (
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"

	"mercator-hq/tollgate/pkg/config"
)

type recorded struct {
	at    time.Time
	units int64
	cost  float64
}

// TestProperty_WindowSums checks that every window counter equals the sum of
// the usage recorded since that window's last boundary, for any interleaving
// of recordings and clock advances.
func TestProperty_WindowSums(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		weekStart := time.Weekday(rapid.IntRange(0, 6).Draw(rt, "weekStart"))
		start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).
			Add(time.Duration(rapid.IntRange(0, 365*24).Draw(rt, "startHour")) * time.Hour)

		clock := newFakeClock(start)
		tracker := NewTracker(config.BudgetConfig{WeekStart: []string{
			"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
		}[weekStart]}, WithClock(clock.Now))

		var history []recorded
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "advance") {
				hours := rapid.IntRange(1, 24*10).Draw(rt, "hours")
				clock.Advance(time.Duration(hours) * time.Hour)
				continue
			}
			units := rapid.IntRange(0, 5000).Draw(rt, "units")
			cost := rapid.Float64Range(0, 2).Draw(rt, "cost")
			tracker.Record("m", units, 0, cost)
			history = append(history, recorded{at: clock.Now(), units: int64(units), cost: cost})
		}

		now := clock.Now()
		m := tracker.Snapshot()
		for _, w := range Windows {
			begin := windowStart(w, now, time.UTC, weekStart)

			var wantUnits int64
			var wantCost float64
			for _, r := range history {
				if !r.at.Before(begin) {
					wantUnits += r.units
					wantCost += r.cost
				}
			}

			if got := m.Units(w); got != wantUnits {
				rt.Fatalf("%s units = %d, want %d", w, got, wantUnits)
			}
			if got := m.Cost(w); math.Abs(got-wantCost) > 1e-6 {
				rt.Fatalf("%s cost = %v, want %v", w, got, wantCost)
			}
		}
	})
}

// TestProperty_AdmitNeverExceedsCeiling checks that committed usage admitted
// through Admit never pushes a window past its quota.
func TestProperty_AdmitNeverExceedsCeiling(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := int64(rapid.IntRange(1, 10000).Draw(rt, "limit"))
		tracker := NewTracker(config.BudgetConfig{DailyUnits: limit}, WithClock(newFakeClock(wednesday).Now))

		var open []*Reservation
		for i := 0; i < 40; i++ {
			units := int64(rapid.IntRange(1, 3000).Draw(rt, "units"))
			if res, status := tracker.Admit(units, 0); status.Allowed {
				open = append(open, res)
			}
			if len(open) > 0 && rapid.Bool().Draw(rt, "settle") {
				res := open[0]
				open = open[1:]
				if rapid.Bool().Draw(rt, "commit") {
					tracker.Commit(res, "m", int(res.Units), 0, 0)
				} else {
					tracker.Release(res)
				}
			}

			pending, _ := tracker.Pending()
			if used := tracker.Snapshot().DailyUnits; used+pending > limit {
				rt.Fatalf("used %d + pending %d exceeds limit %d", used, pending, limit)
			}
		}
	})
}
