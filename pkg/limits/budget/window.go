package budget

import "time"

// windowStart returns the instant window w containing t begins, in loc.
// Weeks begin at 00:00 on weekStart.
func windowStart(w Window, t time.Time, loc *time.Location, weekStart time.Weekday) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()

	switch w {
	case WindowWeekly:
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		back := (int(day.Weekday()) - int(weekStart) + 7) % 7
		return day.AddDate(0, 0, -back)
	case WindowMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// nextWindowStart returns the instant the window after the one containing t
// begins.
func nextWindowStart(w Window, t time.Time, loc *time.Location, weekStart time.Weekday) time.Time {
	start := windowStart(w, t, loc, weekStart)
	switch w {
	case WindowWeekly:
		return start.AddDate(0, 0, 7)
	case WindowMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// crossed reports whether now lies in a later window than last. A clock that
// moved backwards never resets a window.
func crossed(w Window, last, now time.Time, loc *time.Location, weekStart time.Weekday) bool {
	return windowStart(w, now, loc, weekStart).After(windowStart(w, last, loc, weekStart))
}
