// Package budget tracks unit and cost usage against calendar-window ceilings.
//
// # Windows
//
// Three independent windows are kept: the current calendar day, week and
// month, in a configured time zone. A week starts at 00:00 on the configured
// weekday (Monday by default). Crossing a boundary zeroes only that window;
// the per-model breakdown resets with the daily window.
//
// Boundaries are detected lazily on every read and write, and when persisted
// metrics are restored, so no timer is needed.
//
// # Ceilings
//
// Each window may carry a unit quota and a cost limit. Zero means no ceiling.
// A pre-flight check breaches a ceiling when
//
//	used >= limit || used + pending + projected > limit
//
// and the post-hoc check (Exceeded) when used >= limit. Breaches map to
// circuit breaker reasons such as "daily quota" or "weekly cost limit".
//
// # Usage
//
//	tracker := budget.NewTracker(cfg.Budget)
//
//	res, status := tracker.Admit(int64(estimate.Total()), projectedCost)
//	if !status.Allowed {
//	    // refuse, or substitute a cheaper model
//	}
//
//	// after the call completes
//	tracker.Commit(res, model, promptUnits, completionUnits, cost)
//
// # Thread Safety
//
// All operations are serialized by a single mutex.
package budget
