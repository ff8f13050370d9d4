// Package breaker implements the budget circuit breaker.
//
// # States
//
//	CLOSED    --breach or rate limit-->        OPEN
//	OPEN      --probe interval elapsed-->      HALF_OPEN
//	HALF_OPEN --re-check finds no breach-->    CLOSED
//	HALF_OPEN --re-check still breached-->     OPEN (fresh cooldown)
//	any       --Reset-->                       CLOSED
//
// Each opening reason has its own cooldown (daily 1h, weekly and monthly 6h,
// upstream rate limit 1m by default), reported to callers as a retry-after
// hint. A single probe interval decides when an open breaker is re-checked.
//
// # Usage
//
//	b := breaker.New(cfg.Breaker, breaker.WithFallbackModel("gpt-3.5-turbo"))
//	b.OnTransition(func(t breaker.Transition) {
//	    logger.Warn("circuit transition", "from", t.From, "to", t.To, "reason", t.Reason)
//	})
//
//	d := b.Evaluate(breaker.Reasons(status.Reasons()))
//	if !d.Allowed {
//	    // substitute d.SuggestedFallbackModel or refuse
//	}
package breaker
