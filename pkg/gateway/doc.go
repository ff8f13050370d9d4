// Package gateway is the budget-governed facade in front of a metered
// inference API.
//
// # Call Flow
//
// Execute runs every call through the same steps:
//
//  1. Validate the request.
//  2. Serve it from the response cache when an identical request was answered
//     within the TTL. Concurrent identical misses are collapsed so only one
//     reaches the API; the others receive its result as a free cache hit.
//     A caller whose context ends stops waiting, but the shared call runs
//     on under the provider timeout and is still recorded.
//  3. Estimate usage and cost, check every budget ceiling and reserve the
//     projection so concurrent calls cannot jointly overshoot.
//  4. Let the circuit breaker decide. A refused call is either routed to the
//     fallback model or rejected with a *QuotaExceededError.
//  5. Call the API, then commit the reported usage (or the estimate when none
//     is reported), append an audit record, cache the response, re-check the
//     ceilings, persist state and evaluate alerts.
//
// An upstream rate limit opens the breaker and is returned unchanged.
//
// # Usage
//
//	gw, err := gateway.New(cfg, provider,
//	    gateway.WithLogger(logger),
//	    gateway.WithMetrics(collector),
//	)
//	if err != nil {
//	    return err
//	}
//	defer gw.Close(ctx)
//
//	res, err := gw.Execute(ctx, req)
//	switch {
//	case gateway.IsQuotaExceeded(err):
//	    // back off for gateway.RetryAfterOf(err)
//	case err != nil:
//	    return err
//	}
//
// # Administration
//
// GetMetrics, GetCircuitStatus, ResetDailyMetrics, ResetCircuitBreaker,
// UpdateConfig and UpdateCostTable inspect and adjust a running gateway.
// Snapshots and audit-log pruning run on cron schedules from the storage
// configuration.
package gateway
