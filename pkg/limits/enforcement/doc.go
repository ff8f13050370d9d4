// Package enforcement decides what happens to a call the circuit breaker
// refused.
//
// # Overview
//
//   - Allow: the breaker admitted the call; it proceeds unchanged.
//   - Downgrade: the call proceeds on the configured fallback model.
//   - Block: the call is rejected with a quota error.
//
// A call is only downgraded when fallback is enabled and the fallback model
// is set and differs from the requested model.
//
// # Usage
//
//	enforcer := enforcement.NewEnforcer(enforcement.Config{
//	    FallbackEnabled: true,
//	    FallbackModel:   "gpt-3.5-turbo",
//	})
//
//	result := enforcer.Enforce(decision, req.Model)
//	if !result.Allowed {
//	    return quotaError(result.Reason, result.RetryAfter)
//	}
//
// # Thread Safety
//
// The Enforcer is thread-safe and can be used concurrently from multiple goroutines.
package enforcement
