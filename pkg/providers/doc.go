// Package providers defines the provider-agnostic view of an external
// inference API: request and response types, the Provider interface, and the
// error taxonomy the gateway uses to classify upstream failures.
//
// # Error Taxonomy
//
//   - *RateLimitError: the API throttled the call (HTTP 429). The gateway opens
//     its circuit breaker and returns the error unchanged.
//   - *AuthError, *ProviderError, *TimeoutError: any other upstream failure.
//     Passed through unchanged without touching breaker state.
//   - *ValidationError: the request is malformed and was never sent.
//
// Use errors.As to inspect them:
//
//	var rl *providers.RateLimitError
//	if errors.As(err, &rl) {
//	    time.Sleep(rl.RetryAfter)
//	}
//
// Concrete implementations live in sub-packages (see providers/openai).
package providers
