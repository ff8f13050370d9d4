// Package handlers serves the gateway's HTTP routes.
//
// ChatHandler answers POST /v1/chat/completions through Gateway.Execute.
// AdminHandler serves the /admin/ routes that inspect and adjust a running
// gateway:
//
//	GET   /admin/status         usage, circuit, cache and maintenance summary
//	GET   /admin/metrics        usage counters
//	GET   /admin/circuit        circuit breaker state
//	POST  /admin/reset/daily    zero the daily window
//	POST  /admin/reset/circuit  force the breaker closed
//	PATCH /admin/config         partial budget, breaker and cache change
//	GET   /admin/pricing        effective cost table
//	PATCH /admin/pricing        merge cost table entries
//	GET   /admin/records        usage records as JSON or CSV
//
// Handlers depend on the small Executor and Admin interfaces, which
// *gateway.Gateway satisfies.
package handlers
