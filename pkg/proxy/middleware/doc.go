// Package middleware holds the HTTP middleware chain of the gateway server.
//
// The server wraps its mux as
//
//	RequestID(Recovery(Logging(tracing.HTTPMiddleware(mux))))
//
// so both the panic log and every access log line carry the request ID. The
// request ID is stored with logging.WithRequestID, which the gateway reuses
// for its usage records.
//
// RateLimitMiddleware wraps the chat route only.
package middleware
