// Package tracing provides OpenTelemetry tracing for the gateway.
//
// New builds a tracer provider exporting over OTLP gRPC with a parent-based
// ratio sampler and installs the W3C Trace Context propagator. When tracing
// is disabled every span is a noop.
//
// The gateway opens one span per governed call and records the requested and
// serving model, units, cost, cache and fallback outcome on it:
//
//	ctx, span := tracer.Start(ctx, "gateway.execute")
//	defer span.End()
//	tracing.SetUsageAttributes(span, "gpt-4", 1000, 500, 0.06, false)
//
// HTTPMiddleware extracts incoming trace context so gateway spans join the
// caller's trace.
package tracing
