// Package telemetry groups the gateway's observability packages.
//
//   - logging: slog-based structured logging with redaction and file rotation
//   - metrics: Prometheus collector for calls, budget, breaker and cache
//   - tracing: OpenTelemetry spans exported over OTLP
//   - health: liveness, readiness and version endpoints
package telemetry
