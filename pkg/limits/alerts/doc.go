// Package alerts delivers usage threshold and circuit transition alerts.
//
// A Notifier consolidates every ceiling at or above the configured threshold
// into a single usage_threshold alert and suppresses repeats for the same set
// of ceilings within a calendar day. Breaker transitions become
// circuit_transition alerts. Delivery runs in the background with a timeout
// and never blocks the call path; failures are logged and counted.
//
// Sinks:
//
//   - LogSink writes alerts through log/slog
//   - WebhookSink POSTs each alert as JSON
//   - SinkFunc adapts a function, mostly for tests
package alerts
