// Package metrics provides Prometheus metrics for the gateway.
//
// # Metrics Categories
//
//   - Request metrics: calls by outcome, call duration, recorded units and spend
//   - Budget metrics: per-window consumption and ceilings, breaker state and
//     transitions, alert deliveries, persistence failures
//   - Cache metrics: hits, misses, collapsed misses, entries, swept entries
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	collector.RecordCall("gpt-4", metrics.OutcomeSuccess, time.Second)
//	collector.RecordUsage("gpt-4", 1000, 500, 0.06)
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Model labels are bounded by a cardinality limiter; models beyond the limit
// are recorded as "other".
package metrics
