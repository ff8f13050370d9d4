package gateway

import (
	"log/slog"
	"time"

	"mercator-hq/tollgate/pkg/cache"
	"mercator-hq/tollgate/pkg/limits/alerts"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/processing/tokens"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

// Option configures a Gateway.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	now        func() time.Time
	store      storage.Backend
	cacheStore cache.Store
	sink       alerts.Sink
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	estimator  *tokens.UsageEstimator
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces time.Now for every component the gateway owns.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStore sets the persistence backend. By default one is built from the
// storage configuration.
func WithStore(store storage.Backend) Option {
	return func(o *options) { o.store = store }
}

// WithCacheStore sets the response cache store. By default one is built from
// the cache configuration.
func WithCacheStore(store cache.Store) Option {
	return func(o *options) { o.cacheStore = store }
}

// WithAlertSink sets where alerts are delivered. By default the sink named in
// the alerts configuration is used.
func WithAlertSink(sink alerts.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithMetrics sets the Prometheus collector. Without one nothing is exported.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithTracer sets the tracer. Defaults to a no-op tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithEstimator replaces the pre-flight usage estimator.
func WithEstimator(e *tokens.UsageEstimator) Option {
	return func(o *options) { o.estimator = e }
}
