package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/tollgate/pkg/config"
)

// otherModel replaces model labels beyond the cardinality limit.
const otherModel = "other"

// Collector owns every Prometheus metric of the gateway. A nil *Collector
// or a disabled one accepts every call and records nothing.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	budgetMetrics  *BudgetMetrics
	cacheMetrics   *CacheMetrics

	// models bounds the number of distinct model labels
	models *CardinalityLimiter
}

// NewCollector creates a collector registered on registry, or on a fresh
// registry when nil.
//
// Example:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	mux.Handle("/metrics", collector.Handler())
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "tollgate"
	}

	return &Collector{
		enabled:        cfg.Enabled == nil || *cfg.Enabled,
		registry:       registry,
		requestMetrics: NewRequestMetrics(namespace, registry),
		budgetMetrics:  NewBudgetMetrics(namespace, registry),
		cacheMetrics:   NewCacheMetrics(namespace, registry),
		models:         NewCardinalityLimiter(200),
	}
}

// Enabled reports whether the collector records anything.
func (c *Collector) Enabled() bool {
	return c.active()
}

func (c *Collector) active() bool {
	return c != nil && c.enabled
}

func (c *Collector) model(model string) string {
	if !c.models.Allow(model) {
		return otherModel
	}
	return model
}

// RecordCall records one governed call.
//
// Parameters:
//   - model: the model that served (or would have served) the call
//   - outcome: one of the Outcome constants
//   - duration: end-to-end call duration
func (c *Collector) RecordCall(model, outcome string, duration time.Duration) {
	if !c.active() {
		return
	}
	c.requestMetrics.RecordCall(c.model(model), outcome, duration)
}

// RecordUsage records units and spend charged to the budget.
func (c *Collector) RecordUsage(model string, promptUnits, completionUnits int, cost float64) {
	if !c.active() {
		return
	}
	c.requestMetrics.RecordUsage(c.model(model), promptUnits, completionUnits, cost)
}

// SetBudgetUsage sets the consumption gauges for one ceiling.
func (c *Collector) SetBudgetUsage(window, kind string, used, limit float64) {
	if !c.active() {
		return
	}
	c.budgetMetrics.SetUsage(window, kind, used, limit)
}

// SetBreakerState marks the breaker's current state.
func (c *Collector) SetBreakerState(state string) {
	if !c.active() {
		return
	}
	c.budgetMetrics.SetBreakerState(state)
}

// RecordBreakerTransition counts a breaker transition and updates the state gauge.
func (c *Collector) RecordBreakerTransition(from, to, reason string) {
	if !c.active() {
		return
	}
	c.budgetMetrics.RecordTransition(from, to, reason)
	c.budgetMetrics.SetBreakerState(to)
}

// RecordAlert counts one alert delivery.
func (c *Collector) RecordAlert(kind string, delivered bool) {
	if !c.active() {
		return
	}
	c.budgetMetrics.RecordAlert(kind, delivered)
}

// RecordPersistenceError counts one failed store operation.
func (c *Collector) RecordPersistenceError(op string) {
	if !c.active() {
		return
	}
	c.budgetMetrics.RecordPersistenceError(op)
}

// RecordCacheHit records a response cache hit.
func (c *Collector) RecordCacheHit() {
	if !c.active() {
		return
	}
	c.cacheMetrics.RecordHit()
}

// RecordCacheMiss records a response cache miss.
func (c *Collector) RecordCacheMiss() {
	if !c.active() {
		return
	}
	c.cacheMetrics.RecordMiss()
}

// RecordCacheCollapsed records a follower served by a collapsed miss.
func (c *Collector) RecordCacheCollapsed() {
	if !c.active() {
		return
	}
	c.cacheMetrics.RecordCollapsed()
}

// UpdateCacheSize updates the cache entry gauge.
func (c *Collector) UpdateCacheSize(size int) {
	if !c.active() {
		return
	}
	c.cacheMetrics.UpdateSize(size)
}

// RecordCacheSwept records entries removed by a sweep.
func (c *Collector) RecordCacheSwept(n int) {
	if !c.active() {
		return
	}
	c.cacheMetrics.RecordSwept(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
