package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks response cache performance.
//
// Metrics:
//   - tollgate_cache_hits_total
//   - tollgate_cache_misses_total
//   - tollgate_cache_entries
//   - tollgate_cache_sweeps_removed_total
//   - tollgate_cache_collapsed_total
type CacheMetrics struct {
	hitsTotal     prometheus.Counter
	missesTotal   prometheus.Counter
	entries       prometheus.Gauge
	sweptTotal    prometheus.Counter
	collapsedHits prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(namespace string, registry prometheus.Registerer) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits",
		}),
		missesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current number of entries in the response cache",
		}),
		sweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sweeps_removed_total",
			Help:      "Total number of expired entries removed by sweeps",
		}),
		collapsedHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_collapsed_total",
			Help:      "Concurrent identical misses served by another caller's request",
		}),
	}

	registry.MustRegister(
		cm.hitsTotal,
		cm.missesTotal,
		cm.entries,
		cm.sweptTotal,
		cm.collapsedHits,
	)

	return cm
}

// RecordHit records a cache hit.
func (cm *CacheMetrics) RecordHit() { cm.hitsTotal.Inc() }

// RecordMiss records a cache miss.
func (cm *CacheMetrics) RecordMiss() { cm.missesTotal.Inc() }

// RecordCollapsed records a follower served by a collapsed miss.
func (cm *CacheMetrics) RecordCollapsed() { cm.collapsedHits.Inc() }

// UpdateSize updates the current number of entries.
func (cm *CacheMetrics) UpdateSize(size int) { cm.entries.Set(float64(size)) }

// RecordSwept records entries removed by a sweep.
func (cm *CacheMetrics) RecordSwept(n int) {
	if n > 0 {
		cm.sweptTotal.Add(float64(n))
	}
}
