package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/tollgate/pkg/config"
)

func newTestCollector() *Collector {
	return NewCollector(config.MetricsConfig{Namespace: "test"}, prometheus.NewRegistry())
}

func TestCollector_RecordCall(t *testing.T) {
	c := newTestCollector()

	tests := []struct {
		model   string
		outcome string
	}{
		{"gpt-4", OutcomeSuccess},
		{"gpt-4", OutcomeSuccess},
		{"gpt-4", OutcomeCacheHit},
		{"gpt-3.5-turbo", OutcomeFallback},
		{"gpt-4", OutcomeRejected},
	}
	for _, tt := range tests {
		c.RecordCall(tt.model, tt.outcome, 200*time.Millisecond)
	}

	if got := testutil.ToFloat64(c.requestMetrics.requestsTotal.WithLabelValues("gpt-4", OutcomeSuccess)); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.requestMetrics.requestsTotal.WithLabelValues("gpt-3.5-turbo", OutcomeFallback)); got != 1 {
		t.Errorf("fallback count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.requestMetrics.requestDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCollector_RecordUsage(t *testing.T) {
	c := newTestCollector()

	c.RecordUsage("gpt-4", 1000, 500, 0.06)
	c.RecordUsage("gpt-4", 0, 0, 0)

	if got := testutil.ToFloat64(c.requestMetrics.unitsTotal.WithLabelValues("gpt-4", "prompt")); got != 1000 {
		t.Errorf("prompt units = %v", got)
	}
	if got := testutil.ToFloat64(c.requestMetrics.unitsTotal.WithLabelValues("gpt-4", "completion")); got != 500 {
		t.Errorf("completion units = %v", got)
	}
	if got := testutil.ToFloat64(c.requestMetrics.costTotal.WithLabelValues("gpt-4")); got != 0.06 {
		t.Errorf("cost = %v", got)
	}
}

func TestCollector_BudgetAndBreaker(t *testing.T) {
	c := newTestCollector()

	c.SetBudgetUsage("daily", "units", 800, 1000)
	if got := testutil.ToFloat64(c.budgetMetrics.ratio.WithLabelValues("daily", "units")); got != 0.8 {
		t.Errorf("ratio = %v, want 0.8", got)
	}

	c.SetBreakerState("closed")
	c.RecordBreakerTransition("closed", "open", "daily quota")
	if got := testutil.ToFloat64(c.budgetMetrics.breakerState.WithLabelValues("open")); got != 1 {
		t.Errorf("open gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.budgetMetrics.breakerState.WithLabelValues("closed")); got != 0 {
		t.Errorf("closed gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.budgetMetrics.transitions.WithLabelValues("closed", "open", "daily quota")); got != 1 {
		t.Errorf("transitions = %v", got)
	}

	c.RecordAlert("usage_threshold", true)
	c.RecordAlert("usage_threshold", false)
	if got := testutil.ToFloat64(c.budgetMetrics.alertsTotal.WithLabelValues("usage_threshold", "failed")); got != 1 {
		t.Errorf("failed alerts = %v", got)
	}

	c.RecordPersistenceError("save_metrics")
	if got := testutil.ToFloat64(c.budgetMetrics.persistenceErrors.WithLabelValues("save_metrics")); got != 1 {
		t.Errorf("persistence errors = %v", got)
	}
}

func TestCollector_Cache(t *testing.T) {
	c := newTestCollector()

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordCacheCollapsed()
	c.UpdateCacheSize(7)
	c.RecordCacheSwept(3)
	c.RecordCacheSwept(0)

	if got := testutil.ToFloat64(c.cacheMetrics.hitsTotal); got != 2 {
		t.Errorf("hits = %v", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.missesTotal); got != 1 {
		t.Errorf("misses = %v", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.entries); got != 7 {
		t.Errorf("entries = %v", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.sweptTotal); got != 3 {
		t.Errorf("swept = %v", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.collapsedHits); got != 1 {
		t.Errorf("collapsed = %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := NewCollector(config.MetricsConfig{Enabled: config.Bool(false)}, prometheus.NewRegistry())
	c.RecordCall("gpt-4", OutcomeSuccess, time.Second)
	c.RecordCacheHit()

	if got := testutil.CollectAndCount(c.requestMetrics.requestsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.hitsTotal); got != 0 {
		t.Errorf("disabled collector recorded hits = %v", got)
	}
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	c.RecordCall("gpt-4", OutcomeError, time.Second)
	c.RecordUsage("gpt-4", 1, 1, 1)
	c.SetBreakerState("open")
	c.RecordCacheMiss()
}

func TestCollector_ModelCardinality(t *testing.T) {
	c := newTestCollector()
	c.models = NewCardinalityLimiter(2)

	for i := 0; i < 5; i++ {
		c.RecordCall(fmt.Sprintf("model-%d", i), OutcomeSuccess, time.Millisecond)
	}

	if got := testutil.ToFloat64(c.requestMetrics.requestsTotal.WithLabelValues(otherModel, OutcomeSuccess)); got != 3 {
		t.Errorf("other = %v, want 3", got)
	}
	if c.models.Count() != 2 {
		t.Errorf("Count = %d, want 2", c.models.Count())
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector()
	c.RecordCall("gpt-4", OutcomeSuccess, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_requests_total") {
		t.Errorf("exposition missing requests_total:\n%s", rec.Body.String())
	}
}

func TestNewCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector(config.MetricsConfig{}, nil)
	c.RecordCacheHit()

	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(`
# HELP tollgate_cache_hits_total Total number of response cache hits
# TYPE tollgate_cache_hits_total counter
tollgate_cache_hits_total 1
`), "tollgate_cache_hits_total"); err != nil {
		t.Error(err)
	}
}
