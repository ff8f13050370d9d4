package gateway

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/tollgate/pkg/cache"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
	"mercator-hq/tollgate/pkg/limits/enforcement"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/processing/costs"
)

// ConfigUpdate is a partial configuration change. Nil fields are left as
// they are.
type ConfigUpdate struct {
	DailyUnits   *int64   `json:"daily_units,omitempty"`
	WeeklyUnits  *int64   `json:"weekly_units,omitempty"`
	MonthlyUnits *int64   `json:"monthly_units,omitempty"`
	DailyCost    *float64 `json:"daily_cost,omitempty"`
	WeeklyCost   *float64 `json:"weekly_cost,omitempty"`
	MonthlyCost  *float64 `json:"monthly_cost,omitempty"`

	AlertThreshold *float64 `json:"alert_threshold,omitempty"`
	WeekStart      *string  `json:"week_start,omitempty"`
	Timezone       *string  `json:"timezone,omitempty"`

	EnableCaching  *bool   `json:"enable_caching,omitempty"`
	EnableFallback *bool   `json:"enable_fallback,omitempty"`
	EnableAlerts   *bool   `json:"enable_alerts,omitempty"`
	FallbackModel  *string `json:"fallback_model,omitempty"`

	CacheTTL *time.Duration `json:"cache_ttl,omitempty"`

	// Breaker replaces the probe interval and every cooldown.
	Breaker *config.BreakerConfig `json:"breaker,omitempty"`
}

// ConfigUpdateFrom builds an update that applies every runtime-adjustable
// section of cfg: budget, gateway flags, breaker and cache TTL.
func ConfigUpdateFrom(cfg *config.Config) ConfigUpdate {
	b := cfg.Budget
	brk := cfg.Breaker
	ttl := cfg.Cache.EffectiveTTL()
	fallback := cfg.Gateway.FallbackModel
	return ConfigUpdate{
		DailyUnits:     &b.DailyUnits,
		WeeklyUnits:    &b.WeeklyUnits,
		MonthlyUnits:   &b.MonthlyUnits,
		DailyCost:      &b.DailyCost,
		WeeklyCost:     &b.WeeklyCost,
		MonthlyCost:    &b.MonthlyCost,
		AlertThreshold: &b.AlertThreshold,
		WeekStart:      &b.WeekStart,
		Timezone:       &b.Timezone,
		EnableCaching:  config.Bool(cfg.Gateway.CachingEnabled()),
		EnableFallback: config.Bool(cfg.Gateway.FallbackEnabled()),
		EnableAlerts:   config.Bool(cfg.Gateway.AlertsEnabled()),
		FallbackModel:  &fallback,
		CacheTTL:       &ttl,
		Breaker:        &brk,
	}
}

func (u ConfigUpdate) apply(cfg *config.Config) {
	setInt64(&cfg.Budget.DailyUnits, u.DailyUnits)
	setInt64(&cfg.Budget.WeeklyUnits, u.WeeklyUnits)
	setInt64(&cfg.Budget.MonthlyUnits, u.MonthlyUnits)
	setFloat(&cfg.Budget.DailyCost, u.DailyCost)
	setFloat(&cfg.Budget.WeeklyCost, u.WeeklyCost)
	setFloat(&cfg.Budget.MonthlyCost, u.MonthlyCost)
	setFloat(&cfg.Budget.AlertThreshold, u.AlertThreshold)
	if u.WeekStart != nil {
		cfg.Budget.WeekStart = *u.WeekStart
	}
	if u.Timezone != nil {
		cfg.Budget.Timezone = *u.Timezone
	}

	if u.EnableCaching != nil {
		cfg.Gateway.EnableCaching = config.Bool(*u.EnableCaching)
	}
	if u.EnableFallback != nil {
		cfg.Gateway.EnableFallback = config.Bool(*u.EnableFallback)
	}
	if u.EnableAlerts != nil {
		cfg.Gateway.EnableAlerts = config.Bool(*u.EnableAlerts)
	}
	if u.FallbackModel != nil {
		cfg.Gateway.FallbackModel = *u.FallbackModel
	}

	if u.CacheTTL != nil {
		cfg.Cache.TTL = config.Duration(*u.CacheTTL)
	}
	if u.Breaker != nil {
		cfg.Breaker = *u.Breaker
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// UpdateConfig applies a partial configuration change. The merged
// configuration is validated first; on failure a config.ValidationError is
// returned and nothing changes. Counters and circuit state are kept.
func (g *Gateway) UpdateConfig(u ConfigUpdate) error {
	g.cfgMu.Lock()
	next := *g.cfg
	u.apply(&next)
	if err := config.Validate(&next); err != nil {
		g.cfgMu.Unlock()
		return err
	}
	g.cfg = &next
	g.cfgMu.Unlock()

	g.tracker.UpdateLimits(next.Budget)
	g.breaker.UpdateConfig(next.Breaker)
	g.breaker.SetFallbackModel(next.Gateway.FallbackModel)
	g.enforcer.UpdateConfig(enforcement.Config{
		FallbackEnabled: next.Gateway.FallbackEnabled(),
		FallbackModel:   next.Gateway.FallbackModel,
	})
	g.cache.SetTTL(next.Cache.EffectiveTTL())
	g.notifier.SetEnabled(next.Gateway.AlertsEnabled())
	g.notifier.SetThreshold(next.Budget.AlertThreshold)

	g.logger.Info("configuration updated",
		"daily_units", next.Budget.DailyUnits,
		"daily_cost", next.Budget.DailyCost,
		"caching", next.Gateway.CachingEnabled(),
		"fallback", next.Gateway.FallbackEnabled(),
		"cache_ttl", next.Cache.EffectiveTTL(),
	)

	g.publishBudget()
	return nil
}

// Config returns a copy of the active configuration.
func (g *Gateway) Config() config.Config {
	g.cfgMu.RLock()
	defer g.cfgMu.RUnlock()
	return *g.cfg
}

// GetMetrics returns a copy of the usage metrics.
func (g *Gateway) GetMetrics() budget.UsageMetrics {
	return g.tracker.Snapshot()
}

// GetCircuitStatus returns a copy of the circuit breaker state.
func (g *Gateway) GetCircuitStatus() breaker.Snapshot {
	return g.breaker.Snapshot()
}

// Usage reports the consumed share of every configured ceiling.
func (g *Gateway) Usage() []budget.WindowUsage {
	return g.tracker.Usage()
}

// CacheStats returns the response cache hit and miss counters.
func (g *Gateway) CacheStats() cache.Stats {
	return g.cache.Stats()
}

// ResetDailyMetrics zeroes the daily window and the per-model breakdown.
// Weekly and monthly counters are kept.
func (g *Gateway) ResetDailyMetrics() {
	g.tracker.ResetDaily()
	g.notifier.ResetSuppression()
	g.logger.Info("daily metrics reset")
	g.persistNow()
	g.publishBudget()
}

// ResetCircuitBreaker forces the breaker closed.
func (g *Gateway) ResetCircuitBreaker() {
	g.breaker.Reset()
	g.persistNow()
}

// UpdateCostTable merges entries into the cost table. Entries with negative
// rates are rejected and nothing changes.
func (g *Gateway) UpdateCostTable(entries map[string]costs.Entry) error {
	if err := g.calculator.UpdatePricing(entries); err != nil {
		return fmt.Errorf("failed to update pricing: %w", err)
	}
	g.logger.Info("pricing updated", "models", len(entries))
	return nil
}

// Pricing returns a copy of the effective cost table.
func (g *Gateway) Pricing() map[string]costs.Entry {
	return g.calculator.Table().Entries()
}

// Calculate prices usage for model with the current cost table.
func (g *Gateway) Calculate(model string, promptUnits, completionUnits int) costs.Cost {
	return g.calculator.Calculate(model, promptUnits, completionUnits)
}

// ListUsageRecords returns audit records at or after since, oldest first.
// A limit of 0 returns all of them.
func (g *Gateway) ListUsageRecords(ctx context.Context, since time.Time, limit int) ([]storage.UsageRecord, error) {
	return g.store.ListUsageRecords(ctx, since, limit)
}

// NextMaintenance returns the next run of the snapshot and prune jobs. A
// zero time means the job is not scheduled.
func (g *Gateway) NextMaintenance() (snapshot, prune time.Time) {
	snapshot, _ = g.scheduler.next(jobSnapshot)
	prune, _ = g.scheduler.next(jobPrune)
	return snapshot, prune
}

// CheckStore reports whether the persistence store answers reads.
func (g *Gateway) CheckStore(ctx context.Context) error {
	_, err := g.store.LoadCircuitState(ctx)
	return err
}

// CheckCache reports whether the cache store answers reads.
func (g *Gateway) CheckCache(ctx context.Context) error {
	_, err := g.cache.Len(ctx)
	return err
}

// Close refuses new calls, waits for calls already running to record their
// usage, then waits for pending saves and alert deliveries, persists a final
// snapshot and closes the stores. Work still running when ctx ends is not in
// the final snapshot. It is safe to call more than once; later calls return
// the first result.
func (g *Gateway) Close(ctx context.Context) error {
	g.closeOnce.Do(func() {
		g.lifecycleMu.Lock()
		g.closed.Store(true)
		g.lifecycleMu.Unlock()

		g.bgCancel()
		g.scheduler.stop()
		g.cache.Stop()

		done := make(chan struct{})
		go func() {
			g.inflight.Wait()
			g.persistWG.Wait()
			g.notifier.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			g.logger.Warn("shutdown deadline reached before background work drained")
		}

		if err := g.persist(ctx); err != nil {
			g.closeErr = fmt.Errorf("failed to persist final snapshot: %w", err)
		}
		if err := g.cache.Close(); err != nil {
			g.logger.Warn("failed to close cache store", "error", err)
		}
		if err := g.store.Close(); err != nil && g.closeErr == nil {
			g.closeErr = fmt.Errorf("failed to close storage: %w", err)
		}
		g.logger.Info("gateway stopped")
	})
	return g.closeErr
}

// enter admits one Execute call unless the gateway is closed. Callers that
// get true must call g.inflight.Done.
func (g *Gateway) enter() bool {
	g.lifecycleMu.Lock()
	defer g.lifecycleMu.Unlock()
	if g.closed.Load() {
		return false
	}
	g.inflight.Add(1)
	return true
}

func (g *Gateway) persistNow() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	_ = g.persist(ctx)
}
