package handlers

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/tollgate/pkg/cache"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/gateway"
	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/processing/costs"
	"mercator-hq/tollgate/pkg/providers"
)

// Executor runs governed calls.
type Executor interface {
	Execute(ctx context.Context, req *providers.CompletionRequest) (*gateway.Result, error)
}

// Admin is the administrative surface of a running gateway.
type Admin interface {
	Config() config.Config
	GetMetrics() budget.UsageMetrics
	GetCircuitStatus() breaker.Snapshot
	Usage() []budget.WindowUsage
	CacheStats() cache.Stats
	NextMaintenance() (snapshot, prune time.Time)

	ResetDailyMetrics()
	ResetCircuitBreaker()
	UpdateConfig(u gateway.ConfigUpdate) error

	Pricing() map[string]costs.Entry
	UpdateCostTable(entries map[string]costs.Entry) error

	ListUsageRecords(ctx context.Context, since time.Time, limit int) ([]storage.UsageRecord, error)
}

var (
	_ Executor = (*gateway.Gateway)(nil)
	_ Admin    = (*gateway.Gateway)(nil)
)

// Status is the body of GET /admin/status.
type Status struct {
	Metrics      budget.UsageMetrics  `json:"metrics"`
	Circuit      breaker.Snapshot     `json:"circuit"`
	Usage        []budget.WindowUsage `json:"usage"`
	Cache        cache.Stats          `json:"cache"`
	NextSnapshot *time.Time           `json:"next_snapshot,omitempty"`
	NextPrune    *time.Time           `json:"next_prune,omitempty"`
}

// ConfigPatch is the body of PATCH /admin/config. Durations are Go duration
// strings such as "90s" or "1h". Absent fields are unchanged.
type ConfigPatch struct {
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

	CacheTTL *string       `json:"cache_ttl,omitempty"`
	Breaker  *BreakerPatch `json:"breaker,omitempty"`
}

// BreakerPatch changes individual breaker timings.
type BreakerPatch struct {
	ProbeInterval     *string `json:"probe_interval,omitempty"`
	DailyCooldown     *string `json:"daily_cooldown,omitempty"`
	WeeklyCooldown    *string `json:"weekly_cooldown,omitempty"`
	MonthlyCooldown   *string `json:"monthly_cooldown,omitempty"`
	RateLimitCooldown *string `json:"rate_limit_cooldown,omitempty"`
}

// ToUpdate converts p into a gateway update. Breaker fields are merged onto
// current since the gateway replaces the breaker section as a whole.
func (p ConfigPatch) ToUpdate(current config.BreakerConfig) (gateway.ConfigUpdate, error) {
	u := gateway.ConfigUpdate{
		DailyUnits:     p.DailyUnits,
		WeeklyUnits:    p.WeeklyUnits,
		MonthlyUnits:   p.MonthlyUnits,
		DailyCost:      p.DailyCost,
		WeeklyCost:     p.WeeklyCost,
		MonthlyCost:    p.MonthlyCost,
		AlertThreshold: p.AlertThreshold,
		WeekStart:      p.WeekStart,
		Timezone:       p.Timezone,
		EnableCaching:  p.EnableCaching,
		EnableFallback: p.EnableFallback,
		EnableAlerts:   p.EnableAlerts,
		FallbackModel:  p.FallbackModel,
	}

	if p.CacheTTL != nil {
		d, err := parseDuration("cache_ttl", *p.CacheTTL)
		if err != nil {
			return gateway.ConfigUpdate{}, err
		}
		u.CacheTTL = &d
	}

	if p.Breaker != nil {
		b := current
		fields := []struct {
			name string
			src  *string
			dst  *time.Duration
		}{
			{"breaker.probe_interval", p.Breaker.ProbeInterval, &b.ProbeInterval},
			{"breaker.daily_cooldown", p.Breaker.DailyCooldown, &b.DailyCooldown},
			{"breaker.weekly_cooldown", p.Breaker.WeeklyCooldown, &b.WeeklyCooldown},
			{"breaker.monthly_cooldown", p.Breaker.MonthlyCooldown, &b.MonthlyCooldown},
			{"breaker.rate_limit_cooldown", p.Breaker.RateLimitCooldown, &b.RateLimitCooldown},
		}
		for _, f := range fields {
			if f.src == nil {
				continue
			}
			d, err := parseDuration(f.name, *f.src)
			if err != nil {
				return gateway.ConfigUpdate{}, err
			}
			*f.dst = d
		}
		u.Breaker = &b
	}
	return u, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

// PricingEntry is one model's rates in GET and PATCH /admin/pricing.
type PricingEntry struct {
	Input    float64 `json:"input"`
	Output   float64 `json:"output"`
	MaxUnits int     `json:"max_units,omitempty"`
}

// toPatch renders the runtime-adjustable part of cfg in patch form, so GET
// and PATCH /admin/config share one shape.
func toPatch(cfg config.Config) ConfigPatch {
	b := cfg.Budget
	brk := cfg.Breaker
	str := func(d time.Duration) *string {
		s := d.String()
		return &s
	}
	fallback := cfg.Gateway.FallbackModel
	return ConfigPatch{
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
		CacheTTL:       str(cfg.Cache.EffectiveTTL()),
		Breaker: &BreakerPatch{
			ProbeInterval:     str(brk.ProbeInterval),
			DailyCooldown:     str(brk.DailyCooldown),
			WeeklyCooldown:    str(brk.WeeklyCooldown),
			MonthlyCooldown:   str(brk.MonthlyCooldown),
			RateLimitCooldown: str(brk.RateLimitCooldown),
		},
	}
}
