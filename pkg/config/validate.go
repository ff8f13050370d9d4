package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "budget.daily_units").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// A gateway refuses to start with an invalid configuration, and administrative
// updates that would produce one are rejected.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateBudget(&cfg.Budget)...)
	errs = append(errs, validateBreaker(&cfg.Breaker)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validatePricing(&cfg.Pricing)...)
	errs = append(errs, validateTokens(&cfg.Tokens)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateAlerts(&cfg.Alerts)...)
	errs = append(errs, validateProvider(&cfg.Provider)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateGateway(cfg *GatewayConfig) []FieldError {
	var errs []FieldError
	if cfg.FallbackEnabled() && strings.TrimSpace(cfg.FallbackModel) == "" {
		errs = append(errs, FieldError{
			Field:   "gateway.fallback_model",
			Message: "fallback model is required when fallback is enabled",
		})
	}
	return errs
}

func validateBudget(cfg *BudgetConfig) []FieldError {
	var errs []FieldError

	units := []struct {
		field string
		value int64
	}{
		{"budget.daily_units", cfg.DailyUnits},
		{"budget.weekly_units", cfg.WeeklyUnits},
		{"budget.monthly_units", cfg.MonthlyUnits},
	}
	for _, u := range units {
		if u.value < 0 {
			errs = append(errs, FieldError{Field: u.field, Message: "quota must be non-negative"})
		}
	}

	costs := []struct {
		field string
		value float64
	}{
		{"budget.daily_cost", cfg.DailyCost},
		{"budget.weekly_cost", cfg.WeeklyCost},
		{"budget.monthly_cost", cfg.MonthlyCost},
	}
	for _, c := range costs {
		if c.value < 0 {
			errs = append(errs, FieldError{Field: c.field, Message: "cost limit must be non-negative"})
		}
	}

	if cfg.AlertThreshold < 0 || cfg.AlertThreshold > 100 {
		errs = append(errs, FieldError{
			Field:   "budget.alert_threshold",
			Message: "alert threshold must be between 0 and 100",
		})
	}

	if cfg.WeekStart != "" {
		if _, ok := weekdays[cfg.WeekStart]; !ok {
			errs = append(errs, FieldError{
				Field:   "budget.week_start",
				Message: fmt.Sprintf("invalid weekday %q", cfg.WeekStart),
			})
		}
	}

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			errs = append(errs, FieldError{
				Field:   "budget.timezone",
				Message: fmt.Sprintf("unknown time zone %q", cfg.Timezone),
			})
		}
	}

	return errs
}

func validateBreaker(cfg *BreakerConfig) []FieldError {
	var errs []FieldError
	durations := []struct {
		field string
		value time.Duration
	}{
		{"breaker.probe_interval", cfg.ProbeInterval},
		{"breaker.daily_cooldown", cfg.DailyCooldown},
		{"breaker.weekly_cooldown", cfg.WeeklyCooldown},
		{"breaker.monthly_cooldown", cfg.MonthlyCooldown},
		{"breaker.rate_limit_cooldown", cfg.RateLimitCooldown},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, FieldError{Field: d.field, Message: "duration must be non-negative"})
		}
	}
	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, FieldError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or redis)", cfg.Backend),
		})
	}

	if cfg.TTL != nil && *cfg.TTL < 0 {
		errs = append(errs, FieldError{Field: "cache.ttl", Message: "ttl must be non-negative"})
	}
	if cfg.SweepInterval < 0 {
		errs = append(errs, FieldError{Field: "cache.sweep_interval", Message: "sweep interval must be non-negative"})
	}
	if cfg.MaxEntries < 0 {
		errs = append(errs, FieldError{Field: "cache.max_entries", Message: "max entries must be non-negative"})
	}
	if cfg.Backend == "redis" && cfg.Redis.Address == "" {
		errs = append(errs, FieldError{Field: "cache.redis.address", Message: "address is required for redis backend"})
	}

	return errs
}

func validatePricing(cfg *PricingConfig) []FieldError {
	var errs []FieldError

	if _, ok := cfg.Models[cfg.DefaultModel]; !ok {
		errs = append(errs, FieldError{
			Field:   "pricing.default_model",
			Message: fmt.Sprintf("default model %q has no pricing entry", cfg.DefaultModel),
		})
	}

	for name, p := range cfg.Models {
		field := fmt.Sprintf("pricing.models.%s", name)
		if p.Input < 0 || p.Output < 0 {
			errs = append(errs, FieldError{Field: field, Message: "cost must be non-negative"})
		}
		if p.MaxUnits < 0 {
			errs = append(errs, FieldError{Field: field + ".max_units", Message: "max units must be non-negative"})
		}
	}

	return errs
}

func validateTokens(cfg *TokensConfig) []FieldError {
	var errs []FieldError

	switch cfg.Estimator {
	case "simple", "tiktoken":
	default:
		errs = append(errs, FieldError{
			Field:   "tokens.estimator",
			Message: fmt.Sprintf("invalid estimator %q (must be simple or tiktoken)", cfg.Estimator),
		})
	}
	if cfg.SafetyMargin < 1.0 {
		errs = append(errs, FieldError{Field: "tokens.safety_margin", Message: "safety margin must be at least 1.0"})
	}
	if cfg.MessageOverhead < 0 {
		errs = append(errs, FieldError{Field: "tokens.message_overhead", Message: "overhead must be non-negative"})
	}
	if cfg.ToolOverhead < 0 {
		errs = append(errs, FieldError{Field: "tokens.tool_overhead", Message: "overhead must be non-negative"})
	}
	for name, ratio := range cfg.Models {
		if ratio <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("tokens.models.%s", name),
				Message: "chars per token must be positive",
			})
		}
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "path is required for sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}

	for field, spec := range map[string]string{
		"storage.snapshot_schedule": cfg.SnapshotSchedule,
		"storage.prune_schedule":    cfg.PruneSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid cron schedule: %v", err)})
		}
	}

	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "storage.retention_days", Message: "retention days must be non-negative"})
	}

	return errs
}

func validateAlerts(cfg *AlertsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Sink {
	case "log":
	case "webhook":
		if cfg.Webhook.URL == "" {
			errs = append(errs, FieldError{Field: "alerts.webhook.url", Message: "url is required for webhook sink"})
		} else if u, err := url.Parse(cfg.Webhook.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{Field: "alerts.webhook.url", Message: "url must be absolute"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "alerts.sink",
			Message: fmt.Sprintf("invalid sink %q (must be log or webhook)", cfg.Sink),
		})
	}

	return errs
}

func validateProvider(cfg *ProviderConfig) []FieldError {
	var errs []FieldError

	if cfg.Type != "openai" {
		errs = append(errs, FieldError{
			Field:   "provider.type",
			Message: fmt.Sprintf("unsupported provider type %q", cfg.Type),
		})
	}
	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" {
			errs = append(errs, FieldError{Field: "provider.base_url", Message: "base url must be absolute"})
		}
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "provider.timeout", Message: "timeout must be non-negative"})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 || cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server", Message: "timeouts must be non-negative"})
	}
	for _, k := range cfg.Auth.AdminKeys {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, FieldError{Field: "server.auth.admin_keys", Message: "keys must not be empty"})
			break
		}
	}
	if cfg.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.requests_per_second", Message: "must be non-negative"})
	}
	if cfg.RateLimit.Burst < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.burst", Message: "must be non-negative"})
	}
	if cfg.RateLimit.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.idle_timeout", Message: "must be non-negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0 and 1",
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}

	return errs
}
