package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "TOLLGATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TOLLGATE_SECTION_FIELD (e.g., TOLLGATE_BUDGET_DAILY_UNITS) and
// always take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML data and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric values are ignored and the file value is kept.
func applyEnvOverrides(cfg *Config) {
	// Gateway overrides
	envBool("GATEWAY_ENABLE_CACHING", func(b bool) { cfg.Gateway.EnableCaching = Bool(b) })
	envBool("GATEWAY_ENABLE_FALLBACK", func(b bool) { cfg.Gateway.EnableFallback = Bool(b) })
	envBool("GATEWAY_ENABLE_ALERTS", func(b bool) { cfg.Gateway.EnableAlerts = Bool(b) })
	envString("GATEWAY_FALLBACK_MODEL", &cfg.Gateway.FallbackModel)

	// Budget overrides
	envInt64("BUDGET_DAILY_UNITS", &cfg.Budget.DailyUnits)
	envInt64("BUDGET_WEEKLY_UNITS", &cfg.Budget.WeeklyUnits)
	envInt64("BUDGET_MONTHLY_UNITS", &cfg.Budget.MonthlyUnits)
	envFloat("BUDGET_DAILY_COST", &cfg.Budget.DailyCost)
	envFloat("BUDGET_WEEKLY_COST", &cfg.Budget.WeeklyCost)
	envFloat("BUDGET_MONTHLY_COST", &cfg.Budget.MonthlyCost)
	envFloat("BUDGET_ALERT_THRESHOLD", &cfg.Budget.AlertThreshold)
	envString("BUDGET_WEEK_START", &cfg.Budget.WeekStart)
	envString("BUDGET_TIMEZONE", &cfg.Budget.Timezone)

	// Breaker overrides
	envDuration("BREAKER_PROBE_INTERVAL", &cfg.Breaker.ProbeInterval)
	envDuration("BREAKER_RATE_LIMIT_COOLDOWN", &cfg.Breaker.RateLimitCooldown)

	// Cache overrides
	envString("CACHE_BACKEND", &cfg.Cache.Backend)
	if val := os.Getenv(EnvPrefix + "CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = Duration(d)
		}
	}
	envString("CACHE_REDIS_ADDRESS", &cfg.Cache.Redis.Address)
	envString("CACHE_REDIS_PASSWORD", &cfg.Cache.Redis.Password)

	// Storage overrides
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)

	// Alerts overrides
	envString("ALERTS_SINK", &cfg.Alerts.Sink)
	envString("ALERTS_WEBHOOK_URL", &cfg.Alerts.Webhook.URL)
	envBool("ALERTS_SUPPRESS_REPEATS", func(b bool) { cfg.Alerts.SuppressRepeats = b })

	// Provider overrides
	envString("PROVIDER_BASE_URL", &cfg.Provider.BaseURL)
	envString("PROVIDER_API_KEY", &cfg.Provider.APIKey)
	envDuration("PROVIDER_TIMEOUT", &cfg.Provider.Timeout)

	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envList("SERVER_AUTH_ADMIN_KEYS", &cfg.Server.Auth.AdminKeys)
	envFloat("SERVER_RATE_LIMIT_REQUESTS_PER_SECOND", &cfg.Server.RateLimit.RequestsPerSecond)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", func(b bool) { cfg.Telemetry.Metrics.Enabled = Bool(b) })
	envBool("TELEMETRY_TRACING_ENABLED", func(b bool) { cfg.Telemetry.Tracing.Enabled = b })
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

// envList reads a comma-separated list. Empty items are dropped.
func envList(key string, dst *[]string) {
	val := os.Getenv(EnvPrefix + key)
	if val == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func envBool(key string, set func(bool)) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			set(b)
		}
	}
}

func envInt64(key string, dst *int64) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
