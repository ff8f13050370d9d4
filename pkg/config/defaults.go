package config

import (
	"math"
	"time"
)

// Default values for configuration fields.
const (
	// Gateway defaults
	DefaultFallbackModel = "gpt-3.5-turbo"

	// Budget defaults
	DefaultAlertThreshold = 80.0
	DefaultWeekStart      = "monday"
	DefaultTimezone       = "UTC"

	// Breaker defaults
	DefaultProbeInterval     = 5 * time.Minute
	DefaultDailyCooldown     = time.Hour
	DefaultWeeklyCooldown    = 6 * time.Hour
	DefaultMonthlyCooldown   = 6 * time.Hour
	DefaultRateLimitCooldown = time.Minute

	// Cache defaults
	DefaultCacheBackend       = "memory"
	DefaultCacheTTL           = time.Hour
	DefaultCacheSweepInterval = 60 * time.Second
	DefaultCacheMaxEntries    = 10000
	DefaultRedisAddress       = "127.0.0.1:6379"
	DefaultRedisKeyPrefix     = "tollgate:cache:"
	DefaultRedisDialTimeout   = 5 * time.Second

	// Pricing defaults
	DefaultPricingModel = "default"

	// Token estimation defaults
	DefaultEstimator       = "simple"
	DefaultSafetyMargin    = 1.10
	DefaultMessageOverhead = 4
	DefaultToolOverhead    = 10

	// Storage defaults
	DefaultStorageBackend    = "memory"
	DefaultSQLitePath        = "data/tollgate.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultSnapshotSchedule  = "@every 30s"
	DefaultPruneSchedule     = "0 3 * * *"
	DefaultRetentionDays     = 90

	// Alert defaults
	DefaultAlertSink       = "log"
	DefaultWebhookTimeout  = 5 * time.Second
	DefaultDeliveryTimeout = 10 * time.Second

	// Provider defaults
	DefaultProviderType    = "openai"
	DefaultProviderTimeout = 60 * time.Second

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultRateLimitIdle   = 3 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 5
	DefaultLogFileMaxAgeDays = 30
	DefaultMetricsNamespace  = "tollgate"
	DefaultMetricsPath       = "/metrics"
	DefaultTracingEndpoint   = "localhost:4317"
	DefaultTracingSample     = 1.0
	DefaultServiceName       = "tollgate"
)

// DefaultPricing is the cost table used when the configuration defines none.
// Prices are USD per 1,000 units.
func DefaultPricing() map[string]ModelPricing {
	return map[string]ModelPricing{
		"gpt-4o-mini":   {Input: 0.00015, Output: 0.0006, MaxUnits: 128000},
		"gpt-4o":        {Input: 0.0025, Output: 0.01, MaxUnits: 128000},
		"gpt-4-turbo":   {Input: 0.01, Output: 0.03, MaxUnits: 128000},
		"gpt-4":         {Input: 0.03, Output: 0.06, MaxUnits: 8192},
		"gpt-3.5-turbo": {Input: 0.0005, Output: 0.0015, MaxUnits: 16385},
		"default":       {Input: 0.03, Output: 0.06, MaxUnits: 8192},
	}
}

// DefaultCharsPerToken is the simple estimator's ratio table.
func DefaultCharsPerToken() map[string]float64 {
	return map[string]float64{
		"gpt-4":         4.0,
		"gpt-3.5-turbo": 4.0,
		"default":       4.0,
	}
}

// ApplyDefaults fills every zero-valued field of cfg with its default.
// Explicitly set values are left untouched.
func ApplyDefaults(cfg *Config) {
	applyGatewayDefaults(&cfg.Gateway)
	applyBudgetDefaults(&cfg.Budget)
	applyBreakerDefaults(&cfg.Breaker)
	applyCacheDefaults(&cfg.Cache)
	applyPricingDefaults(&cfg.Pricing)
	applyTokensDefaults(&cfg.Tokens)
	applyStorageDefaults(&cfg.Storage)
	applyAlertsDefaults(&cfg.Alerts)
	applyProviderDefaults(&cfg.Provider)
	applyServerDefaults(&cfg.Server)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// NewDefaultConfig returns a configuration with every default applied and no
// budget ceilings.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func applyGatewayDefaults(cfg *GatewayConfig) {
	if cfg.EnableCaching == nil {
		cfg.EnableCaching = Bool(true)
	}
	if cfg.EnableFallback == nil {
		cfg.EnableFallback = Bool(true)
	}
	if cfg.EnableAlerts == nil {
		cfg.EnableAlerts = Bool(true)
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultFallbackModel
	}
}

func applyBudgetDefaults(cfg *BudgetConfig) {
	if cfg.AlertThreshold == 0 {
		cfg.AlertThreshold = DefaultAlertThreshold
	}
	if cfg.WeekStart == "" {
		cfg.WeekStart = DefaultWeekStart
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
}

func applyBreakerDefaults(cfg *BreakerConfig) {
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.DailyCooldown == 0 {
		cfg.DailyCooldown = DefaultDailyCooldown
	}
	if cfg.WeeklyCooldown == 0 {
		cfg.WeeklyCooldown = DefaultWeeklyCooldown
	}
	if cfg.MonthlyCooldown == 0 {
		cfg.MonthlyCooldown = DefaultMonthlyCooldown
	}
	if cfg.RateLimitCooldown == 0 {
		cfg.RateLimitCooldown = DefaultRateLimitCooldown
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultCacheBackend
	}
	if cfg.TTL == nil {
		cfg.TTL = Duration(DefaultCacheTTL)
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultCacheSweepInterval
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = DefaultCacheMaxEntries
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = DefaultRedisAddress
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = DefaultRedisDialTimeout
	}
}

func applyPricingDefaults(cfg *PricingConfig) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultPricingModel
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultPricing()
	}
}

func applyTokensDefaults(cfg *TokensConfig) {
	if cfg.Estimator == "" {
		cfg.Estimator = DefaultEstimator
	}
	if cfg.SafetyMargin == 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	if cfg.MessageOverhead == 0 {
		cfg.MessageOverhead = DefaultMessageOverhead
	}
	if cfg.ToolOverhead == 0 {
		cfg.ToolOverhead = DefaultToolOverhead
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultCharsPerToken()
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultStorageBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.SQLite.WALMode == nil {
		cfg.SQLite.WALMode = Bool(true)
	}
	if cfg.SnapshotSchedule == "" {
		cfg.SnapshotSchedule = DefaultSnapshotSchedule
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = DefaultPruneSchedule
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
}

func applyAlertsDefaults(cfg *AlertsConfig) {
	if cfg.Sink == "" {
		cfg.Sink = DefaultAlertSink
	}
	if cfg.Webhook.Timeout == 0 {
		cfg.Webhook.Timeout = DefaultWebhookTimeout
	}
	if cfg.DeliveryTimeout == 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}
}

func applyProviderDefaults(cfg *ProviderConfig) {
	if cfg.Type == "" {
		cfg.Type = DefaultProviderType
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultProviderTimeout
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = int(math.Max(1, math.Ceil(cfg.RateLimit.RequestsPerSecond)))
	}
	if cfg.RateLimit.IdleTimeout == 0 {
		cfg.RateLimit.IdleTimeout = DefaultRateLimitIdle
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.RedactPII == nil {
		cfg.Logging.RedactPII = Bool(true)
	}
	if cfg.Logging.File.MaxSizeMB == 0 {
		cfg.Logging.File.MaxSizeMB = DefaultLogFileMaxSizeMB
	}
	if cfg.Logging.File.MaxBackups == 0 {
		cfg.Logging.File.MaxBackups = DefaultLogFileMaxBackups
	}
	if cfg.Logging.File.MaxAgeDays == 0 {
		cfg.Logging.File.MaxAgeDays = DefaultLogFileMaxAgeDays
	}

	if cfg.Metrics.Enabled == nil {
		cfg.Metrics.Enabled = Bool(true)
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.Insecure == nil {
		cfg.Tracing.Insecure = Bool(true)
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSample
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}
}
