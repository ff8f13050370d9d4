package config

import "time"

// Config is the root configuration structure for Tollgate.
// It contains the budget, breaker, cache, pricing and estimation settings that
// govern outbound inference calls, plus the storage, alerting, provider, server
// and telemetry sections that surround them.
type Config struct {
	// Gateway contains the feature switches of the governed call path.
	Gateway GatewayConfig `yaml:"gateway"`

	// Budget contains the unit quotas and cost ceilings for the daily, weekly
	// and monthly windows.
	Budget BudgetConfig `yaml:"budget"`

	// Breaker contains circuit breaker timing.
	Breaker BreakerConfig `yaml:"breaker"`

	// Cache contains response cache settings.
	Cache CacheConfig `yaml:"cache"`

	// Pricing contains the per-model cost table.
	Pricing PricingConfig `yaml:"pricing"`

	// Tokens contains pre-flight usage estimation settings.
	Tokens TokensConfig `yaml:"tokens"`

	// Storage contains persistence settings for usage metrics, circuit state
	// and the usage audit log.
	Storage StorageConfig `yaml:"storage"`

	// Alerts contains alert delivery settings.
	Alerts AlertsConfig `yaml:"alerts"`

	// Provider contains the upstream inference API connection.
	Provider ProviderConfig `yaml:"provider"`

	// Server contains the HTTP listener configuration.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GatewayConfig contains the feature switches of the governed call path.
type GatewayConfig struct {
	// EnableCaching turns the response cache on or off.
	// Default: true
	EnableCaching *bool `yaml:"enable_caching"`

	// EnableFallback substitutes FallbackModel instead of rejecting a call
	// when admission is refused.
	// Default: true
	EnableFallback *bool `yaml:"enable_fallback"`

	// EnableAlerts turns threshold and circuit transition alerts on or off.
	// Default: true
	EnableAlerts *bool `yaml:"enable_alerts"`

	// FallbackModel is the cheaper model substituted on refusal.
	// Default: "gpt-3.5-turbo"
	FallbackModel string `yaml:"fallback_model"`
}

// CachingEnabled reports whether caching is on.
func (c GatewayConfig) CachingEnabled() bool { return c.EnableCaching == nil || *c.EnableCaching }

// FallbackEnabled reports whether fallback substitution is on.
func (c GatewayConfig) FallbackEnabled() bool { return c.EnableFallback == nil || *c.EnableFallback }

// AlertsEnabled reports whether alerting is on.
func (c GatewayConfig) AlertsEnabled() bool { return c.EnableAlerts == nil || *c.EnableAlerts }

// BudgetConfig contains the quotas and cost ceilings for each accounting window.
// A zero quota or cost limit means the ceiling is not enforced.
type BudgetConfig struct {
	// DailyUnits is the unit quota for the current calendar day.
	DailyUnits int64 `yaml:"daily_units"`

	// WeeklyUnits is the unit quota for the current calendar week.
	WeeklyUnits int64 `yaml:"weekly_units"`

	// MonthlyUnits is the unit quota for the current calendar month.
	MonthlyUnits int64 `yaml:"monthly_units"`

	// DailyCost is the spend ceiling in USD for the current calendar day.
	DailyCost float64 `yaml:"daily_cost"`

	// WeeklyCost is the spend ceiling in USD for the current calendar week.
	WeeklyCost float64 `yaml:"weekly_cost"`

	// MonthlyCost is the spend ceiling in USD for the current calendar month.
	MonthlyCost float64 `yaml:"monthly_cost"`

	// AlertThreshold is the percentage (0-100) of any ceiling at which a
	// usage alert is emitted.
	// Default: 80
	AlertThreshold float64 `yaml:"alert_threshold"`

	// WeekStart is the weekday on which a new calendar week begins.
	// Valid values: "sunday" through "saturday".
	// Default: "monday"
	WeekStart string `yaml:"week_start"`

	// Timezone is the IANA location used for calendar boundaries.
	// Default: "UTC"
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone, falling back to UTC.
func (c BudgetConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Weekday resolves WeekStart, falling back to Monday.
func (c BudgetConfig) Weekday() time.Weekday {
	if d, ok := weekdays[c.WeekStart]; ok {
		return d
	}
	return time.Monday
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// BreakerConfig contains circuit breaker timing.
type BreakerConfig struct {
	// ProbeInterval is how long the breaker stays open before admitting a
	// half-open probe, regardless of why it opened.
	// Default: 5m
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// DailyCooldown is the cooldown reported when a daily ceiling opens the breaker.
	// Default: 1h
	DailyCooldown time.Duration `yaml:"daily_cooldown"`

	// WeeklyCooldown is the cooldown reported when a weekly ceiling opens the breaker.
	// Default: 6h
	WeeklyCooldown time.Duration `yaml:"weekly_cooldown"`

	// MonthlyCooldown is the cooldown reported when a monthly ceiling opens the breaker.
	// Default: 6h
	MonthlyCooldown time.Duration `yaml:"monthly_cooldown"`

	// RateLimitCooldown is the cooldown reported when the upstream API
	// throttles a call.
	// Default: 1m
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	// Backend selects the cache store.
	// Valid values: "memory", "redis"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// TTL is how long a cached response stays valid. Zero disables caching.
	// Default: 1h
	TTL *time.Duration `yaml:"ttl"`

	// SweepInterval is how often expired entries are removed.
	// Default: 60s
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// MaxEntries bounds the memory store. Zero means unbounded.
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// Redis contains the redis store connection.
	Redis RedisConfig `yaml:"redis"`
}

// EffectiveTTL returns the configured TTL, treating an unset value as the default.
func (c CacheConfig) EffectiveTTL() time.Duration {
	if c.TTL == nil {
		return DefaultCacheTTL
	}
	return *c.TTL
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	// Address is the redis server address in host:port form.
	// Default: "127.0.0.1:6379"
	Address string `yaml:"address"`

	// Password is the redis AUTH password.
	Password string `yaml:"password"`

	// DB is the redis logical database.
	DB int `yaml:"db"`

	// KeyPrefix is prepended to every cache key.
	// Default: "tollgate:cache:"
	KeyPrefix string `yaml:"key_prefix"`

	// DialTimeout bounds connection establishment.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// PricingConfig contains the per-model cost table.
type PricingConfig struct {
	// DefaultModel names the entry used when a model has no pricing.
	// Default: "default"
	DefaultModel string `yaml:"default_model"`

	// Models maps a model name (or name prefix) to its pricing.
	Models map[string]ModelPricing `yaml:"models"`
}

// ModelPricing is the cost of one model, in USD per 1,000 units.
type ModelPricing struct {
	// Input is the cost per 1,000 prompt units.
	Input float64 `yaml:"input" json:"input"`

	// Output is the cost per 1,000 completion units.
	Output float64 `yaml:"output" json:"output"`

	// MaxUnits is the model's context limit. Zero means unknown.
	MaxUnits int `yaml:"max_units" json:"max_units"`
}

// TokensConfig contains pre-flight usage estimation settings.
type TokensConfig struct {
	// Estimator selects the unit counter.
	// Valid values: "simple", "tiktoken"
	// Default: "simple"
	Estimator string `yaml:"estimator"`

	// SafetyMargin multiplies every estimate to bias toward over-estimation.
	// Must be at least 1.0.
	// Default: 1.10
	SafetyMargin float64 `yaml:"safety_margin"`

	// MessageOverhead is added per message for role and framing units.
	// Default: 4
	MessageOverhead int `yaml:"message_overhead"`

	// ToolOverhead is added per tool schema.
	// Default: 10
	ToolOverhead int `yaml:"tool_overhead"`

	// Models maps a model name (or name prefix) to characters per unit for
	// the simple estimator.
	Models map[string]float64 `yaml:"models"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// Backend selects the persistence store.
	// Valid values: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains sqlite store settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// SnapshotSchedule is the cron schedule for persisting metrics and
	// circuit state. Empty disables scheduled snapshots.
	// Default: "@every 30s"
	SnapshotSchedule string `yaml:"snapshot_schedule"`

	// PruneSchedule is the cron schedule for pruning old usage records.
	// Empty disables pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// RetentionDays is how long usage records are kept.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`
}

// SQLiteConfig contains sqlite store settings.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/tollgate.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`
}

// AlertsConfig contains alert delivery settings.
type AlertsConfig struct {
	// Sink selects where alerts are delivered.
	// Valid values: "log", "webhook"
	// Default: "log"
	Sink string `yaml:"sink"`

	// Webhook contains webhook sink settings.
	Webhook WebhookConfig `yaml:"webhook"`

	// DeliveryTimeout bounds one delivery attempt.
	// Default: 10s
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`

	// SuppressRepeats drops a usage alert when the same ceilings were already
	// reported earlier that day. Off, every recording with a breach alerts.
	// Default: false
	SuppressRepeats bool `yaml:"suppress_repeats"`
}

// WebhookConfig contains webhook sink settings.
type WebhookConfig struct {
	// URL receives a JSON POST per alert.
	URL string `yaml:"url"`

	// Timeout is the HTTP client timeout.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers"`
}

// ProviderConfig contains the upstream inference API connection.
type ProviderConfig struct {
	// Type selects the provider implementation.
	// Valid values: "openai"
	// Default: "openai"
	Type string `yaml:"type"`

	// BaseURL overrides the API base URL, for OpenAI-compatible servers.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the API.
	APIKey string `yaml:"api_key"`

	// Organization is sent as the OpenAI organization header.
	Organization string `yaml:"organization"`

	// Timeout bounds one upstream call.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig contains the HTTP listener configuration.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response. It must
	// cover the upstream call.
	// Default: 90s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Auth restricts access to the chat and admin endpoints.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit bounds the request rate of each client on the chat endpoint.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig lists the operator keys of the admin API.
type AuthConfig struct {
	// AdminKeys are the bearer keys accepted on /admin/ endpoints. An empty
	// list leaves the admin API open.
	AdminKeys []string `yaml:"admin_keys"`
}

// RateLimitConfig configures per-client request rate limiting. Clients are
// identified by remote address.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client. Zero disables
	// rate limiting.
	// Default: 0
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests a client may send at once.
	// Default: RequestsPerSecond rounded up, at least 1
	Burst int `yaml:"burst"`

	// IdleTimeout is how long an inactive client's state is kept.
	// Default: 3m
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Valid values: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks API keys, bearer tokens and email addresses.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns are extra regular expressions to mask.
	RedactPatterns []string `yaml:"redact_patterns"`

	// File enables rotating file output in addition to stdout.
	File LogFileConfig `yaml:"file"`
}

// LogFileConfig contains rotating log file settings.
type LogFileConfig struct {
	// Path is the log file. Empty disables file output.
	Path string `yaml:"path"`

	// MaxSizeMB is the size at which the file is rotated.
	// Default: 100
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	// Default: 5
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays is how long rotated files are kept.
	// Default: 30
	MaxAgeDays int `yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `yaml:"compress"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace prefixes every metric name.
	// Default: "tollgate"
	Namespace string `yaml:"namespace"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled turns tracing on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure *bool `yaml:"insecure"`

	// SampleRatio is the fraction of traces kept, between 0 and 1.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service.name resource attribute.
	// Default: "tollgate"
	ServiceName string `yaml:"service_name"`
}

// Bool returns a pointer to b, for optional boolean fields.
func Bool(b bool) *bool { return &b }

// Duration returns a pointer to d, for optional duration fields.
func Duration(d time.Duration) *time.Duration { return &d }
