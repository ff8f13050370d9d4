// Package config provides configuration management for Tollgate.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TOLLGATE_SECTION_FIELD.
// For example:
//
//   - TOLLGATE_BUDGET_DAILY_UNITS overrides budget.daily_units
//   - TOLLGATE_PROVIDER_API_KEY overrides provider.api_key
//   - TOLLGATE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Values from YAML file
//  2. Default values for anything left unset (defined in defaults.go)
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// There is no process-wide configuration instance. The loaded *Config is passed
// to the components that need it, and Watcher delivers reloaded copies to a
// callback.
//
// # Example Configuration
//
//	budget:
//	  daily_units: 1000000
//	  monthly_cost: 250.00
//	  alert_threshold: 80
//	  week_start: monday
//
//	gateway:
//	  enable_fallback: true
//	  fallback_model: gpt-4o-mini
//
//	pricing:
//	  models:
//	    gpt-4o: {input: 0.0025, output: 0.01, max_units: 128000}
//	    default: {input: 0.03, output: 0.06, max_units: 8192}
package config
