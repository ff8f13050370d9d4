package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and environment overrides, and
report every invalid field.

Examples:
  # Validate the default config
  tollgate validate

  # Validate a specific file
  tollgate validate --config /etc/tollgate/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var vErr config.ValidationError
		if !errors.As(err, &vErr) {
			return cli.NewConfigError("", err.Error())
		}
		fmt.Fprintf(out, "✗ %s has %d error(s):\n", cfgFile, len(vErr.Errors))
		for _, fe := range vErr.Errors {
			fmt.Fprintf(out, "  - %s: %s\n", fe.Field, fe.Message)
		}
		return cli.NewCommandError("validate", fmt.Errorf("%s is invalid", cfgFile))
	}

	fmt.Fprintf(out, "✓ %s is valid\n", cfgFile)
	if verbose {
		fmt.Fprintf(out, "  budget:   %s\n", budgetSummary(cfg.Budget))
		fmt.Fprintf(out, "  storage:  %s\n", cfg.Storage.Backend)
		fmt.Fprintf(out, "  cache:    %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.EffectiveTTL())
		fmt.Fprintf(out, "  provider: %s\n", providerTarget(cfg.Provider))
		fmt.Fprintf(out, "  pricing:  %d model(s)\n", len(cfg.Pricing.Models))
		fmt.Fprintf(out, "  server:   %s\n", serverSummary(cfg.Server))
	}
	return nil
}

func serverSummary(cfg config.ServerConfig) string {
	admin := "admin open"
	if n := len(cfg.Auth.AdminKeys); n > 0 {
		admin = fmt.Sprintf("admin %d key(s)", n)
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Sprintf("%s, %s, no rate limit", cfg.ListenAddress, admin)
	}
	return fmt.Sprintf("%s, %s, %g req/s burst %d", cfg.ListenAddress, admin, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
}
