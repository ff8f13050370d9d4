package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/gateway"
	"mercator-hq/tollgate/pkg/processing/costs"
	"mercator-hq/tollgate/pkg/providerfactory"
	"mercator-hq/tollgate/pkg/server"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

const healthCheckTimeout = 5 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

The server listens on the configured address, accounts every chat completion
against the budget and forwards it to the configured provider. The
configuration file is watched and budget, breaker, cache and pricing changes
are applied without a restart.

Examples:
  # Start with default config
  tollgate run

  # Start with custom config
  tollgate run --config /etc/tollgate/config.yaml

  # Override listen address
  tollgate run --listen 0.0.0.0:8080

  # Validate config without starting server
  tollgate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the config file on change")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.ConfigFrom(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	tracer, err := tracing.New(cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()
	if tracer.Enabled() {
		fmt.Printf("✓ Tracing enabled (%s)\n", cfg.Telemetry.Tracing.Endpoint)
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	provider, err := providerfactory.NewProvider(cfg.Provider, logger.Logger)
	if err != nil {
		return err
	}
	defer provider.Close()
	fmt.Printf("✓ Provider initialized (%s)\n", provider.Name())

	gw, err := gateway.New(cfg, provider,
		gateway.WithLogger(logger.Logger),
		gateway.WithMetrics(collector),
		gateway.WithTracer(tracer),
	)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := gw.Close(closeCtx); err != nil {
			logger.Error("gateway close failed", "error", err)
		}
	}()
	fmt.Printf("✓ Gateway ready (storage: %s, cache: %s)\n", cfg.Storage.Backend, cfg.Cache.Backend)

	checker := health.New(healthCheckTimeout)
	checker.RegisterCheck("storage", gw.CheckStore)
	checker.RegisterCheck("cache", gw.CheckCache)

	srv := server.New(cfg.Server, gw,
		server.WithLogger(logger.Logger),
		server.WithMetrics(collector, cfg.Telemetry.Metrics.Path),
		server.WithHealth(checker),
		server.WithVersion(Version, GitCommit, BuildDate),
	)

	if !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, 0, logger.Logger)
		if err != nil {
			logger.Warn("config watching disabled", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx, func(next *config.Config) {
					applyReload(gw, logger, next)
				}); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
			fmt.Printf("✓ Watching %s for changes\n", cfgFile)
		}
	}

	fmt.Printf("✓ Listening on %s\n\n", cfg.Server.ListenAddress)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Println("✓ Shutdown complete")
	return nil
}

// loadRunConfig loads the config file and applies the run flag overrides.
func loadRunConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenAddress == "" && runFlags.logLevel == "" {
		return cfg, nil
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// applyReload pushes the runtime-adjustable parts of a reloaded config into
// the gateway. The listener, storage backend and provider are fixed at start.
func applyReload(gw *gateway.Gateway, logger *logging.Logger, next *config.Config) {
	if err := gw.UpdateConfig(gateway.ConfigUpdateFrom(next)); err != nil {
		logger.Error("rejected reloaded config", "error", err)
		return
	}
	if err := gw.UpdateCostTable(costs.NewTable(next.Pricing).Entries()); err != nil {
		logger.Error("rejected reloaded pricing", "error", err)
		return
	}
	if runFlags.logLevel == "" {
		if err := logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
			logger.Warn("ignored reloaded log level", "error", err)
		}
	}
	logger.Info("configuration reloaded", "path", cfgFile)
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Tollgate %s\n", Version)
	fmt.Printf("  config:   %s\n", cfgFile)
	fmt.Printf("  provider: %s\n", providerTarget(cfg.Provider))
	fmt.Printf("  budget:   %s\n", budgetSummary(cfg.Budget))
	if cfg.Gateway.FallbackEnabled() && cfg.Gateway.FallbackModel != "" {
		fmt.Printf("  fallback: %s\n", cfg.Gateway.FallbackModel)
	}
	fmt.Println()
}

func providerTarget(p config.ProviderConfig) string {
	if p.BaseURL != "" {
		return p.Type + " (" + p.BaseURL + ")"
	}
	return p.Type
}

func budgetSummary(b config.BudgetConfig) string {
	var parts []string
	add := func(name string, units int64, cost float64) {
		if units > 0 {
			parts = append(parts, fmt.Sprintf("%s %d units", name, units))
		}
		if cost > 0 {
			parts = append(parts, fmt.Sprintf("%s $%.2f", name, cost))
		}
	}
	add("daily", b.DailyUnits, b.DailyCost)
	add("weekly", b.WeeklyUnits, b.WeeklyCost)
	add("monthly", b.MonthlyUnits, b.MonthlyCost)
	if len(parts) == 0 {
		return "unlimited"
	}
	return strings.Join(parts, ", ")
}
