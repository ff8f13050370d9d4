package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset counters or the circuit breaker of a running gateway",
}

var resetDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Zero the daily usage counters",
	Long: `Zero the daily unit and cost counters and the per-model breakdown.
Weekly and monthly counters are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var m budget.UsageMetrics
		if err := adminClient().Post(cmd.Context(), "/admin/reset/daily", &m); err != nil {
			return cli.NewCommandError("reset daily", err)
		}
		if jsonOutput() {
			return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), m)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Daily counters reset (weekly %d units, monthly %d units)\n",
			m.WeeklyUnits, m.MonthlyUnits)
		return nil
	},
}

var resetCircuitCmd = &cobra.Command{
	Use:   "circuit",
	Short: "Close the circuit breaker",
	Long: `Force the circuit breaker closed. A ceiling that is still exceeded trips
it again on the next call.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap breaker.Snapshot
		if err := adminClient().Post(cmd.Context(), "/admin/reset/circuit", &snap); err != nil {
			return cli.NewCommandError("reset circuit", err)
		}
		if jsonOutput() {
			return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), snap)
		}
		fmt.Fprint(cmd.OutOrStdout(), "✓ ")
		printCircuit(cmd.OutOrStdout(), snap)
		return nil
	},
}

func init() {
	resetCmd.AddCommand(resetDailyCmd, resetCircuitCmd)
	rootCmd.AddCommand(resetCmd)
}
