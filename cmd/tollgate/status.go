package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/proxy/handlers"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show budget usage and circuit state of a running gateway",
	Long: `Query the admin API of a running gateway and print the usage of every
budget window, the circuit breaker state and cache statistics.

Examples:
  tollgate status
  tollgate status --addr gateway.internal:8080 -o json
  tollgate status -v   # include per-model usage`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	var status handlers.Status
	if err := adminClient().Get(cmd.Context(), "/admin/status", &status); err != nil {
		return cli.NewCommandError("status", err)
	}

	if jsonOutput() {
		return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), status)
	}
	return printStatus(cmd.OutOrStdout(), status, verbose)
}

func printStatus(w io.Writer, s handlers.Status, perModel bool) error {
	printCircuit(w, s.Circuit)
	fmt.Fprintln(w)

	usage := &cli.Table{Headers: []string{"WINDOW", "KIND", "USED", "LIMIT", "PERCENT", "RESETS"}}
	for _, u := range s.Usage {
		usage.AddRow(u.Window, u.Kind, formatAmount(string(u.Kind), u.Used), formatAmount(string(u.Kind), u.Limit),
			fmt.Sprintf("%.1f%%", u.Percent), u.ResetsAt.Format(time.RFC3339))
	}
	if len(s.Usage) == 0 {
		fmt.Fprintln(w, "No budget ceilings configured")
	} else if err := usage.Render(w); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nCache: %d hits, %d misses\n", s.Cache.Hits, s.Cache.Misses)
	if s.NextSnapshot != nil {
		fmt.Fprintf(w, "Next snapshot: %s\n", s.NextSnapshot.Format(time.RFC3339))
	}
	if s.NextPrune != nil {
		fmt.Fprintf(w, "Next prune: %s\n", s.NextPrune.Format(time.RFC3339))
	}

	if perModel && len(s.Metrics.PerModel) > 0 {
		fmt.Fprintln(w)
		models := make([]string, 0, len(s.Metrics.PerModel))
		for m := range s.Metrics.PerModel {
			models = append(models, m)
		}
		sort.Strings(models)

		table := &cli.Table{Headers: []string{"MODEL", "CALLS", "UNITS", "COST"}}
		for _, m := range models {
			u := s.Metrics.PerModel[m]
			table.AddRow(m, u.Calls, u.Units, fmt.Sprintf("$%.4f", u.Cost))
		}
		return table.Render(w)
	}
	return nil
}

func printCircuit(w io.Writer, snap breaker.Snapshot) {
	fmt.Fprintf(w, "Circuit: %s", snap.State)
	if snap.State != breaker.StateClosed {
		if snap.OpenReason != "" {
			fmt.Fprintf(w, " (%s)", snap.OpenReason)
		}
		if !snap.CooldownUntil.IsZero() {
			fmt.Fprintf(w, ", cooldown until %s", snap.CooldownUntil.Format(time.RFC3339))
		}
	}
	fmt.Fprintln(w)
}

func formatAmount(kind string, v float64) string {
	if kind == "cost" {
		return fmt.Sprintf("$%.4f", v)
	}
	return fmt.Sprintf("%.0f", v)
}
