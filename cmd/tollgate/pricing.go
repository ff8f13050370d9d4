package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/processing/costs"
	"mercator-hq/tollgate/pkg/proxy/handlers"
)

var pricingFlags struct {
	remote bool
}

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Show the per-model cost table",
	Long: `Print the cost table in USD per 1,000 units. By default the table is read
from the config file; --remote asks a running gateway, which includes
changes made through the admin API.

Examples:
  tollgate pricing
  tollgate pricing --remote --addr 127.0.0.1:8080`,
	Args: cobra.NoArgs,
	RunE: showPricing,
}

func init() {
	rootCmd.AddCommand(pricingCmd)
	pricingCmd.Flags().BoolVar(&pricingFlags.remote, "remote", false, "read the table from a running gateway")
}

func showPricing(cmd *cobra.Command, args []string) error {
	var entries map[string]handlers.PricingEntry
	defaultModel := ""

	if pricingFlags.remote {
		if err := adminClient().Get(cmd.Context(), "/admin/pricing", &entries); err != nil {
			return cli.NewCommandError("pricing", err)
		}
	} else {
		cfg, err := loadConfigOrDefault()
		if err != nil {
			return err
		}
		table := costs.NewTable(cfg.Pricing)
		defaultModel = table.DefaultModel()
		entries = make(map[string]handlers.PricingEntry)
		for name, e := range table.Entries() {
			entries[name] = handlers.PricingEntry{Input: e.InputCostPer1K, Output: e.OutputCostPer1K, MaxUnits: e.MaxUnits}
		}
	}

	f, err := formatter()
	if err != nil {
		return err
	}
	if jsonOutput() {
		return f.FormatTo(cmd.OutOrStdout(), entries)
	}
	return f.FormatTo(cmd.OutOrStdout(), pricingTable(entries, defaultModel))
}

func pricingTable(entries map[string]handlers.PricingEntry, defaultModel string) *cli.Table {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	table := &cli.Table{Headers: []string{"MODEL", "INPUT/1K", "OUTPUT/1K", "MAX UNITS"}}
	for _, name := range names {
		e := entries[name]
		label := name
		if name == defaultModel {
			label += " (default)"
		}
		maxUnits := "-"
		if e.MaxUnits > 0 {
			maxUnits = fmt.Sprint(e.MaxUnits)
		}
		table.AddRow(label, fmt.Sprintf("$%.6f", e.Input), fmt.Sprintf("$%.6f", e.Output), maxUnits)
	}
	return table
}
