package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
)

var (
	// Global flags
	cfgFile   string
	verbose   bool
	adminAddr string
	output    string
	timeout   time.Duration
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "tollgate",
	Short: "Tollgate - budget-governed gateway for metered inference APIs",
	Long: `Tollgate sits in front of a metered inference API and keeps usage within
configured daily, weekly and monthly ceilings.

Calls that would exceed a ceiling are routed to a cheaper fallback model or
refused with a retry hint. Identical requests are answered from a response
cache, and every billed call is written to an audit log.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&adminAddr, "addr", "127.0.0.1:8080", "address of a running gateway (admin commands)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "admin request timeout")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "admin key (default $TOLLGATE_ADMIN_TOKEN)")
}

// formatter returns the formatter selected by --output.
func formatter() (cli.Formatter, error) {
	format, err := cli.ParseFormat(output)
	if err != nil {
		return nil, err
	}
	return cli.NewFormatter(format), nil
}

func jsonOutput() bool {
	format, _ := cli.ParseFormat(output)
	return format == cli.FormatJSON
}

func adminClient() *cli.Client {
	key := token
	if key == "" {
		key = os.Getenv("TOLLGATE_ADMIN_TOKEN")
	}
	return cli.NewClient(adminAddr, timeout).WithToken(key)
}
