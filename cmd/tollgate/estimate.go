package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/processing/costs"
	"mercator-hq/tollgate/pkg/processing/tokens"
	"mercator-hq/tollgate/pkg/providers"
)

var estimateFlags struct {
	model      string
	prompt     string
	promptFile string
	system     string
	maxTokens  int
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the units and cost of a request",
	Long: `Run the gateway's pre-flight estimator over a prompt and price the result
with the configured cost table. Nothing is sent upstream.

Examples:
  tollgate estimate --model gpt-4o --prompt "Summarize this" --max-tokens 500
  tollgate estimate --model gpt-4o-mini --file prompt.txt --system "Be brief."`,
	Args: cobra.NoArgs,
	RunE: estimateRequest,
}

// estimateResult is the output of the estimate command.
type estimateResult struct {
	Model           string  `json:"model"`
	PricedAs        string  `json:"priced_as"`
	RawPromptUnits  int     `json:"raw_prompt_units"`
	PromptUnits     int     `json:"prompt_units"`
	CompletionUnits int     `json:"completion_units"`
	TotalUnits      int     `json:"total_units"`
	InputCost       float64 `json:"input_cost"`
	OutputCost      float64 `json:"output_cost"`
	TotalCost       float64 `json:"total_cost"`
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringVarP(&estimateFlags.model, "model", "m", "", "model to price (required)")
	estimateCmd.Flags().StringVarP(&estimateFlags.prompt, "prompt", "p", "", "user prompt")
	estimateCmd.Flags().StringVarP(&estimateFlags.promptFile, "file", "f", "", "read the user prompt from a file")
	estimateCmd.Flags().StringVar(&estimateFlags.system, "system", "", "system prompt")
	estimateCmd.Flags().IntVar(&estimateFlags.maxTokens, "max-tokens", 0, "completion limit to project")
	_ = estimateCmd.MarkFlagRequired("model")
}

func estimateRequest(cmd *cobra.Command, args []string) error {
	prompt := estimateFlags.prompt
	if estimateFlags.promptFile != "" {
		data, err := os.ReadFile(estimateFlags.promptFile)
		if err != nil {
			return cli.NewCommandError("estimate", err)
		}
		prompt = string(data)
	}
	if prompt == "" && estimateFlags.system == "" {
		return cli.NewCommandError("estimate", errors.New("a prompt is required (--prompt or --file)"))
	}

	req := &providers.CompletionRequest{
		Model:     estimateFlags.model,
		MaxTokens: estimateFlags.maxTokens,
	}
	if estimateFlags.system != "" {
		req.Messages = append(req.Messages, providers.Message{Role: providers.RoleSystem, Content: estimateFlags.system})
	}
	if prompt != "" {
		req.Messages = append(req.Messages, providers.Message{Role: providers.RoleUser, Content: prompt})
	}

	cfg, err := loadConfigOrDefault()
	if err != nil {
		return err
	}
	res, err := estimate(cfg, req)
	if err != nil {
		return cli.NewCommandError("estimate", err)
	}

	if jsonOutput() {
		return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), res)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model:       %s (priced as %s)\n", res.Model, res.PricedAs)
	fmt.Fprintf(out, "Prompt:      %d units (%d before margin)\n", res.PromptUnits, res.RawPromptUnits)
	fmt.Fprintf(out, "Completion:  %d units\n", res.CompletionUnits)
	fmt.Fprintf(out, "Total:       %d units\n", res.TotalUnits)
	fmt.Fprintf(out, "Cost:        $%.6f (input $%.6f, output $%.6f)\n", res.TotalCost, res.InputCost, res.OutputCost)
	return nil
}

// estimate projects usage and cost the way the gateway does before a call.
func estimate(cfg *config.Config, req *providers.CompletionRequest) (*estimateResult, error) {
	table := costs.NewTable(cfg.Pricing)
	estimator := tokens.NewUsageEstimator(cfg.Tokens, tokens.NewCounter(cfg.Tokens), table)

	est, err := estimator.Estimate(req)
	if err != nil {
		return nil, err
	}
	cost := costs.NewCalculator(table).Calculate(req.Model, est.PromptUnits, est.CompletionUnits)

	return &estimateResult{
		Model:           req.Model,
		PricedAs:        cost.Pricing.Model,
		RawPromptUnits:  est.RawPromptUnits(),
		PromptUnits:     est.PromptUnits,
		CompletionUnits: est.CompletionUnits,
		TotalUnits:      est.Total(),
		InputCost:       cost.InputCost,
		OutputCost:      cost.OutputCost,
		TotalCost:       cost.TotalCost,
	}, nil
}

// loadConfigOrDefault loads the config file, or the defaults when the file
// does not exist. Offline commands work without a config.
func loadConfigOrDefault() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return config.NewDefaultConfig(), nil
	}
	return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
}
