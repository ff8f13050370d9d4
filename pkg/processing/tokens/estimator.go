package tokens

import (
	"encoding/json"
	"fmt"
	"math"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/providers"
)

// Counter counts the units in a piece of text for a model.
type Counter interface {
	Count(text, model string) int
}

// LimitLookup reports a model's context limit in units, or 0 when unknown.
type LimitLookup interface {
	MaxUnits(model string) int
}

// Estimate contains detailed unit estimation results for one request.
type Estimate struct {
	// Model is the model used for estimation.
	Model string

	// SystemUnits is the count for system prompt messages.
	SystemUnits int

	// MessageUnits is the count for all other messages.
	MessageUnits int

	// ToolUnits is the count for serialized tool schemas.
	ToolUnits int

	// OverheadUnits are the per-message and per-tool framing units.
	OverheadUnits int

	// Margin is the safety margin applied to the raw prompt count.
	Margin float64

	// PromptUnits is the margin-adjusted prompt estimate.
	PromptUnits int

	// CompletionUnits is the projected completion size: the request's
	// MaxTokens capped at the model limit, or 0 when unset.
	CompletionUnits int
}

// Total returns the projected units for the whole call.
func (e *Estimate) Total() int {
	return e.PromptUnits + e.CompletionUnits
}

// RawPromptUnits returns the prompt count before the safety margin.
func (e *Estimate) RawPromptUnits() int {
	return e.SystemUnits + e.MessageUnits + e.ToolUnits + e.OverheadUnits
}

// UsageEstimator estimates request usage. It is pure and safe for concurrent use.
type UsageEstimator struct {
	counter         Counter
	limits          LimitLookup
	margin          float64
	messageOverhead int
	toolOverhead    int
}

// NewUsageEstimator creates an estimator from configuration. limits may be nil.
func NewUsageEstimator(cfg config.TokensConfig, counter Counter, limits LimitLookup) *UsageEstimator {
	margin := cfg.SafetyMargin
	if margin < 1.0 {
		margin = 1.0
	}
	return &UsageEstimator{
		counter:         counter,
		limits:          limits,
		margin:          margin,
		messageOverhead: cfg.MessageOverhead,
		toolOverhead:    cfg.ToolOverhead,
	}
}

// Estimate sums the counter over every message, the system prompt and each
// serialized tool schema, adds framing overhead and applies the safety margin.
func (e *UsageEstimator) Estimate(req *providers.CompletionRequest) (*Estimate, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	est := &Estimate{Model: req.Model, Margin: e.margin}

	for _, msg := range req.Messages {
		n := e.counter.Count(msg.Content, req.Model)
		if msg.Role == providers.RoleSystem {
			est.SystemUnits += n
		} else {
			est.MessageUnits += n
		}
		est.OverheadUnits += e.messageOverhead
	}

	for _, tool := range req.Tools {
		schema, err := json.Marshal(tool.Function)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize tool %q: %w", tool.Function.Name, err)
		}
		est.ToolUnits += e.counter.Count(string(schema), req.Model)
		est.OverheadUnits += e.toolOverhead
	}

	// The epsilon keeps float noise (100 * 1.1 = 110.00000000000001) from
	// rounding an exact product up by one.
	est.PromptUnits = int(math.Ceil(float64(est.RawPromptUnits())*e.margin - 1e-9))

	if req.MaxTokens > 0 {
		est.CompletionUnits = req.MaxTokens
		if e.limits != nil {
			if limit := e.limits.MaxUnits(req.Model); limit > 0 && est.CompletionUnits > limit {
				est.CompletionUnits = limit
			}
		}
	}

	return est, nil
}
