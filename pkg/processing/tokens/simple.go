package tokens

import (
	"strings"

	"mercator-hq/tollgate/pkg/config"
)

// defaultCharsPerUnit is used when neither the model nor "default" is configured.
const defaultCharsPerUnit = 4.0

// SimpleCounter implements character-based unit counting.
// It uses model-specific characters-per-unit ratios. It is fast (well under a
// millisecond) and needs no external data.
type SimpleCounter struct {
	ratios map[string]float64
}

// NewSimpleCounter creates a counter from the configured ratio table.
func NewSimpleCounter(ratios map[string]float64) *SimpleCounter {
	cp := make(map[string]float64, len(ratios))
	for k, v := range ratios {
		cp[k] = v
	}
	return &SimpleCounter{ratios: cp}
}

// Count returns len(text)/ratio rounded to nearest, with a minimum of one unit
// for non-empty text.
func (c *SimpleCounter) Count(text, model string) int {
	if text == "" {
		return 0
	}

	units := float64(len(text)) / c.charsPerUnit(model)
	if units < 1.0 {
		return 1
	}
	return int(units + 0.5)
}

// charsPerUnit tries the exact model, then the longest configured prefix
// (so "gpt-4" matches "gpt-4-0613"), then "default".
func (c *SimpleCounter) charsPerUnit(model string) float64 {
	if ratio, ok := c.ratios[model]; ok {
		return ratio
	}

	best, bestLen := 0.0, 0
	for prefix, ratio := range c.ratios {
		if prefix != "default" && strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = ratio, len(prefix)
		}
	}
	if bestLen > 0 {
		return best
	}

	if ratio, ok := c.ratios["default"]; ok {
		return ratio
	}
	return defaultCharsPerUnit
}

// NewCounter returns the counter selected by cfg.Estimator.
func NewCounter(cfg config.TokensConfig) Counter {
	simple := NewSimpleCounter(cfg.Models)
	if cfg.Estimator == "tiktoken" {
		return NewTiktokenCounter(simple)
	}
	return simple
}
