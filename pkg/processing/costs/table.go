package costs

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"mercator-hq/tollgate/pkg/config"
)

// Table is the per-model cost table. Lookups try the exact model name, then
// the longest configured prefix (so "gpt-4" prices "gpt-4-0613"), then the
// designated default entry. It is safe for concurrent use.
type Table struct {
	mu           sync.RWMutex
	entries      map[string]Entry
	defaultModel string
}

// NewTable builds a table from the pricing configuration.
func NewTable(cfg config.PricingConfig) *Table {
	t := &Table{
		entries:      make(map[string]Entry, len(cfg.Models)),
		defaultModel: cfg.DefaultModel,
	}
	if t.defaultModel == "" {
		t.defaultModel = config.DefaultPricingModel
	}
	for name, p := range cfg.Models {
		t.entries[name] = Entry{
			Model:           name,
			InputCostPer1K:  p.Input,
			OutputCostPer1K: p.Output,
			MaxUnits:        p.MaxUnits,
		}
	}
	return t
}

// Lookup returns the entry that prices model. ok is false only when neither
// the model nor the default entry exists.
func (t *Table) Lookup(model string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lookupLocked(model)
}

func (t *Table) lookupLocked(model string) (Entry, bool) {
	if e, ok := t.entries[model]; ok {
		return e, true
	}

	var best Entry
	bestLen := 0
	for name, e := range t.entries {
		if name == t.defaultModel {
			continue
		}
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = e, len(name)
		}
	}
	if bestLen > 0 {
		return best, true
	}

	e, ok := t.entries[t.defaultModel]
	return e, ok
}

// MaxUnits returns the context limit of model, or 0 when unknown.
func (t *Table) MaxUnits(model string) int {
	e, _ := t.Lookup(model)
	return e.MaxUnits
}

// Merge inserts or replaces the given entries. Entries with an empty Model
// take their map key as the name.
func (t *Table) Merge(entries map[string]Entry) error {
	for name, e := range entries {
		if name == "" {
			return fmt.Errorf("pricing entry has an empty model name")
		}
		if e.InputCostPer1K < 0 || e.OutputCostPer1K < 0 {
			return fmt.Errorf("pricing for %q must not be negative", name)
		}
		if e.MaxUnits < 0 {
			return fmt.Errorf("max units for %q must not be negative", name)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for name, e := range entries {
		e.Model = name
		t.entries[name] = e
	}
	return nil
}

// Entries returns a copy of every entry.
func (t *Table) Entries() map[string]Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Entry, len(t.entries))
	for name, e := range t.entries {
		out[name] = e
	}
	return out
}

// Models returns the configured model names in sorted order.
func (t *Table) Models() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultModel returns the name of the fallback pricing entry.
func (t *Table) DefaultModel() string {
	return t.defaultModel
}
