package enforcement

import (
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/limits/breaker"
)

// Enforcer turns a breaker decision into an action.
//
// A refused call is downgraded to the fallback model when fallback is
// enabled and the fallback model is set and differs from the requested
// model. Otherwise it is blocked.
type Enforcer struct {
	mu     sync.RWMutex
	config Config
}

// NewEnforcer creates a new enforcer.
//
// Example:
//
//	enforcer := NewEnforcer(Config{
//	    FallbackEnabled: true,
//	    FallbackModel:   "gpt-3.5-turbo",
//	})
func NewEnforcer(config Config) *Enforcer {
	return &Enforcer{config: config}
}

// Enforce decides what happens to a call for model given the admission
// decision.
func (e *Enforcer) Enforce(decision breaker.Decision, model string) *Result {
	if decision.Allowed {
		return e.enforceAllow(model)
	}

	e.mu.RLock()
	cfg := e.config
	e.mu.RUnlock()

	fallback := cfg.FallbackModel
	if decision.SuggestedFallbackModel != "" {
		fallback = decision.SuggestedFallbackModel
	}
	if cfg.FallbackEnabled && fallback != "" && fallback != model {
		return e.enforceDowngrade(fallback, decision.Reason)
	}
	return e.enforceBlock(decision.Reason, decision.RetryAfter)
}

// enforceAllow allows the call to proceed.
func (e *Enforcer) enforceAllow(model string) *Result {
	return &Result{
		Allowed: true,
		Action:  ActionAllow,
		Model:   model,
	}
}

// enforceBlock blocks the call.
func (e *Enforcer) enforceBlock(reason string, retryAfter time.Duration) *Result {
	return &Result{
		Allowed:    false,
		Action:     ActionBlock,
		Reason:     reason,
		RetryAfter: retryAfter,
	}
}

// enforceDowngrade routes the call to the cheaper model.
func (e *Enforcer) enforceDowngrade(fallback, reason string) *Result {
	return &Result{
		Allowed: true,
		Action:  ActionDowngrade,
		Model:   fallback,
		Reason:  reason,
	}
}

// UpdateConfig replaces the fallback settings.
func (e *Enforcer) UpdateConfig(config Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = config
}

// GetConfig returns the current enforcer configuration.
func (e *Enforcer) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}
