package enforcement

import "time"

// Action defines what happens to a call after the admission check.
type Action string

const (
	// ActionAllow lets the call proceed on the requested model.
	ActionAllow Action = "allow"

	// ActionBlock rejects the call with a quota error.
	ActionBlock Action = "block"

	// ActionDowngrade lets the call proceed on the fallback model.
	ActionDowngrade Action = "downgrade"
)

// Config contains configuration for the enforcer.
type Config struct {
	// FallbackEnabled allows refused calls to be downgraded.
	FallbackEnabled bool

	// FallbackModel is the cheaper model refused calls are routed to.
	FallbackModel string
}

// Result contains the result of an enforcement action.
type Result struct {
	// Allowed indicates if the call should proceed.
	Allowed bool

	// Action is the enforcement action that was taken.
	Action Action

	// Model is the model the call proceeds with. It is empty when blocked.
	Model string

	// Reason explains why the requested model was refused.
	Reason string

	// RetryAfter suggests how long to wait before retrying (if action=block).
	RetryAfter time.Duration
}
