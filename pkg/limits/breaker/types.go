package breaker

import "time"

// State is the admission state of the breaker.
type State string

const (
	// StateClosed admits calls normally.
	StateClosed State = "closed"

	// StateOpen refuses calls until the probe interval has passed.
	StateOpen State = "open"

	// StateHalfOpen re-checks the budget on the next admission.
	StateHalfOpen State = "half_open"
)

// Reason names the condition that opened the breaker.
type Reason string

const (
	ReasonDailyQuota       Reason = "daily quota"
	ReasonWeeklyQuota      Reason = "weekly quota"
	ReasonMonthlyQuota     Reason = "monthly quota"
	ReasonDailyCostLimit   Reason = "daily cost limit"
	ReasonWeeklyCostLimit  Reason = "weekly cost limit"
	ReasonMonthlyCostLimit Reason = "monthly cost limit"
	ReasonRateLimit        Reason = "upstream rate limit"
	ReasonManualReset      Reason = "manual reset"
	ReasonProbe            Reason = "probe interval elapsed"
	ReasonRecovered        Reason = "budget available"
)

// Reasons converts breach reason strings into breaker reasons.
func Reasons(reasons []string) []Reason {
	out := make([]Reason, len(reasons))
	for i, r := range reasons {
		out[i] = Reason(r)
	}
	return out
}

// Snapshot is a copy of the breaker state.
type Snapshot struct {
	State            State     `json:"state"`
	LastTransitionAt time.Time `json:"last_transition_at"`
	OpenReason       Reason    `json:"open_reason,omitempty"`

	// CooldownUntil is the retry-after hint reported while open.
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`
}

// Decision is the result of an admission check.
type Decision struct {
	// Allowed is true when the call may use the requested model.
	Allowed bool

	// Reason explains a refusal.
	Reason string

	// SuggestedFallbackModel is the configured fallback model, set on refusal.
	SuggestedFallbackModel string

	// RetryAfter is how long the caller should wait before retrying.
	RetryAfter time.Duration

	// State is the breaker state after the check.
	State State
}

// Transition describes one state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason Reason    `json:"reason"`
	At     time.Time `json:"at"`

	// CooldownUntil is set when To is StateOpen.
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`
}
