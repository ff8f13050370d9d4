package providers

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the external inference API as the gateway sees it: something
// that accepts a request and returns a response with optional usage, or fails.
//
// Implementations must respect context cancellation and return promptly when
// the context is cancelled. A throttled call must be reported as a
// *RateLimitError so the gateway can open its circuit breaker.
type Provider interface {
	// Name returns the provider's configured name (e.g., "openai").
	Name() string

	// SendCompletion sends a completion request and returns the normalized response.
	SendCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ValidateRequest checks the fields every provider needs before a request is
// priced or sent.
func ValidateRequest(req *CompletionRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}
	if strings.TrimSpace(req.Model) == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	for i, m := range req.Messages {
		if strings.TrimSpace(m.Role) == "" {
			return &ValidationError{Field: "messages", Message: fmt.Sprintf("message %d has no role", i)}
		}
	}
	if req.MaxTokens < 0 {
		return &ValidationError{Field: "max_tokens", Message: "must be non-negative"}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return &ValidationError{Field: "temperature", Message: "must be between 0 and 2"}
	}
	return nil
}
