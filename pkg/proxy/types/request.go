package types

import "fmt"

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Model is the requested model. The gateway may serve a cheaper
	// fallback model when a ceiling is reached.
	Model string `json:"model"`

	Messages []Message `json:"messages"`

	// Temperature is in [0, 2].
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens bounds the completion and feeds the usage estimate.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// TopP is in [0, 1].
	TopP *float64 `json:"top_p,omitempty"`

	// N must be 1 when set.
	N *int `json:"n,omitempty"`

	// Stream is rejected; responses are always returned whole.
	Stream bool `json:"stream,omitempty"`

	// Stop holds at most 4 sequences.
	Stop []string `json:"stop,omitempty"`

	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	User string `json:"user,omitempty"`

	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice is "none", "auto" or a function selector object. It is
	// accepted for compatibility and not forwarded.
	ToolChoice interface{} `json:"tool_choice,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Seed           *int            `json:"seed,omitempty"`
}

// Message is one conversation entry.
type Message struct {
	// Role is system, user, assistant or tool.
	Role string `json:"role"`

	// Content is a string or, for multimodal input, an array of parts.
	// Only text parts are billed and forwarded.
	Content interface{} `json:"content"`

	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool is a function the model may call.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function. Parameters is a JSON
// Schema object.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is a function call emitted by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ResponseFormat is {"type": "text"} or {"type": "json_object"}.
type ResponseFormat struct {
	Type string `json:"type"`
}

// Validate checks required fields and value ranges. It returns the first
// violation found.
func (r *ChatCompletionRequest) Validate() error {
	switch {
	case r.Model == "":
		return &ValidationError{Field: "model", Message: "model is required"}
	case r.Stream:
		return &ValidationError{Field: "stream", Message: "streaming is not supported"}
	case len(r.Messages) == 0:
		return &ValidationError{Field: "messages", Message: "messages must contain at least one message"}
	case r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2):
		return &ValidationError{Field: "temperature", Message: "temperature must be between 0.0 and 2.0"}
	case r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1):
		return &ValidationError{Field: "top_p", Message: "top_p must be between 0.0 and 1.0"}
	case r.MaxTokens != nil && *r.MaxTokens < 1:
		return &ValidationError{Field: "max_tokens", Message: "max_tokens must be greater than 0"}
	case r.N != nil && *r.N != 1:
		return &ValidationError{Field: "n", Message: "only a single choice is supported"}
	case len(r.Stop) > 4:
		return &ValidationError{Field: "stop", Message: "stop sequences must not exceed 4"}
	case r.PresencePenalty != nil && (*r.PresencePenalty < -2 || *r.PresencePenalty > 2):
		return &ValidationError{Field: "presence_penalty", Message: "presence_penalty must be between -2.0 and 2.0"}
	case r.FrequencyPenalty != nil && (*r.FrequencyPenalty < -2 || *r.FrequencyPenalty > 2):
		return &ValidationError{Field: "frequency_penalty", Message: "frequency_penalty must be between -2.0 and 2.0"}
	}

	for i, msg := range r.Messages {
		if msg.Role == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: "message role is required",
			}
		}
		if msg.Content == nil && len(msg.ToolCalls) == 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].content", i),
				Message: "message content is required when no tool_calls present",
			}
		}
	}
	return nil
}

// ValidationError is a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
