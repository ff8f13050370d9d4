package types

// ChatCompletionResponse is the body of a successful chat completion.
type ChatCompletionResponse struct {
	// ID is "chatcmpl-" followed by the upstream response ID.
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is a Unix timestamp in seconds.
	Created int64 `json:"created"`

	// Model is the model that served the call, which differs from the
	// requested one after a fallback.
	Model string `json:"model"`

	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`

	// Gateway carries the accounting outcome of the call. OpenAI clients
	// ignore unknown fields.
	Gateway *GatewayInfo `json:"x_tollgate,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`

	// FinishReason is stop, length, tool_calls or content_filter.
	FinishReason string `json:"finish_reason"`
}

// Usage is the unit consumption billed for the call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GatewayInfo describes how the gateway handled the call.
type GatewayInfo struct {
	RequestID      string  `json:"request_id"`
	RequestedModel string  `json:"requested_model"`
	Cost           float64 `json:"cost"`
	CacheHit       bool    `json:"cache_hit"`
	FallbackUsed   bool    `json:"fallback_used"`

	// Estimated is true when the API reported no usage and the billed
	// units are the gateway's own estimate.
	Estimated bool `json:"estimated"`
}
