package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"mercator-hq/tollgate/pkg/providers"
)

// Config configures an OpenAI-compatible client.
type Config struct {
	// Name is reported by Provider.Name. Defaults to "openai".
	Name string

	// BaseURL overrides the API endpoint, e.g. for a local OpenAI-compatible server.
	BaseURL string

	// APIKey authenticates every request.
	APIKey string

	// Organization is sent as the OpenAI-Organization header when set.
	Organization string

	// Timeout bounds a single HTTP round trip. Zero means no client timeout;
	// the caller's context still applies.
	Timeout time.Duration
}

// Client sends chat completions through github.com/sashabaranov/go-openai and
// normalizes responses and failures into the providers types.
type Client struct {
	name    string
	timeout time.Duration
	client  *goopenai.Client
}

// NewClient creates a client. BaseURL is optional.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai: api key is required when using the default endpoint")
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}

	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Organization != "" {
		oc.OrgID = cfg.Organization
	}
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &retryAfterTransport{base: http.DefaultTransport},
	}

	return &Client{
		name:    cfg.Name,
		timeout: cfg.Timeout,
		client:  goopenai.NewClientWithConfig(oc),
	}, nil
}

// Name returns the configured provider name.
func (c *Client) Name() string { return c.name }

// Close is a no-op; the underlying HTTP client holds no exclusive resources.
func (c *Client) Close() error { return nil }

// SendCompletion sends req as a chat completion.
func (c *Client) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	hint := new(retryHint)
	resp, err := c.client.CreateChatCompletion(withRetryHint(ctx, hint), toChatRequest(req))
	if err != nil {
		return nil, c.mapError(ctx, err, hint)
	}
	if len(resp.Choices) == 0 {
		return nil, &providers.ProviderError{Provider: c.name, Message: "response contained no choices"}
	}

	return fromChatResponse(resp), nil
}

func (c *Client) mapError(ctx context.Context, err error, hint *retryHint) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &providers.TimeoutError{Provider: c.name, Timeout: c.timeout, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	status, message := 0, err.Error()
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, message = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &providers.RateLimitError{Provider: c.name, RetryAfter: hint.get(), Message: message}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &providers.AuthError{Provider: c.name, Message: message}
	default:
		return &providers.ProviderError{Provider: c.name, StatusCode: status, Message: message, Cause: err}
	}
}

func toChatRequest(req *providers.CompletionRequest) goopenai.ChatCompletionRequest {
	out := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		TopP:        float32(req.TopP),
		Stop:        req.Stop,
		User:        req.User,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, goopenai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		})
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}

func fromChatResponse(resp goopenai.ChatCompletionResponse) *providers.CompletionResponse {
	choice := resp.Choices[0]
	out := &providers.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Created:      resp.Created,
		Usage: providers.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, providers.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: providers.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

// go-openai drops response headers from its error values, so the Retry-After
// header of a 429 is captured by the transport into a per-call holder.

type retryHint struct{ seconds atomic.Int64 }

func (h *retryHint) get() time.Duration {
	return time.Duration(h.seconds.Load()) * time.Second
}

type retryHintKey struct{}

func withRetryHint(ctx context.Context, h *retryHint) context.Context {
	return context.WithValue(ctx, retryHintKey{}, h)
}

type retryAfterTransport struct {
	base http.RoundTripper
}

func (t *retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	if h, ok := req.Context().Value(retryHintKey{}).(*retryHint); ok {
		if secs, perr := strconv.ParseInt(resp.Header.Get("Retry-After"), 10, 64); perr == nil && secs > 0 {
			h.seconds.Store(secs)
		}
	}
	return resp, nil
}
