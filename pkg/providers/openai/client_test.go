package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	testhelpers "mercator-hq/tollgate/internal/providers"
	"mercator-hq/tollgate/pkg/providers"
)

func newTestClient(t *testing.T, mock *testhelpers.MockServer, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL: mock.URL() + "/v1",
		APIKey:  "test-key",
		Timeout: timeout,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func testRequest() *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model:       "gpt-4",
		Temperature: 0.2,
		MaxTokens:   64,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "Be brief."},
			{Role: providers.RoleUser, Content: "Hello"},
		},
	}
}

func TestClient_SendCompletion(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MockOpenAIResponse("Hello, world!", "gpt-4"),
	})

	client := newTestClient(t, mock, 5*time.Second)
	resp, err := client.SendCompletion(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SendCompletion failed: %v", err)
	}

	if resp.Content != "Hello, world!" {
		t.Errorf("expected content %q, got %q", "Hello, world!", resp.Content)
	}
	if resp.Model != "gpt-4" {
		t.Errorf("expected model gpt-4, got %s", resp.Model)
	}
	if resp.Usage.PromptTokens != 10 || resp.Usage.CompletionTokens != 20 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if resp.FinishReason != providers.FinishReasonStop {
		t.Errorf("expected finish reason %q, got %q", providers.FinishReasonStop, resp.FinishReason)
	}

	body := mock.LastRequestBody()
	if body["model"] != "gpt-4" {
		t.Errorf("expected model in request body, got %v", body["model"])
	}
	if msgs, ok := body["messages"].([]interface{}); !ok || len(msgs) != 2 {
		t.Errorf("expected 2 messages in request body, got %v", body["messages"])
	}
	if body["max_tokens"] != float64(64) {
		t.Errorf("expected max_tokens 64, got %v", body["max_tokens"])
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		response testhelpers.MockResponse
		check    func(t *testing.T, err error)
	}{
		{
			name:     "rate limit",
			response: testhelpers.MockRateLimitError(30),
			check: func(t *testing.T, err error) {
				var rl *providers.RateLimitError
				if !errors.As(err, &rl) {
					t.Fatalf("expected RateLimitError, got %T: %v", err, err)
				}
				if rl.RetryAfter != 30*time.Second {
					t.Errorf("expected retry after 30s, got %v", rl.RetryAfter)
				}
				if !providers.IsRateLimit(err) {
					t.Error("IsRateLimit should report true")
				}
			},
		},
		{
			name:     "auth",
			response: testhelpers.MockAuthError(),
			check: func(t *testing.T, err error) {
				var ae *providers.AuthError
				if !errors.As(err, &ae) {
					t.Fatalf("expected AuthError, got %T: %v", err, err)
				}
			},
		},
		{
			name:     "server error",
			response: testhelpers.MockServerError(),
			check: func(t *testing.T, err error) {
				var pe *providers.ProviderError
				if !errors.As(err, &pe) {
					t.Fatalf("expected ProviderError, got %T: %v", err, err)
				}
				if pe.StatusCode != 500 {
					t.Errorf("expected status 500, got %d", pe.StatusCode)
				}
				if providers.IsRateLimit(err) {
					t.Error("server error must not look like a rate limit")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testhelpers.NewMockServer()
			defer mock.Close()
			mock.SetResponse("/v1/chat/completions", tt.response)

			client := newTestClient(t, mock, 5*time.Second)
			_, err := client.SendCompletion(context.Background(), testRequest())
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MockOpenAIResponse("late", "gpt-4"),
		Delay:      500 * time.Millisecond,
	})

	client := newTestClient(t, mock, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.SendCompletion(ctx, testRequest())
	var te *providers.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout should unwrap to context.DeadlineExceeded")
	}
}

func TestClient_ValidatesRequest(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	client := newTestClient(t, mock, time.Second)
	_, err := client.SendCompletion(context.Background(), &providers.CompletionRequest{Model: "gpt-4"})

	var ve *providers.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Error("invalid request must not reach the server")
	}
}

func TestNewClient_RequiresKeyForDefaultEndpoint(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error without api key or base url")
	}
}
