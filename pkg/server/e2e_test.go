package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	mockproviders "mercator-hq/tollgate/internal/providers"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/gateway"
	"mercator-hq/tollgate/pkg/providerfactory"
)

// startUpstreamGateway runs a gateway over TCP in front of a mock upstream
// API and returns an OpenAI client pointed at it.
func startUpstreamGateway(t *testing.T, mutate func(*config.Config)) (*goopenai.Client, *mockproviders.MockServer) {
	t.Helper()

	upstream := mockproviders.NewMockServer()
	t.Cleanup(upstream.Close)

	cfg := config.NewDefaultConfig()
	cfg.Storage.SnapshotSchedule = ""
	cfg.Storage.PruneSchedule = ""
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Provider.BaseURL = upstream.URL() + "/v1"
	cfg.Provider.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	provider, err := providerfactory.NewProvider(cfg.Provider, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	t.Cleanup(func() { provider.Close() })

	gw, err := gateway.New(cfg, provider)
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	t.Cleanup(func() { gw.Close(context.Background()) })

	srv := New(cfg.Server, gw)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.Addr() == nil {
		t.Fatal("server did not start")
	}

	clientCfg := goopenai.DefaultConfig("unused")
	clientCfg.BaseURL = "http://" + srv.Addr().String() + "/v1"
	return goopenai.NewClientWithConfig(clientCfg), upstream
}

func ask(client *goopenai.Client, content string, maxTokens int) (goopenai.ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     "gpt-4o-mini",
		MaxTokens: maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: content},
		},
	})
}

func TestEndToEnd_DailyQuotaOverTCP(t *testing.T) {
	client, upstream := startUpstreamGateway(t, func(cfg *config.Config) {
		cfg.Budget.DailyUnits = 100
		cfg.Gateway.EnableFallback = config.Bool(false)
	})
	upstream.SetResponse("/v1/chat/completions", mockproviders.MockResponse{
		StatusCode: http.StatusOK,
		Body:       mockproviders.MockOpenAIResponseWithUsage("pong", "gpt-4o-mini", 40, 20),
	})

	resp, err := ask(client, "first question", 0)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "pong" {
		t.Errorf("unexpected choices %+v", resp.Choices)
	}
	if resp.Usage.PromptTokens != 40 || resp.Usage.CompletionTokens != 20 || resp.Usage.TotalTokens != 60 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}

	// Admitted on its estimate, then the reported usage crosses the ceiling.
	if _, err := ask(client, "second question", 10); err != nil {
		t.Fatalf("second call: %v", err)
	}

	_, err = ask(client, "third question", 10)
	var apiErr *goopenai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.HTTPStatusCode != http.StatusTooManyRequests || apiErr.Type != "insufficient_quota" {
		t.Errorf("expected 429 insufficient_quota, got %d %s", apiErr.HTTPStatusCode, apiErr.Type)
	}

	if got := upstream.GetRequestCount(); got != 2 {
		t.Errorf("expected 2 upstream calls, got %d", got)
	}
}

func TestEndToEnd_UpstreamRateLimit(t *testing.T) {
	client, upstream := startUpstreamGateway(t, func(cfg *config.Config) {
		cfg.Gateway.EnableFallback = config.Bool(false)
	})
	upstream.SetResponse("/v1/chat/completions", mockproviders.MockRateLimitError(7))

	_, err := ask(client, "hello", 0)
	var apiErr *goopenai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.HTTPStatusCode != http.StatusTooManyRequests || apiErr.Type != "rate_limit_exceeded" {
		t.Errorf("expected 429 rate_limit_exceeded, got %d %s", apiErr.HTTPStatusCode, apiErr.Type)
	}

	// The breaker is open, so the next call never reaches the API.
	_, err = ask(client, "hello again", 0)
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 while open, got %v", err)
	}
	if got := upstream.GetRequestCount(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}
