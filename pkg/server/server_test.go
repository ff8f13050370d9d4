package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mockproviders "mercator-hq/tollgate/internal/providers"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/gateway"
	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
	"mercator-hq/tollgate/pkg/providers"
	"mercator-hq/tollgate/pkg/proxy/handlers"
	"mercator-hq/tollgate/pkg/proxy/types"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
)

type testEnv struct {
	gw      *gateway.Gateway
	mock    *mockproviders.MockProvider
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Storage.SnapshotSchedule = ""
	cfg.Storage.PruneSchedule = ""
	if mutate != nil {
		mutate(cfg)
	}

	mock := mockproviders.NewMockProvider("mock")
	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	gw, err := gateway.New(cfg, mock, gateway.WithMetrics(collector))
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	t.Cleanup(func() { gw.Close(context.Background()) })

	checker := health.New(time.Second)
	checker.RegisterCheck("storage", gw.CheckStore)
	checker.RegisterCheck("cache", gw.CheckCache)

	srv := New(cfg.Server, gw,
		WithMetrics(collector, "/metrics"),
		WithHealth(checker),
		WithVersion("1.2.3", "abc123", "2025-01-15"),
	)
	return &testEnv{gw: gw, mock: mock, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, path, nil)
	case string:
		r = httptest.NewRequest(method, path, strings.NewReader(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func chatBody(model, content string, maxTokens int) types.ChatCompletionRequest {
	req := types.ChatCompletionRequest{
		Model:    model,
		Messages: []types.Message{{Role: "user", Content: content}},
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestChatCompletions_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.SetUsage(1000, 500)

	w := env.do(t, http.MethodPost, "/v1/chat/completions", chatBody("gpt-4", "hello", 0))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Tollgate-Cache"); got != "miss" {
		t.Errorf("X-Tollgate-Cache = %q, want miss", got)
	}
	if got := w.Header().Get("X-Tollgate-Model"); got != "gpt-4" {
		t.Errorf("X-Tollgate-Model = %q, want gpt-4", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}

	resp := decode[types.ChatCompletionResponse](t, w)
	if resp.Object != "chat.completion" || len(resp.Choices) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Usage.TotalTokens != 1500 {
		t.Errorf("total tokens = %d, want 1500", resp.Usage.TotalTokens)
	}
	if resp.Gateway == nil || resp.Gateway.Cost < 0.0599 || resp.Gateway.Cost > 0.0601 {
		t.Errorf("gateway info = %+v, want cost 0.06", resp.Gateway)
	}
	if resp.Gateway.RequestID != w.Header().Get("X-Request-ID") {
		t.Errorf("request ID %q does not match header", resp.Gateway.RequestID)
	}
}

func TestChatCompletions_CacheHit(t *testing.T) {
	env := newTestEnv(t, nil)

	body := chatBody("gpt-4", "same question", 0)
	first := env.do(t, http.MethodPost, "/v1/chat/completions", body)
	second := env.do(t, http.MethodPost, "/v1/chat/completions", body)

	if first.Header().Get("X-Tollgate-Cache") != "miss" || second.Header().Get("X-Tollgate-Cache") != "hit" {
		t.Errorf("cache headers = %q, %q; want miss, hit",
			first.Header().Get("X-Tollgate-Cache"), second.Header().Get("X-Tollgate-Cache"))
	}
	if env.mock.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1", env.mock.CallCount())
	}
}

func TestChatCompletions_Errors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.Config)
		setup      func(*testEnv)
		method     string
		body       any
		wantStatus int
		wantType   string
		wantRetry  string
	}{
		{
			name:       "malformed JSON",
			body:       `{"model":`,
			wantStatus: http.StatusBadRequest,
			wantType:   types.ErrorTypeInvalidRequest,
		},
		{
			name:       "missing messages",
			body:       types.ChatCompletionRequest{Model: "gpt-4"},
			wantStatus: http.StatusBadRequest,
			wantType:   types.ErrorTypeInvalidRequest,
		},
		{
			name: "streaming rejected",
			body: types.ChatCompletionRequest{
				Model:    "gpt-4",
				Messages: []types.Message{{Role: "user", Content: "hi"}},
				Stream:   true,
			},
			wantStatus: http.StatusBadRequest,
			wantType:   types.ErrorTypeInvalidRequest,
		},
		{
			name:       "wrong method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
			wantType:   types.ErrorTypeMethodNotAllowed,
		},
		{
			name: "upstream rate limit",
			setup: func(e *testEnv) {
				e.mock.SetError(&providers.RateLimitError{Provider: "mock", RetryAfter: 30 * time.Second})
			},
			body:       chatBody("gpt-4", "hi", 0),
			wantStatus: http.StatusTooManyRequests,
			wantType:   types.ErrorTypeRateLimitExceeded,
			wantRetry:  "30",
		},
		{
			name: "upstream failure",
			setup: func(e *testEnv) {
				e.mock.SetError(&providers.ProviderError{Provider: "mock", StatusCode: 500, Message: "boom"})
			},
			body:       chatBody("gpt-4", "hi", 0),
			wantStatus: http.StatusBadGateway,
			wantType:   types.ErrorTypeBadGateway,
		},
		{
			name: "upstream timeout",
			setup: func(e *testEnv) {
				e.mock.SetError(&providers.TimeoutError{Provider: "mock", Timeout: time.Second})
			},
			body:       chatBody("gpt-4", "hi", 0),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   types.ErrorTypeGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.mutate)
			if tt.setup != nil {
				tt.setup(env)
			}
			method := tt.method
			if method == "" {
				method = http.MethodPost
			}

			w := env.do(t, method, "/v1/chat/completions", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tt.wantStatus, w.Body.String())
			}
			resp := decode[types.ErrorResponse](t, w)
			if resp.Error.Type != tt.wantType {
				t.Errorf("error type = %q, want %q", resp.Error.Type, tt.wantType)
			}
			if got := w.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
		})
	}
}

func TestChatCompletions_DailyQuota(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Budget.DailyUnits = 1000
		cfg.Gateway.EnableFallback = config.Bool(false)
		cfg.Gateway.EnableCaching = config.Bool(false)
	})
	env.mock.SetUsage(0, 600)

	first := env.do(t, http.MethodPost, "/v1/chat/completions", chatBody("gpt-4", "hello", 600))
	if first.Code != http.StatusOK {
		t.Fatalf("first call status = %d, body %s", first.Code, first.Body.String())
	}

	second := env.do(t, http.MethodPost, "/v1/chat/completions", chatBody("gpt-4", "hello", 600))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second call status = %d, body %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing on quota refusal")
	}
	resp := decode[types.ErrorResponse](t, second)
	if resp.Error.Type != types.ErrorTypeQuotaExceeded || !strings.Contains(resp.Error.Message, "daily quota") {
		t.Errorf("error = %+v", resp.Error)
	}
	if env.mock.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1", env.mock.CallCount())
	}

	circuit := decode[breaker.Snapshot](t, env.do(t, http.MethodGet, "/admin/circuit", nil))
	if circuit.State != breaker.StateOpen {
		t.Errorf("circuit state = %q, want open", circuit.State)
	}

	if w := env.do(t, http.MethodPost, "/admin/reset/circuit", nil); w.Code != http.StatusOK {
		t.Fatalf("reset circuit status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/admin/reset/daily", nil); w.Code != http.StatusOK {
		t.Fatalf("reset daily status = %d", w.Code)
	}
	third := env.do(t, http.MethodPost, "/v1/chat/completions", chatBody("gpt-4", "hello", 600))
	if third.Code != http.StatusOK {
		t.Errorf("call after reset status = %d, body %s", third.Code, third.Body.String())
	}
}

func TestAdmin_MetricsAndStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.SetUsage(1000, 500)
	env.do(t, http.MethodPost, "/v1/chat/completions", chatBody("gpt-4", "hello", 0))

	m := decode[budget.UsageMetrics](t, env.do(t, http.MethodGet, "/admin/metrics", nil))
	if m.DailyUnits != 1500 || m.PerModel["gpt-4"].Calls != 1 {
		t.Errorf("metrics = %+v", m)
	}

	st := decode[handlers.Status](t, env.do(t, http.MethodGet, "/admin/status", nil))
	if st.Circuit.State != breaker.StateClosed {
		t.Errorf("circuit = %q", st.Circuit.State)
	}
	if st.Cache.Misses != 1 {
		t.Errorf("cache misses = %d, want 1", st.Cache.Misses)
	}
	if st.NextSnapshot != nil || st.NextPrune != nil {
		t.Error("maintenance reported although no schedule is configured")
	}

	if w := env.do(t, http.MethodPost, "/admin/metrics", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /admin/metrics status = %d, want 405", w.Code)
	}
}

func TestAdmin_PatchConfig(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, p handlers.ConfigPatch)
	}{
		{
			name:       "quota and ttl",
			body:       `{"daily_units": 50, "cache_ttl": "2m"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, p handlers.ConfigPatch) {
				if *p.DailyUnits != 50 || *p.CacheTTL != "2m0s" {
					t.Errorf("daily_units = %d, cache_ttl = %s", *p.DailyUnits, *p.CacheTTL)
				}
			},
		},
		{
			name:       "single breaker timing",
			body:       `{"breaker": {"probe_interval": "30s"}}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, p handlers.ConfigPatch) {
				if *p.Breaker.ProbeInterval != "30s" || *p.Breaker.DailyCooldown != "1h0m0s" {
					t.Errorf("breaker = %+v", p.Breaker)
				}
			},
		},
		{name: "bad duration", body: `{"cache_ttl": "soon"}`, wantStatus: http.StatusBadRequest},
		{name: "validation failure", body: `{"daily_units": -1}`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"daily_quota": 5}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(t, http.MethodPatch, "/admin/config", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.check != nil {
				tt.check(t, decode[handlers.ConfigPatch](t, w))
			}
		})
	}
}

func TestAdmin_Pricing(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPatch, "/admin/pricing", `{"my-model": {"input": 0.5, "output": 1.0}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	table := decode[map[string]handlers.PricingEntry](t, w)
	if table["my-model"].Output != 1.0 {
		t.Errorf("my-model = %+v", table["my-model"])
	}
	if _, ok := table["gpt-4"]; !ok {
		t.Error("merge dropped existing entries")
	}

	if c := env.gw.Calculate("my-model", 1000, 1000); c.TotalCost < 1.499 || c.TotalCost > 1.501 {
		t.Errorf("cost = %v, want 1.5", c.TotalCost)
	}

	bad := env.do(t, http.MethodPatch, "/admin/pricing", `{"my-model": {"input": -1, "output": 1}}`)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("negative rate status = %d, want 400", bad.Code)
	}
}

func TestAdmin_Records(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Gateway.EnableCaching = config.Bool(false)
	})
	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/v1/chat/completions", chatBody("gpt-4", "hello", 0))
	}

	t.Run("json with limit", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/records?limit=2", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var records []map[string]any
		if err := json.NewDecoder(w.Body).Decode(&records); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("got %d records, want 2", len(records))
		}
	})

	t.Run("csv", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/records?format=csv", nil)
		if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
			t.Errorf("Content-Type = %q", ct)
		}
		rows, err := csv.NewReader(w.Body).ReadAll()
		if err != nil {
			t.Fatalf("read csv: %v", err)
		}
		if len(rows) != 4 {
			t.Errorf("got %d rows, want header plus 3", len(rows))
		}
	})

	t.Run("future since", func(t *testing.T) {
		since := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		w := env.do(t, http.MethodGet, "/admin/records?since="+since, nil)
		if strings.TrimSpace(w.Body.String()) != "[]" {
			t.Errorf("body = %q, want []", w.Body.String())
		}
	})

	for _, q := range []string{"since=yesterday", "limit=-1", "format=xml"} {
		t.Run("invalid "+q, func(t *testing.T) {
			if w := env.do(t, http.MethodGet, "/admin/records?"+q, nil); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/v1/chat/completions", chatBody("gpt-4", "hello", 0))

	tests := []struct {
		path     string
		contains string
	}{
		{path: "/health", contains: `"status":"ok"`},
		{path: "/ready", contains: `"storage"`},
		{path: "/version", contains: `"version":"1.2.3"`},
		{path: "/metrics", contains: "tollgate_"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q: %s", tt.contains, w.Body.String())
			}
		})
	}
}

func TestChatCompletions_AfterGatewayClose(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.gw.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	w := env.do(t, http.MethodPost, "/v1/chat/completions", chatBody("gpt-4", "hello", 0))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want 503", w.Code)
	}
}

func TestAdminAuthAndRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Server.Auth.AdminKeys = []string{"admin-secret"}
		cfg.Server.RateLimit.RequestsPerSecond = 0.001
		cfg.Server.RateLimit.Burst = 1
	})
	env.mock.SetUsage(10, 5)

	send := func(method, path, key, remoteAddr string, body any) *httptest.ResponseRecorder {
		t.Helper()
		data, _ := json.Marshal(body)
		r := httptest.NewRequest(method, path, bytes.NewReader(data))
		r.RemoteAddr = remoteAddr
		if key != "" {
			r.Header.Set("Authorization", "Bearer "+key)
		}
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, r)
		return w
	}

	chat := chatBody("gpt-4", "hello", 0)
	tests := []struct {
		name       string
		method     string
		path       string
		key        string
		remoteAddr string
		wantStatus int
	}{
		{"chat needs no key", http.MethodPost, "/v1/chat/completions", "", "10.0.0.1:4000", http.StatusOK},
		{"chat over rate", http.MethodPost, "/v1/chat/completions", "", "10.0.0.1:4001", http.StatusTooManyRequests},
		{"other host has own bucket", http.MethodPost, "/v1/chat/completions", "", "10.0.0.2:4000", http.StatusOK},
		{"admin without key", http.MethodGet, "/admin/status", "", "10.0.0.3:4000", http.StatusUnauthorized},
		{"admin with wrong key", http.MethodGet, "/admin/status", "guess", "10.0.0.3:4000", http.StatusUnauthorized},
		{"admin with admin key", http.MethodGet, "/admin/status", "admin-secret", "10.0.0.3:4000", http.StatusOK},
		{"admin is not rate limited", http.MethodGet, "/admin/status", "admin-secret", "10.0.0.1:4000", http.StatusOK},
		{"health stays open", http.MethodGet, "/health", "", "10.0.0.3:4000", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.method == http.MethodPost {
				body = chat
			}
			w := send(tt.method, tt.path, tt.key, tt.remoteAddr, body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			var resp types.ErrorResponse
			switch tt.wantStatus {
			case http.StatusTooManyRequests:
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("invalid body: %v", err)
				}
				if resp.Error.Type != types.ErrorTypeRateLimitExceeded || w.Header().Get("Retry-After") == "" {
					t.Errorf("error = %+v, Retry-After = %q", resp.Error, w.Header().Get("Retry-After"))
				}
			case http.StatusUnauthorized:
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("invalid body: %v", err)
				}
				if resp.Error.Type != types.ErrorTypeAuthentication || w.Header().Get("WWW-Authenticate") == "" {
					t.Errorf("error = %+v, WWW-Authenticate = %q", resp.Error, w.Header().Get("WWW-Authenticate"))
				}
			}
		})
	}

	// The second host's identical request is a cache hit.
	if calls := env.mock.CallCount(); calls != 1 {
		t.Errorf("provider calls = %d, want 1", calls)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Storage.SnapshotSchedule = ""
	cfg.Storage.PruneSchedule = ""
	cfg.Server.ListenAddress = "127.0.0.1:0"

	gw, err := gateway.New(cfg, mockproviders.NewMockProvider("mock"))
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	defer gw.Close(context.Background())

	srv := New(cfg.Server, gw)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.Addr() == nil {
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail while running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if srv.IsRunning() {
		t.Error("server still running after shutdown")
	}
}
