package providers

import (
	"context"
	"sync"

	"mercator-hq/tollgate/pkg/providers"
)

// MockProvider is a programmable providers.Provider for gateway tests.
// By default every call succeeds with the configured usage.
type MockProvider struct {
	name string

	mu         sync.Mutex
	calls      []*providers.CompletionRequest
	usage      providers.TokenUsage
	err        error
	errQueue   []error
	block      chan struct{}
	onCall     func(*providers.CompletionRequest)
	ignoreCtx  bool
	content    string
	modelUsage map[string]providers.TokenUsage
}

// NewMockProvider creates a mock provider reporting 10 prompt and 20
// completion units per call.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name:    name,
		content: "mock response",
		usage:   providers.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

// Name returns the provider name.
func (m *MockProvider) Name() string { return m.name }

// Close is a no-op.
func (m *MockProvider) Close() error { return nil }

// SetUsage sets the usage reported for every subsequent call. A zero value
// reports no usage.
func (m *MockProvider) SetUsage(prompt, completion int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = providers.TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

// SetModelUsage overrides the reported usage for one model.
func (m *MockProvider) SetModelUsage(model string, prompt, completion int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modelUsage == nil {
		m.modelUsage = make(map[string]providers.TokenUsage)
	}
	m.modelUsage[model] = providers.TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

// SetError makes every subsequent call fail with err. Nil restores success.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// QueueError makes the next call fail with err, once.
func (m *MockProvider) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errQueue = append(m.errQueue, err)
}

// Block makes calls wait until the returned function is called. When
// ignoreCtx is true, calls keep waiting after their context is cancelled and
// then still return a response, like an upstream that completes regardless.
func (m *MockProvider) Block(ignoreCtx bool) (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.block = ch
	m.ignoreCtx = ignoreCtx
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// OnCall registers a hook invoked at the start of every call.
func (m *MockProvider) OnCall(fn func(*providers.CompletionRequest)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCall = fn
}

// Calls returns the requests received so far.
func (m *MockProvider) Calls() []*providers.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*providers.CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of requests received.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// SendCompletion records the request and returns the programmed outcome.
func (m *MockProvider) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	hook, block, ignoreCtx := m.onCall, m.block, m.ignoreCtx
	var err error
	if len(m.errQueue) > 0 {
		err, m.errQueue = m.errQueue[0], m.errQueue[1:]
	} else {
		err = m.err
	}
	usage := m.usage
	if u, ok := m.modelUsage[req.Model]; ok {
		usage = u
	}
	content := m.content
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	if block != nil {
		if ignoreCtx {
			<-block
		} else {
			select {
			case <-block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if err != nil {
		return nil, err
	}

	return &providers.CompletionResponse{
		ID:           "mock-" + req.Model,
		Model:        req.Model,
		Content:      content,
		FinishReason: providers.FinishReasonStop,
		Usage:        usage,
	}, nil
}
