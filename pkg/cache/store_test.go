package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/providers"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(config.RedisConfig{Address: mr.Addr(), KeyPrefix: "test:"})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func testStores(t *testing.T) map[string]Store {
	redisStore, _ := newMiniredisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(0),
		"redis":  redisStore,
	}
}

func TestStore_Contract(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

			got, err := store.Get(ctx, "missing")
			if err != nil || got != nil {
				t.Fatalf("Get(missing) = %v, %v; want nil, nil", got, err)
			}

			entry := &Entry{
				Fingerprint: "abc",
				Model:       "gpt-4",
				Response:    &providers.CompletionResponse{ID: "r1", Content: "hi"},
				Usage:       Usage{PromptUnits: 3, CompletionUnits: 4},
				CreatedAt:   created,
			}
			if err := store.Set(ctx, "abc", entry, time.Hour); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err = store.Get(ctx, "abc")
			if err != nil || got == nil {
				t.Fatalf("Get() = %v, %v", got, err)
			}
			if got.Model != "gpt-4" || got.Response.Content != "hi" || got.Usage.Total() != 7 {
				t.Errorf("Get() = %+v", got)
			}
			if !got.CreatedAt.Equal(created) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
			}

			if n, _ := store.Len(ctx); n != 1 {
				t.Errorf("Len = %d, want 1", n)
			}

			if err := store.Delete(ctx, "abc"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := store.Delete(ctx, "abc"); err != nil {
				t.Errorf("deleting an absent key: %v", err)
			}
			if got, _ := store.Get(ctx, "abc"); got != nil {
				t.Error("deleted entry still present")
			}
		})
	}
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	t0 := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	_ = s.Set(ctx, "a", &Entry{CreatedAt: t0}, 0)
	_ = s.Set(ctx, "b", &Entry{CreatedAt: t0.Add(time.Minute)}, 0)
	_ = s.Set(ctx, "a", &Entry{CreatedAt: t0.Add(2 * time.Minute)}, 0)
	if n, _ := s.Len(ctx); n != 2 {
		t.Fatalf("overwriting should not evict, Len = %d", n)
	}

	_ = s.Set(ctx, "c", &Entry{CreatedAt: t0.Add(3 * time.Minute)}, 0)
	if got, _ := s.Get(ctx, "b"); got != nil {
		t.Error("oldest entry b should have been evicted")
	}
	if got, _ := s.Get(ctx, "a"); got == nil {
		t.Error("a was refreshed and should remain")
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	e := &Entry{
		Model: "gpt-4",
		Response: &providers.CompletionResponse{
			Content:   "original",
			ToolCalls: []providers.ToolCall{{ID: "call-1"}},
		},
	}
	_ = s.Set(ctx, "k", e, 0)

	e.Model = "changed"
	e.Response.Content = "changed"
	got, _ := s.Get(ctx, "k")
	got.Model = "also changed"
	got.Response.Content = "also changed"
	got.Response.ToolCalls[0].ID = "also changed"

	again, _ := s.Get(ctx, "k")
	if again.Model != "gpt-4" {
		t.Errorf("stored entry was mutated: %q", again.Model)
	}
	if again.Response.Content != "original" || again.Response.ToolCalls[0].ID != "call-1" {
		t.Errorf("stored response was mutated: %+v", again.Response)
	}
}

func TestResponseCache_CallerMutationDoesNotLeak(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := New(store, time.Hour)
			req := &providers.CompletionRequest{
				Model:    "gpt-4",
				Messages: []providers.Message{{Role: providers.RoleUser, Content: "hello"}},
			}
			resp := &providers.CompletionResponse{ID: "r1", Content: "hi"}

			if err := c.Put(ctx, req, resp, Usage{PromptUnits: 1}); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			resp.Content = "edited by first caller"

			first, ok := c.Get(ctx, req)
			if !ok {
				t.Fatal("expected a hit")
			}
			first.Response.Content = "edited by second caller"

			second, ok := c.Get(ctx, req)
			if !ok {
				t.Fatal("expected a hit")
			}
			if second.Response.Content != "hi" {
				t.Errorf("cached content = %q, want %q", second.Response.Content, "hi")
			}
		})
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Get(ctx, "k"); err == nil {
		t.Error("Get with cancelled context should fail")
	}
	if err := s.Set(ctx, "k", &Entry{}, 0); err == nil {
		t.Error("Set with cancelled context should fail")
	}
}

func TestRedisStore_NativeExpiry(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "k", &Entry{Model: "gpt-4"}, time.Minute)
	if !mr.Exists("test:k") {
		t.Fatal("key should be stored under the prefix")
	}

	mr.FastForward(2 * time.Minute)
	if got, _ := store.Get(ctx, "k"); got != nil {
		t.Error("redis should have expired the key")
	}

	if n, err := store.Sweep(ctx, time.Now()); n != 0 || err != nil {
		t.Errorf("Sweep() = %d, %v; want no-op", n, err)
	}
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := newMiniredisStore(t)
	_ = mr.Set("test:bad", "not json")

	if _, err := store.Get(context.Background(), "bad"); err == nil {
		t.Error("expected decode error")
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(config.RedisConfig{Address: addr, DialTimeout: 200 * time.Millisecond})
	if err == nil {
		t.Error("expected connection error")
	}
}

func TestNewStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.CacheConfig
		wantErr bool
	}{
		{name: "default", cfg: config.CacheConfig{}},
		{name: "memory", cfg: config.CacheConfig{Backend: "memory", MaxEntries: 10}},
		{name: "redis", cfg: config.CacheConfig{Backend: "redis", Redis: config.RedisConfig{Address: mr.Addr()}}},
		{name: "unknown", cfg: config.CacheConfig{Backend: "memcached"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}
