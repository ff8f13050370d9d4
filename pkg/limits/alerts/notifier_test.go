package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (s *recordingSink) Notify(_ context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return s.err
}

func (s *recordingSink) all() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func usage(window budget.Window, kind budget.Kind, limit, used float64) budget.WindowUsage {
	return budget.WindowUsage{Window: window, Kind: kind, Limit: limit, Used: used, Percent: used / limit * 100}
}

func newTestNotifier(sink Sink, opts ...Option) (*Notifier, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)}
	return NewNotifier(sink, 80, append([]Option{WithClock(clock.Now)}, opts...)...), clock
}

func TestNotifier_BelowThreshold(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink)

	if _, ok := n.CheckUsage([]budget.WindowUsage{usage(budget.WindowDaily, budget.KindUnits, 1000, 799)}); ok {
		t.Error("79.9% should not alert")
	}
	n.Wait()
	if len(sink.all()) != 0 {
		t.Errorf("got %d alerts", len(sink.all()))
	}
}

func TestNotifier_ConsolidatesBreaches(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink)

	alert, ok := n.CheckUsage([]budget.WindowUsage{
		usage(budget.WindowDaily, budget.KindUnits, 1000, 800),
		usage(budget.WindowDaily, budget.KindCost, 10, 1),
		usage(budget.WindowMonthly, budget.KindCost, 100, 95),
	})
	if !ok {
		t.Fatal("expected an alert at exactly the threshold")
	}
	n.Wait()

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("got %d alerts, want 1 consolidated alert", len(got))
	}
	if got[0].Kind != KindUsageThreshold || got[0].ID != alert.ID {
		t.Errorf("alert = %+v", got[0])
	}
	if len(got[0].Breaches) != 2 {
		t.Errorf("Breaches = %+v, want daily units and monthly cost", got[0].Breaches)
	}
}

func TestNotifier_AlertsEveryBreachByDefault(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink)
	daily := []budget.WindowUsage{usage(budget.WindowDaily, budget.KindUnits, 1000, 850)}

	for i := 0; i < 3; i++ {
		if _, ok := n.CheckUsage(daily); !ok {
			t.Errorf("reading %d: a breach should alert", i)
		}
	}
	n.Wait()
	if len(sink.all()) != 3 {
		t.Errorf("got %d alerts, want 3", len(sink.all()))
	}
}

func TestNotifier_SuppressesSameSetSameDay(t *testing.T) {
	sink := &recordingSink{}
	n, clock := newTestNotifier(sink, WithSuppressRepeats(true))
	daily := usage(budget.WindowDaily, budget.KindUnits, 1000, 850)
	weekly := usage(budget.WindowWeekly, budget.KindUnits, 5000, 4500)

	n.CheckUsage([]budget.WindowUsage{daily})
	if _, ok := n.CheckUsage([]budget.WindowUsage{daily}); ok {
		t.Error("unchanged set on the same day should be suppressed")
	}

	if _, ok := n.CheckUsage([]budget.WindowUsage{daily, weekly}); !ok {
		t.Error("a new breached ceiling should alert")
	}

	clock.Advance(24 * time.Hour)
	if _, ok := n.CheckUsage([]budget.WindowUsage{daily, weekly}); !ok {
		t.Error("the same set on a new day should alert")
	}

	n.Wait()
	if len(sink.all()) != 3 {
		t.Errorf("got %d alerts, want 3", len(sink.all()))
	}
}

func TestNotifier_ResetSuppression(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink, WithSuppressRepeats(true))
	daily := []budget.WindowUsage{usage(budget.WindowDaily, budget.KindUnits, 1000, 900)}

	n.CheckUsage(daily)
	n.ResetSuppression()
	if _, ok := n.CheckUsage(daily); !ok {
		t.Error("after ResetSuppression the same set should alert again")
	}
	n.Wait()
}

func TestNotifier_ClearedBreachAlertsAgain(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink, WithSuppressRepeats(true))
	over := []budget.WindowUsage{usage(budget.WindowDaily, budget.KindUnits, 1000, 900)}
	under := []budget.WindowUsage{usage(budget.WindowDaily, budget.KindUnits, 2000, 900)}

	n.CheckUsage(over)
	n.CheckUsage(under)
	if _, ok := n.CheckUsage(over); !ok {
		t.Error("crossing again after dropping below should alert")
	}
	n.Wait()
}

func TestNotifier_Disabled(t *testing.T) {
	sink := &recordingSink{}
	n, clock := newTestNotifier(sink)
	n.SetEnabled(false)

	n.CheckUsage([]budget.WindowUsage{usage(budget.WindowDaily, budget.KindUnits, 100, 100)})
	n.NotifyTransition(breaker.Transition{From: breaker.StateClosed, To: breaker.StateOpen, At: clock.Now()})
	n.Wait()

	if len(sink.all()) != 0 {
		t.Errorf("disabled notifier delivered %d alerts", len(sink.all()))
	}
}

func TestNotifier_Transition(t *testing.T) {
	sink := &recordingSink{}
	n, clock := newTestNotifier(sink)

	n.NotifyTransition(breaker.Transition{
		From:   breaker.StateClosed,
		To:     breaker.StateOpen,
		Reason: breaker.ReasonDailyQuota,
		At:     clock.Now(),
	})
	n.Wait()

	got := sink.all()
	if len(got) != 1 || got[0].Kind != KindCircuitTransition {
		t.Fatalf("alerts = %+v", got)
	}
	if got[0].Transition == nil || got[0].Transition.Reason != breaker.ReasonDailyQuota {
		t.Errorf("Transition = %+v", got[0].Transition)
	}
}

func TestNotifier_FailureIsCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}

	var mu sync.Mutex
	var hooked []error
	n := NewNotifier(sink, 80, WithDeliveryHook(func(_ Alert, err error) {
		mu.Lock()
		hooked = append(hooked, err)
		mu.Unlock()
	}))

	n.NotifyTransition(breaker.Transition{From: breaker.StateOpen, To: breaker.StateClosed})
	n.Wait()

	delivered, failed := n.Stats()
	if delivered != 0 || failed != 1 {
		t.Errorf("Stats = (%d, %d), want (0, 1)", delivered, failed)
	}
	if len(hooked) != 1 || hooked[0] == nil {
		t.Errorf("hook saw %v", hooked)
	}
}

func TestNotifier_DeliveryTimeout(t *testing.T) {
	blocked := SinkFunc(func(ctx context.Context, _ Alert) error {
		<-ctx.Done()
		return ctx.Err()
	})
	n := NewNotifier(blocked, 80, WithDeliveryTimeout(10*time.Millisecond))

	n.NotifyTransition(breaker.Transition{})
	n.Wait()

	if _, failed := n.Stats(); failed != 1 {
		t.Errorf("timed out delivery should count as failed, got %d", failed)
	}
}

func TestWebhookSink(t *testing.T) {
	var (
		mu   sync.Mutex
		got  Alert
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(config.WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer hook"},
	})
	err := sink.Notify(context.Background(), Alert{ID: "a1", Kind: KindUsageThreshold, Message: "hi"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.ID != "a1" || got.Kind != KindUsageThreshold {
		t.Errorf("server received %+v", got)
	}
	if auth != "Bearer hook" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestWebhookSink_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(config.WebhookConfig{URL: srv.URL})
	if err := sink.Notify(context.Background(), Alert{}); err == nil {
		t.Error("expected error on 500")
	}
}

func TestNewSink(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AlertsConfig
		want    string
		wantErr bool
	}{
		{name: "default", cfg: config.AlertsConfig{}, want: "log"},
		{name: "log", cfg: config.AlertsConfig{Sink: "log"}, want: "log"},
		{name: "webhook", cfg: config.AlertsConfig{Sink: "webhook", Webhook: config.WebhookConfig{URL: "http://x"}}, want: "webhook"},
		{name: "webhook without url", cfg: config.AlertsConfig{Sink: "webhook"}, wantErr: true},
		{name: "unknown", cfg: config.AlertsConfig{Sink: "pager"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSink(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSink() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch sink.(type) {
			case *LogSink:
				if tt.want != "log" {
					t.Errorf("got LogSink, want %s", tt.want)
				}
			case *WebhookSink:
				if tt.want != "webhook" {
					t.Errorf("got WebhookSink, want %s", tt.want)
				}
			}
		})
	}
}
