package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
)

// Notifier turns usage readings and breaker transitions into alerts and
// delivers them to a Sink without blocking the caller.
//
// Usage alerts are consolidated: one alert lists every ceiling at or above
// the threshold. By default every reading with a breach alerts; with
// WithSuppressRepeats, a repeat alert is suppressed while the set of breached
// ceilings is unchanged within the same calendar day.
type Notifier struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
	hook    func(Alert, error)

	mu        sync.Mutex
	threshold float64
	enabled   bool
	suppress  bool
	lastKey   string
	lastDay   string

	wg        sync.WaitGroup
	delivered atomic.Int64
	failed    atomic.Int64
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithSuppressRepeats drops a usage alert whose breached ceilings match the
// last alert of the same day.
func WithSuppressRepeats(suppress bool) Option {
	return func(n *Notifier) { n.suppress = suppress }
}

// WithLocation sets the location that defines "the same day" for suppression.
func WithLocation(loc *time.Location) Option {
	return func(n *Notifier) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithDeliveryHook registers a function called after every delivery attempt
// with the alert and the sink's error.
func WithDeliveryHook(fn func(Alert, error)) Option {
	return func(n *Notifier) { n.hook = fn }
}

// WithDeliveryTimeout bounds a single delivery.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// NewNotifier creates an enabled notifier. threshold is a percentage (0-100).
func NewNotifier(sink Sink, threshold float64, opts ...Option) *Notifier {
	n := &Notifier{
		sink:      sink,
		logger:    slog.Default(),
		timeout:   5 * time.Second,
		loc:       time.UTC,
		now:       time.Now,
		threshold: threshold,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "alerts")
	return n
}

// SetEnabled turns alerting on or off. Disabled notifiers drop every alert.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetThreshold changes the alert percentage.
func (n *Notifier) SetThreshold(threshold float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.threshold = threshold
}

// Threshold returns the alert percentage.
func (n *Notifier) Threshold() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.threshold
}

// CheckUsage emits a usage_threshold alert when any ceiling is at or above
// the threshold. With repeat suppression on, it stays silent while the
// breached set matches the last alert of the day. It returns the alert that
// was dispatched, if any.
func (n *Notifier) CheckUsage(usage []budget.WindowUsage) (Alert, bool) {
	n.mu.Lock()
	if !n.enabled || n.sink == nil {
		n.mu.Unlock()
		return Alert{}, false
	}

	threshold := n.threshold
	var breached []budget.WindowUsage
	for _, u := range usage {
		if u.Limit > 0 && u.Percent >= threshold {
			breached = append(breached, u)
		}
	}

	now := n.now()
	day := now.In(n.loc).Format(time.DateOnly)
	if len(breached) == 0 {
		// A later crossing of the same ceilings is news again.
		n.lastKey = ""
		n.mu.Unlock()
		return Alert{}, false
	}

	key := breachKey(breached)
	if n.suppress && key == n.lastKey && day == n.lastDay {
		n.mu.Unlock()
		return Alert{}, false
	}
	n.lastKey = key
	n.lastDay = day
	n.mu.Unlock()

	alert := Alert{
		ID:        uuid.NewString(),
		Kind:      KindUsageThreshold,
		Timestamp: now,
		Message:   usageMessage(breached, threshold),
		Threshold: threshold,
		Breaches:  breached,
	}
	n.dispatch(alert)
	return alert, true
}

// NotifyTransition emits a circuit_transition alert.
func (n *Notifier) NotifyTransition(t breaker.Transition) {
	n.mu.Lock()
	enabled := n.enabled && n.sink != nil
	n.mu.Unlock()
	if !enabled {
		return
	}

	tr := t
	n.dispatch(Alert{
		ID:         uuid.NewString(),
		Kind:       KindCircuitTransition,
		Timestamp:  t.At,
		Message:    fmt.Sprintf("circuit breaker %s -> %s (%s)", t.From, t.To, t.Reason),
		Transition: &tr,
	})
}

// ResetSuppression forgets the last usage alert, so the next crossing alerts
// again. It is called on the daily reset.
func (n *Notifier) ResetSuppression() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastKey = ""
	n.lastDay = ""
}

// Wait blocks until every in-flight delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Stats returns the number of successful and failed deliveries.
func (n *Notifier) Stats() (delivered, failed int64) {
	return n.delivered.Load(), n.failed.Load()
}

func (n *Notifier) dispatch(alert Alert) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		err := n.sink.Notify(ctx, alert)
		if err != nil {
			n.failed.Add(1)
			n.logger.Warn("alert delivery failed",
				"alert_id", alert.ID,
				"kind", alert.Kind,
				"error", err,
			)
		} else {
			n.delivered.Add(1)
		}
		if n.hook != nil {
			n.hook(alert, err)
		}
	}()
}

func breachKey(breached []budget.WindowUsage) string {
	parts := make([]string, len(breached))
	for i, b := range breached {
		parts[i] = string(b.Window) + "/" + string(b.Kind)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func usageMessage(breached []budget.WindowUsage, threshold float64) string {
	parts := make([]string, len(breached))
	for i, b := range breached {
		parts[i] = fmt.Sprintf("%s %s at %.1f%%", b.Window, b.Kind, b.Percent)
	}
	return fmt.Sprintf("usage at or above %.0f%%: %s", threshold, strings.Join(parts, ", "))
}
