package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"mercator-hq/tollgate/pkg/cache"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits/alerts"
	"mercator-hq/tollgate/pkg/limits/breaker"
	"mercator-hq/tollgate/pkg/limits/budget"
	"mercator-hq/tollgate/pkg/limits/enforcement"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/processing/costs"
	"mercator-hq/tollgate/pkg/processing/tokens"
	"mercator-hq/tollgate/pkg/providers"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

const (
	jobSnapshot = "snapshot"
	jobPrune    = "prune"

	persistTimeout = 5 * time.Second
)

// Result is the outcome of one governed call.
type Result struct {
	// Response is the completion returned by the API or the cache.
	Response *providers.CompletionResponse

	// Model is the model that served the call. It differs from
	// RequestedModel when the fallback model was substituted.
	Model string

	// RequestedModel is the model the caller asked for.
	RequestedModel string

	// Usage is the metered usage of the call. For a cache hit it is the
	// usage of the original call.
	Usage cache.Usage

	// Cost is what the call was charged, in USD. It is 0 for cache hits.
	Cost float64

	// CacheHit is true when no API call was made for this caller.
	CacheHit bool

	// FallbackUsed is true when admission substituted the fallback model.
	FallbackUsed bool

	// Estimated is true when the API reported no usage and the pre-flight
	// estimate was recorded instead.
	Estimated bool

	// RequestID identifies the call in logs and the audit log.
	RequestID string
}

// Gateway governs calls to a metered inference API. It owns one budget
// tracker, one circuit breaker and one response cache shared by all callers.
// It is safe for concurrent use.
type Gateway struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	provider   providers.Provider
	estimator  *tokens.UsageEstimator
	calculator *costs.Calculator
	tracker    *budget.Tracker
	breaker    *breaker.Breaker
	enforcer   *enforcement.Enforcer
	cache      *cache.ResponseCache
	store      storage.Backend
	notifier   *alerts.Notifier
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	logger     *slog.Logger
	now        func() time.Time

	flight    singleflight.Group
	scheduler *scheduler

	persistMu sync.Mutex
	persistWG sync.WaitGroup

	// inflight counts Execute calls and the shared calls they start.
	inflight sync.WaitGroup

	lifecycleMu sync.Mutex
	bgCtx       context.Context
	bgCancel    context.CancelFunc
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// New builds a gateway around provider. An invalid configuration returns a
// config.ValidationError. Persisted metrics and circuit state are loaded from
// the store; a load failure is logged and the gateway starts from zero.
//
// cfg is expected to have defaults applied, as config.LoadConfig does.
// The caller owns provider and closes it after Close.
func New(cfg *config.Config, provider providers.Provider, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	o := options{
		logger: slog.Default(),
		now:    time.Now,
		tracer: tracing.Noop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	own := *cfg
	g := &Gateway{
		cfg:      &own,
		provider: provider,
		metrics:  o.metrics,
		tracer:   o.tracer,
		logger:   o.logger.With("component", "gateway"),
		now:      o.now,
	}
	if g.tracer == nil {
		g.tracer = tracing.Noop()
	}

	table := costs.NewTable(cfg.Pricing)
	g.calculator = costs.NewCalculator(table)
	g.estimator = o.estimator
	if g.estimator == nil {
		g.estimator = tokens.NewUsageEstimator(cfg.Tokens, tokens.NewCounter(cfg.Tokens), table)
	}

	g.tracker = budget.NewTracker(cfg.Budget, budget.WithClock(o.now))
	g.breaker = breaker.New(cfg.Breaker,
		breaker.WithClock(o.now),
		breaker.WithFallbackModel(cfg.Gateway.FallbackModel),
	)
	g.enforcer = enforcement.NewEnforcer(enforcement.Config{
		FallbackEnabled: cfg.Gateway.FallbackEnabled(),
		FallbackModel:   cfg.Gateway.FallbackModel,
	})

	g.store = o.store
	if g.store == nil {
		store, err := storage.New(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		g.store = store
	}

	cacheStore := o.cacheStore
	if cacheStore == nil {
		store, err := cache.NewStore(cfg.Cache)
		if err != nil {
			g.store.Close()
			return nil, fmt.Errorf("failed to open cache store: %w", err)
		}
		cacheStore = store
	}
	g.cache = cache.New(cacheStore, cfg.Cache.EffectiveTTL(),
		cache.WithClock(o.now),
		cache.WithLogger(o.logger),
		cache.WithSweepInterval(cfg.Cache.SweepInterval),
	)

	sink := o.sink
	if sink == nil {
		s, err := alerts.NewSink(cfg.Alerts, o.logger)
		if err != nil {
			g.cache.Close()
			g.store.Close()
			return nil, fmt.Errorf("failed to create alert sink: %w", err)
		}
		sink = s
	}
	g.notifier = alerts.NewNotifier(sink, cfg.Budget.AlertThreshold,
		alerts.WithClock(o.now),
		alerts.WithLocation(cfg.Budget.Location()),
		alerts.WithLogger(o.logger),
		alerts.WithDeliveryTimeout(cfg.Alerts.DeliveryTimeout),
		alerts.WithSuppressRepeats(cfg.Alerts.SuppressRepeats),
		alerts.WithDeliveryHook(func(a alerts.Alert, err error) {
			g.metrics.RecordAlert(string(a.Kind), err == nil)
		}),
	)
	g.notifier.SetEnabled(cfg.Gateway.AlertsEnabled())

	g.loadState()
	g.breaker.OnTransition(g.onTransition)
	g.metrics.SetBreakerState(string(g.breaker.State()))
	g.publishBudget()

	g.bgCtx, g.bgCancel = context.WithCancel(context.Background())
	g.cache.Start(g.bgCtx)

	g.scheduler = newScheduler(o.logger.With("component", "gateway.scheduler"))
	if err := g.scheduler.add(g.bgCtx, jobSnapshot, cfg.Storage.SnapshotSchedule, g.runSnapshot); err != nil {
		g.shutdownOnError()
		return nil, err
	}
	if err := g.scheduler.add(g.bgCtx, jobPrune, cfg.Storage.PruneSchedule, g.runPrune); err != nil {
		g.shutdownOnError()
		return nil, err
	}
	g.scheduler.start()

	g.logger.Info("gateway started",
		"provider", provider.Name(),
		"circuit_state", g.breaker.State(),
		"caching", g.cachingEnabled(),
		"fallback_model", cfg.Gateway.FallbackModel,
	)
	return g, nil
}

// Execute runs one governed call: cache lookup, pre-flight admission,
// the API call and the accounting that follows it.
//
// Errors:
//   - *providers.ValidationError for a malformed request
//   - *QuotaExceededError when admission refuses and no fallback applies
//   - *providers.RateLimitError, unchanged, after opening the breaker
//   - any other provider error, unchanged
func (g *Gateway) Execute(ctx context.Context, req *providers.CompletionRequest) (*Result, error) {
	if !g.enter() {
		return nil, ErrClosed
	}
	defer g.inflight.Done()

	start := time.Now()
	if err := providers.ValidateRequest(req); err != nil {
		model := ""
		if req != nil {
			model = req.Model
		}
		g.metrics.RecordCall(model, metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	requestID := logging.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}
	ctx = logging.WithModel(ctx, req.Model)

	ctx, span := g.tracer.Start(ctx, "gateway.Execute")
	defer span.End()
	tracing.SetRequestAttributes(span, requestID, req.Model)

	result, err := g.execute(ctx, req, requestID)

	tracing.SetStatus(span, err)
	if result != nil {
		tracing.SetCacheAttribute(span, result.CacheHit)
	}
	g.metrics.RecordCall(req.Model, outcomeOf(result, err), time.Since(start))
	return result, err
}

func (g *Gateway) execute(ctx context.Context, req *providers.CompletionRequest, requestID string) (*Result, error) {
	if !g.cachingEnabled() {
		return g.call(ctx, req, requestID)
	}

	if entry, ok := g.cache.Get(ctx, req); ok {
		g.metrics.RecordCacheHit()
		logging.FromContext(ctx, g.logger).Debug("cache hit", "fingerprint", entry.Fingerprint)
		return &Result{
			Response:       entry.Response,
			Model:          entry.Model,
			RequestedModel: req.Model,
			Usage:          entry.Usage,
			CacheHit:       true,
			RequestID:      requestID,
		}, nil
	}
	g.metrics.RecordCacheMiss()

	// The shared call outlives any single caller, so one caller giving up
	// cannot fail the others. Each caller still returns on its own ctx.
	ch := make(chan flightResult, 1)
	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		leader := false
		v, err, _ := g.flight.Do(cache.Fingerprint(req), func() (interface{}, error) {
			leader = true
			cctx, cancel := g.sharedCallContext(ctx)
			defer cancel()
			return g.call(cctx, req, requestID)
		})
		ch <- flightResult{v: v, err: err, leader: leader}
	}()

	var r flightResult
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.leader {
		if r.err != nil {
			return nil, r.err
		}
		return r.v.(*Result), nil
	}

	// Followers share the leader's outcome and are not charged.
	g.metrics.RecordCacheCollapsed()
	if r.err != nil {
		return nil, r.err
	}
	shared := *r.v.(*Result)
	shared.Response = shared.Response.Clone()
	shared.CacheHit = true
	shared.Cost = 0
	shared.RequestID = requestID
	return &shared, nil
}

type flightResult struct {
	v      interface{}
	err    error
	leader bool
}

// sharedCallContext detaches ctx from its caller's cancellation and bounds it
// by the provider timeout instead.
func (g *Gateway) sharedCallContext(ctx context.Context) (context.Context, context.CancelFunc) {
	g.cfgMu.RLock()
	timeout := g.cfg.Provider.Timeout
	g.cfgMu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// call performs admission, invokes the API and records the outcome.
func (g *Gateway) call(ctx context.Context, req *providers.CompletionRequest, requestID string) (*Result, error) {
	logger := logging.FromContext(ctx, g.logger)
	span := trace.SpanFromContext(ctx)

	est, err := g.estimator.Estimate(req)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate usage: %w", err)
	}
	projected := g.calculator.Calculate(req.Model, est.PromptUnits, est.CompletionUnits)

	reservation, status := g.tracker.Admit(int64(est.Total()), projected.TotalCost)
	decision := g.breaker.Evaluate(breaker.Reasons(status.Reasons()))

	callReq := req
	fallback := false
	if !decision.Allowed {
		g.tracker.Release(reservation)
		reservation = nil

		action := g.enforcer.Enforce(decision, req.Model)
		tracing.SetAdmissionAttributes(span, string(decision.State), action.Action == enforcement.ActionDowngrade, decision.Reason)
		if !action.Allowed {
			logger.Warn("call refused",
				"reason", decision.Reason,
				"circuit_state", decision.State,
				"retry_after", decision.RetryAfter,
			)
			return nil, &QuotaExceededError{
				Reason:     action.Reason,
				Model:      req.Model,
				RetryAfter: action.RetryAfter,
			}
		}

		fallback = true
		callReq = req.WithModel(action.Model)
		est, err = g.estimator.Estimate(callReq)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate usage: %w", err)
		}
		projected = g.calculator.Calculate(callReq.Model, est.PromptUnits, est.CompletionUnits)
		reservation = g.tracker.Reserve(int64(est.Total()), projected.TotalCost)

		logger.Info("routing to fallback model",
			"reason", decision.Reason,
			"fallback_model", callReq.Model,
		)
	} else {
		tracing.SetAdmissionAttributes(span, string(decision.State), false, "")
	}

	resp, err := g.send(ctx, callReq)

	// The response may arrive after the caller gave up; it is still paid for.
	actx := context.WithoutCancel(ctx)

	if err == nil && resp == nil {
		err = &providers.ProviderError{Provider: g.provider.Name(), Message: "empty response"}
	}
	if err != nil {
		g.tracker.Release(reservation)
		if providers.IsRateLimit(err) {
			g.breaker.Trip(breaker.ReasonRateLimit)
			logger.Warn("upstream rate limit", "retry_after", providers.RetryAfterOf(err))
		}
		return nil, err
	}

	result := g.record(actx, req, callReq, resp, est, reservation, fallback, requestID)
	tracing.SetUsageAttributes(span, result.Model, result.Usage.PromptUnits, result.Usage.CompletionUnits, result.Cost, result.Estimated)

	if !fallback && g.cachingEnabled() {
		if err := g.cache.Put(actx, req, resp, result.Usage); err != nil {
			logger.Warn("cache write failed", "error", err)
		}
	}

	g.afterRecord()
	return result, nil
}

func (g *Gateway) send(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	ctx, span := g.tracer.Start(ctx, "provider.SendCompletion")
	defer span.End()

	resp, err := g.provider.SendCompletion(ctx, req)
	tracing.SetStatus(span, err)
	return resp, err
}

// record commits the usage of a completed call and appends the audit record.
func (g *Gateway) record(ctx context.Context, req, callReq *providers.CompletionRequest, resp *providers.CompletionResponse,
	est *tokens.Estimate, reservation *budget.Reservation, fallback bool, requestID string) *Result {

	usage := cache.Usage{PromptUnits: est.PromptUnits, CompletionUnits: est.CompletionUnits}
	estimated := true
	if resp.Usage.Reported() {
		estimated = false
		usage = cache.Usage{PromptUnits: resp.Usage.PromptTokens, CompletionUnits: resp.Usage.CompletionTokens}
		if usage.Total() == 0 {
			usage.PromptUnits = resp.Usage.TotalTokens
		}
	}

	model := callReq.Model
	cost := g.calculator.Calculate(model, usage.PromptUnits, usage.CompletionUnits)
	g.tracker.Commit(reservation, model, usage.PromptUnits, usage.CompletionUnits, cost.TotalCost)
	g.metrics.RecordUsage(model, usage.PromptUnits, usage.CompletionUnits, cost.TotalCost)

	rec := storage.UsageRecord{
		ID:              uuid.NewString(),
		Timestamp:       g.now(),
		RequestedModel:  req.Model,
		Model:           model,
		PromptUnits:     usage.PromptUnits,
		CompletionUnits: usage.CompletionUnits,
		Cost:            cost.TotalCost,
		Estimated:       estimated,
		Fallback:        fallback,
		RequestID:       requestID,
	}
	sctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := g.store.AppendUsageRecord(sctx, rec); err != nil {
		g.persistFailed(err)
	}

	logging.FromContext(ctx, g.logger).Info("call recorded",
		"served_model", model,
		"prompt_units", usage.PromptUnits,
		"completion_units", usage.CompletionUnits,
		"cost", cost.TotalCost,
		"estimated", estimated,
		"fallback", fallback,
	)

	return &Result{
		Response:       resp,
		Model:          model,
		RequestedModel: req.Model,
		Usage:          usage,
		Cost:           cost.TotalCost,
		FallbackUsed:   fallback,
		Estimated:      estimated,
		RequestID:      requestID,
	}
}

// afterRecord runs the post-hoc breach check, schedules persistence and
// evaluates alerts.
func (g *Gateway) afterRecord() {
	if breaches := g.tracker.Exceeded(); len(breaches) > 0 {
		g.breaker.Trip(breaker.Reason(breaches[0].Reason()))
	}
	g.persistAsync()

	usage := g.tracker.Usage()
	g.publishUsage(usage)
	g.notifier.CheckUsage(usage)
}

func (g *Gateway) cachingEnabled() bool {
	g.cfgMu.RLock()
	enabled := g.cfg.Gateway.CachingEnabled()
	g.cfgMu.RUnlock()
	return enabled && g.cache.Enabled()
}

func (g *Gateway) onTransition(t breaker.Transition) {
	level := slog.LevelInfo
	if t.To == breaker.StateOpen {
		level = slog.LevelWarn
	}
	g.logger.Log(context.Background(), level, "circuit breaker transition",
		"from", t.From,
		"to", t.To,
		"reason", t.Reason,
		"cooldown_until", t.CooldownUntil,
	)

	g.metrics.RecordBreakerTransition(string(t.From), string(t.To), string(t.Reason))
	g.metrics.SetBreakerState(string(t.To))
	g.notifier.NotifyTransition(t)
	g.persistAsync()
}

func (g *Gateway) publishBudget() {
	g.publishUsage(g.tracker.Usage())
}

func (g *Gateway) publishUsage(usage []budget.WindowUsage) {
	for _, u := range usage {
		g.metrics.SetBudgetUsage(string(u.Window), string(u.Kind), u.Used, u.Limit)
	}
}

func (g *Gateway) persistFailed(err error) {
	op := "unknown"
	var pe *storage.PersistenceError
	if errors.As(err, &pe) {
		op = pe.Op
	}
	g.metrics.RecordPersistenceError(op)
	g.logger.Warn("persistence failed", "op", op, "error", err)
}

func (g *Gateway) shutdownOnError() {
	g.bgCancel()
	g.cache.Close()
	g.store.Close()
}

func outcomeOf(r *Result, err error) string {
	switch {
	case err == nil && r.CacheHit:
		return metrics.OutcomeCacheHit
	case err == nil && r.FallbackUsed:
		return metrics.OutcomeFallback
	case err == nil:
		return metrics.OutcomeSuccess
	case IsQuotaExceeded(err):
		return metrics.OutcomeRejected
	case providers.IsRateLimit(err):
		return metrics.OutcomeRateLimited
	}
	return metrics.OutcomeError
}
