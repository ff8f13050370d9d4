package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/tollgate/pkg/config"
)

func TestNew_Disabled(t *testing.T) {
	tr, err := New(config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("disabled config should yield a disabled tracer")
	}

	ctx, span := tr.Start(context.Background(), "op")
	defer span.End()
	if TraceID(ctx) != "" {
		t.Error("noop span should have no trace ID")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNilTracer(t *testing.T) {
	var tr *Tracer
	_, span := tr.Start(context.Background(), "op")
	span.End()
	if tr.Enabled() {
		t.Error("nil tracer reports enabled")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestNew_RecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tr, err := New(config.TracingConfig{Enabled: true, SampleRatio: 1, ServiceName: "tollgate-test"}, WithExporter(exp))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tr.Start(context.Background(), "gateway.execute")
	if TraceID(ctx) == "" {
		t.Error("sampled span should carry a trace ID")
	}
	SetRequestAttributes(span, "req-1", "gpt-4")
	SetUsageAttributes(span, "gpt-3.5-turbo", 1000, 500, 0.06, false)
	SetAdmissionAttributes(span, "open", true, "daily quota")
	SetCacheAttribute(span, false)
	SetStatus(span, errors.New("boom"))
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name != "gateway.execute" {
		t.Errorf("Name = %q", s.Name)
	}
	if s.Status.Code != codes.Error {
		t.Errorf("Status = %v, want Error", s.Status.Code)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrModel].AsString() != "gpt-3.5-turbo" {
		t.Errorf("model attribute = %v", attrs[AttrModel])
	}
	if attrs[AttrRefusal].AsString() != "daily quota" {
		t.Errorf("refusal attribute = %v", attrs[AttrRefusal])
	}
	if !attrs[AttrFallback].AsBool() {
		t.Error("fallback attribute should be true")
	}
}

func TestSetStatus_OK(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	SetStatus(span, nil)
	span.End()

	if got := exp.GetSpans()[0].Status.Code; got != codes.Ok {
		t.Errorf("Status = %v, want Ok", got)
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio   float64
		sampled bool
	}{
		{1, true},
		{2, true},
		{0, false},
		{-1, false},
	}
	for _, tt := range tests {
		s := newSampler(tt.ratio)
		res := s.ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       trace.TraceID{1},
			Name:          "op",
		})
		if got := res.Decision == sdktrace.RecordAndSample; got != tt.sampled {
			t.Errorf("ratio %v sampled = %v, want %v", tt.ratio, got, tt.sampled)
		}
	}
}

func TestHTTPMiddleware(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	if _, err := New(config.TracingConfig{Enabled: true, SampleRatio: 1}, WithExporter(exp)); err != nil {
		t.Fatal(err)
	}

	var seen string
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("handler saw trace ID %q", seen)
	}
	if rec.Header().Get("X-Trace-ID") != seen {
		t.Errorf("X-Trace-ID = %q", rec.Header().Get("X-Trace-ID"))
	}
}

func TestInject(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tr, err := New(config.TracingConfig{Enabled: true, SampleRatio: 1}, WithExporter(exp))
	if err != nil {
		t.Fatal(err)
	}
	ctx, span := tr.Start(context.Background(), "op")
	defer span.End()

	h := http.Header{}
	Inject(ctx, h)
	if h.Get("traceparent") == "" {
		t.Error("Inject should write traceparent")
	}
}
