package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys use the "tollgate.*" namespace.
const (
	AttrModel          = "tollgate.model"
	AttrRequestedModel = "tollgate.requested_model"
	AttrRequestID      = "tollgate.request_id"

	AttrUnitsPrompt     = "tollgate.units.prompt"
	AttrUnitsCompletion = "tollgate.units.completion"
	AttrUnitsEstimated  = "tollgate.units.estimated"
	AttrCost            = "tollgate.cost.usd"

	AttrCacheHit     = "tollgate.cache.hit"
	AttrFallback     = "tollgate.fallback"
	AttrBreakerState = "tollgate.breaker.state"
	AttrRefusal      = "tollgate.refusal_reason"

	AttrErrorType = "tollgate.error.type"
)

// SetRequestAttributes sets the request ID and requested model.
func SetRequestAttributes(span trace.Span, requestID, model string) {
	span.SetAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrRequestedModel, model),
	)
}

// SetUsageAttributes sets the serving model, recorded units and cost.
func SetUsageAttributes(span trace.Span, model string, promptUnits, completionUnits int, cost float64, estimated bool) {
	span.SetAttributes(
		attribute.String(AttrModel, model),
		attribute.Int(AttrUnitsPrompt, promptUnits),
		attribute.Int(AttrUnitsCompletion, completionUnits),
		attribute.Float64(AttrCost, cost),
		attribute.Bool(AttrUnitsEstimated, estimated),
	)
}

// SetAdmissionAttributes records the admission outcome.
func SetAdmissionAttributes(span trace.Span, state string, fallback bool, refusal string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrBreakerState, state),
		attribute.Bool(AttrFallback, fallback),
	}
	if refusal != "" {
		attrs = append(attrs, attribute.String(AttrRefusal, refusal))
	}
	span.SetAttributes(attrs...)
}

// SetCacheAttribute records whether the response came from the cache.
func SetCacheAttribute(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool(AttrCacheHit, hit))
}
