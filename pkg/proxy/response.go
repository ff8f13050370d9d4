package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/tollgate/pkg/gateway"
	"mercator-hq/tollgate/pkg/providers"
	"mercator-hq/tollgate/pkg/proxy/types"
)

// Response headers set on every chat completion.
const (
	CacheHeader = "X-Tollgate-Cache"
	ModelHeader = "X-Tollgate-Model"
)

// FormatChatCompletionResponse converts a gateway result into the OpenAI
// response shape. Usage reports the units the gateway billed, which may be
// an estimate.
func FormatChatCompletionResponse(res *gateway.Result, now time.Time) *types.ChatCompletionResponse {
	resp := res.Response
	if resp == nil {
		resp = &providers.CompletionResponse{}
	}
	created := resp.Created
	if created == 0 {
		created = now.Unix()
	}

	return &types.ChatCompletionResponse{
		ID:      "chatcmpl-" + resp.ID,
		Object:  "chat.completion",
		Created: created,
		Model:   res.Model,
		Choices: []types.Choice{{
			Message: types.Message{
				Role:      providers.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: convertToolCalls(resp.ToolCalls),
			},
			FinishReason: resp.FinishReason,
		}},
		Usage: types.Usage{
			PromptTokens:     res.Usage.PromptUnits,
			CompletionTokens: res.Usage.CompletionUnits,
			TotalTokens:      res.Usage.Total(),
		},
		Gateway: &types.GatewayInfo{
			RequestID:      res.RequestID,
			RequestedModel: res.RequestedModel,
			Cost:           res.Cost,
			CacheHit:       res.CacheHit,
			FallbackUsed:   res.FallbackUsed,
			Estimated:      res.Estimated,
		},
	}
}

func convertToolCalls(calls []providers.ToolCall) []types.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]types.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = types.ToolCall{
			ID:   tc.ID,
			Type: providers.ToolTypeFunction,
			Function: types.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

// SetResultHeaders sets the cache and served-model headers.
func SetResultHeaders(w http.ResponseWriter, res *gateway.Result) {
	cache := "miss"
	if res.CacheHit {
		cache = "hit"
	}
	w.Header().Set(CacheHeader, cache)
	w.Header().Set(ModelHeader, res.Model)
}

// WriteJSONResponse writes data as JSON with the given status.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes an error envelope with the status its type
// maps to.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}

// WriteError maps err to an error envelope and writes it. Refusals that
// carry a retry hint also get a Retry-After header in whole seconds.
func WriteError(w http.ResponseWriter, err error) error {
	if d := retryAfter(err); d > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
	}
	return WriteErrorResponse(w, HandleError(err))
}

func retryAfter(err error) time.Duration {
	if d := gateway.RetryAfterOf(err); d > 0 {
		return d
	}
	return providers.RetryAfterOf(err)
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int {
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
