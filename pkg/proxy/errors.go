package proxy

import (
	"errors"
	"fmt"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/gateway"
	"mercator-hq/tollgate/pkg/providers"
	"mercator-hq/tollgate/pkg/proxy/types"
)

// HandleError maps an error from the gateway or the request layer to an
// OpenAI-compatible error envelope:
//
//   - request and validation errors: 400
//   - budget refusals: 429 insufficient_quota
//   - upstream rate limits: 429 rate_limit_exceeded
//   - upstream timeouts: 504
//   - anything else, which can only come from upstream: 502
//   - a closed gateway: 503
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	var valErr *providers.ValidationError
	if errors.As(err, &valErr) {
		return types.NewInvalidRequestError(valErr.Message, valErr.Field, types.CodeInvalidValue)
	}

	var cfgErr config.ValidationError
	if errors.As(err, &cfgErr) {
		param := ""
		if len(cfgErr.Errors) > 0 {
			param = cfgErr.Errors[0].Field
		}
		return types.NewInvalidRequestError(cfgErr.Error(), param, types.CodeInvalidValue)
	}

	var quotaErr *gateway.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return types.NewQuotaExceededError(quotaErr.Error())
	}

	if errors.Is(err, gateway.ErrClosed) {
		return types.NewServiceUnavailableError("gateway is shutting down")
	}

	var rateLimitErr *providers.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return types.NewErrorResponse(rateLimitErr.Error(),
			types.ErrorTypeRateLimitExceeded, "", types.CodeRateLimitExceeded)
	}

	var timeoutErr *providers.TimeoutError
	if errors.As(err, &timeoutErr) {
		return types.NewGatewayTimeoutError(fmt.Sprintf("provider request timed out: %v", timeoutErr))
	}

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		return types.NewErrorResponse(authErr.Error(), types.ErrorTypeBadGateway, "", types.CodeAuthFailed)
	}

	return types.NewBadGatewayError(err.Error())
}
