package types

import "net/http"

// ErrorResponse is the OpenAI error envelope returned for every failure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Message string `json:"message"`

	// Type selects the HTTP status; see HTTPStatusCode.
	Type string `json:"type"`

	// Param names the offending request field, if any.
	Param string `json:"param,omitempty"`

	// Code is a machine-readable reason.
	Code string `json:"code,omitempty"`
}

// Error types. Each maps to one HTTP status.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error" // 400
	ErrorTypeAuthentication     = "authentication_error"  // 401
	ErrorTypeNotFound           = "not_found"             // 404
	ErrorTypeMethodNotAllowed   = "method_not_allowed"    // 405
	ErrorTypeQuotaExceeded      = "insufficient_quota"    // 429
	ErrorTypeRateLimitExceeded  = "rate_limit_exceeded"   // 429
	ErrorTypeServerError        = "server_error"          // 500
	ErrorTypeBadGateway         = "bad_gateway"           // 502
	ErrorTypeServiceUnavailable = "service_unavailable"   // 503
	ErrorTypeGatewayTimeout     = "gateway_timeout"       // 504
)

// Error codes.
const (
	CodeInvalidValue       = "invalid_value"
	CodeInvalidJSON        = "invalid_json"
	CodeRequestTooLarge    = "request_too_large"
	CodeQuotaExceeded      = "quota_exceeded"
	CodeRateLimitExceeded  = "rate_limit_exceeded"
	CodeAuthFailed         = "authentication_failed"
	CodeInvalidAPIKey      = "invalid_api_key"
	CodeProviderError      = "provider_error"
	CodeProviderTimeout    = "provider_timeout"
	CodeGatewayUnavailable = "gateway_unavailable"
	CodeInternalError      = "internal_error"
)

// NewErrorResponse builds an error envelope.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError builds a 400 response.
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewQuotaExceededError builds a 429 response for a budget refusal.
func NewQuotaExceededError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeQuotaExceeded, "", CodeQuotaExceeded)
}

// NewAuthenticationError builds a 401 response for a missing or unknown
// gateway key.
func NewAuthenticationError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeAuthentication, "", CodeInvalidAPIKey)
}

// NewRateLimitError builds a 429 response for a client sending too fast.
func NewRateLimitError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeRateLimitExceeded, "", CodeRateLimitExceeded)
}

// NewServerError builds a 500 response.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBadGatewayError builds a 502 response.
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, "", CodeProviderError)
}

// NewServiceUnavailableError builds a 503 response.
func NewServiceUnavailableError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, "", CodeGatewayUnavailable)
}

// NewGatewayTimeoutError builds a 504 response.
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeGatewayTimeout, "", CodeProviderTimeout)
}

// HTTPStatusCode returns the HTTP status for the error type. Unknown types
// map to 500.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorTypeQuotaExceeded, ErrorTypeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
