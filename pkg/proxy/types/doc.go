// Package types defines the OpenAI-compatible wire types served by the
// gateway's HTTP surface.
//
// Requests:
//   - ChatCompletionRequest: body of POST /v1/chat/completions
//   - Message, Tool, ToolCall: conversation entries and function calling
//
// Responses:
//   - ChatCompletionResponse, Choice, Usage
//
// Errors:
//   - ErrorResponse and ErrorDetail, the OpenAI error envelope
//
// Field names follow OpenAI's snake_case JSON convention so standard SDKs work
// unmodified against the gateway:
//
//	client = OpenAI(base_url="http://localhost:8080/v1")
package types
