// Package proxy adapts the gateway to the OpenAI chat completions wire
// format.
//
// It parses and validates request bodies, converts them into
// providers.CompletionRequest values, formats gateway results as OpenAI
// responses and maps gateway and upstream errors to HTTP statuses. The
// handlers subpackage serves the routes; middleware holds the request
// chain.
package proxy
