// Package openai implements providers.Provider for OpenAI and OpenAI-compatible
// chat completion APIs using github.com/sashabaranov/go-openai.
//
// HTTP 429 responses become *providers.RateLimitError carrying the Retry-After
// header, 401 and 403 become *providers.AuthError, deadline expiry becomes
// *providers.TimeoutError, and everything else is a *providers.ProviderError
// with the upstream status code.
//
// Usage:
//
//	client, err := openai.NewClient(openai.Config{
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	    Timeout: 60 * time.Second,
//	})
package openai
