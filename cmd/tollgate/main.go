// Tollgate is a budget-governed gateway in front of a metered inference API.
//
// It exposes an OpenAI-compatible chat completions endpoint and, for every
// call:
//   - enforces daily, weekly and monthly unit and spend ceilings
//   - trips a circuit breaker when a ceiling or an upstream rate limit is hit
//   - routes refused calls to a cheaper fallback model
//   - serves identical requests from a response cache
//   - keeps an audit log of billed usage
//
// Usage:
//
//	# Start the gateway
//	tollgate run --config config.yaml
//
//	# Check a configuration file
//	tollgate validate --config config.yaml
//
//	# Inspect a running gateway
//	tollgate status --addr 127.0.0.1:8080
//
//	# Price a request offline
//	tollgate estimate --model gpt-4o --prompt "hello" --max-tokens 500
package main

func main() {
	Execute()
}
