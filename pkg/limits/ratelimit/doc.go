// Package ratelimit bounds the request rate of each client of the gateway.
//
// Every client key (the remote host on the chat endpoint) gets its own
// token bucket from golang.org/x/time/rate. Buckets of clients that have been
// idle longer than the configured timeout are swept.
//
//	limiter := ratelimit.New(cfg.Server.RateLimit)
//	go limiter.Run(ctx)
//
//	if res := limiter.Allow(clientKey); !res.Allowed {
//	    // reject, retry after res.RetryAfter
//	}
//
// Budget ceilings limit how many units are spent; this package only limits
// how fast requests arrive.
package ratelimit
