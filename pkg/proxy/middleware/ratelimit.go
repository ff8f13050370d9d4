package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"mercator-hq/tollgate/pkg/limits/ratelimit"
	"mercator-hq/tollgate/pkg/proxy"
	"mercator-hq/tollgate/pkg/proxy/types"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// RateLimitMiddleware rejects clients that exceed their request rate with a
// 429 and a Retry-After header. Clients are keyed by remote host, so every
// port of one host shares a bucket.
func RateLimitMiddleware(limiter *ratelimit.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !limiter.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			res := limiter.Allow(key)
			if !res.Allowed {
				logging.FromContext(r.Context(), logger).Warn("client rate limited",
					"client", key,
					"retry_after", res.RetryAfter.String(),
				)
				seconds := int(math.Ceil(res.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				_ = proxy.WriteErrorResponse(w, types.NewRateLimitError("too many requests"))
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}
