package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/tollgate/pkg/proxy"
	"mercator-hq/tollgate/pkg/proxy/types"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// Source is a request header that may carry a key.
type Source struct {
	Header string
	// Scheme, when set, must prefix the header value ("Bearer").
	Scheme string
}

// DefaultSources accepts "Authorization: Bearer <key>" and X-API-Key.
var DefaultSources = []Source{
	{Header: "Authorization", Scheme: "Bearer"},
	{Header: "X-API-Key"},
}

// ExtractKey returns the first key found in sources, or "".
func ExtractKey(r *http.Request, sources []Source) string {
	for _, source := range sources {
		value := strings.TrimSpace(r.Header.Get(source.Header))
		if value == "" {
			continue
		}
		if source.Scheme == "" {
			return value
		}
		scheme, key, ok := strings.Cut(value, " ")
		if ok && strings.EqualFold(scheme, source.Scheme) {
			return strings.TrimSpace(key)
		}
	}
	return ""
}

// Middleware rejects requests without a key from keys with a 401 error
// envelope. With an empty set every request passes through unchanged.
func Middleware(keys *KeySet, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if keys.Len() == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ExtractKey(r, DefaultSources)
			if key == "" {
				reject(w, r, logger, "missing API key")
				return
			}
			clientID, ok := keys.Validate(key)
			if !ok {
				reject(w, r, logger, "invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	logging.FromContext(r.Context(), logger).Warn("request rejected",
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	w.Header().Set("WWW-Authenticate", `Bearer realm="tollgate"`)
	_ = proxy.WriteErrorResponse(w, types.NewAuthenticationError(reason))
}

type contextKey struct{}

// WithClientID stores the authenticated client ID in ctx.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, contextKey{}, clientID)
}

// ClientIDFromContext returns the client ID set by Middleware.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}
