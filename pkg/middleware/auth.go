package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"garagelive/internal/core/domain"
)

type identityKeyType struct{}

var IdentityKey = identityKeyType{}

// IdentityResolver verifies a bearer credential. Failures are not
// surfaced to the caller here; the middleware degrades to guest.
type IdentityResolver interface {
	ResolveIdentity(token string) (domain.Identity, error)
}

// OptionalAuth resolves the request identity once, degrading to a guest
// identity on a missing or invalid credential instead of rejecting.
// Real-time features degrade gracefully rather than hard-failing
// unauthenticated viewers.
func OptionalAuth(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			identity := domain.NewGuest()
			if tokenStr != "" {
				if id, err := resolver.ResolveIdentity(tokenStr); err == nil {
					identity = id
				} else if log, ok := r.Context().Value(LoggerKey).(*slog.Logger); ok {
					log.Warn("auth - resolve identity failed, degrading to guest", "err", err)
				}
			}
			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken pulls the credential from the Authorization header or the
// token query parameter (websocket handshakes cannot always set headers).
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return strings.TrimSpace(strings.TrimPrefix(r.URL.Query().Get("token"), "Bearer "))
}

// IdentityFromContext returns the resolved identity, or a fresh guest
// when the middleware did not run.
func IdentityFromContext(ctx context.Context) domain.Identity {
	if id, ok := ctx.Value(IdentityKey).(domain.Identity); ok {
		return id
	}
	return domain.NewGuest()
}
