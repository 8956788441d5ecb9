package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type loggerKeyType struct{}

// LoggerKey carries the request-scoped logger through the context.
var LoggerKey = loggerKeyType{}

// RequestLogger derives a child logger per request, tagged with the
// request id and route, and injects it for downstream handlers. The
// websocket handler inherits it for the whole session.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.With(
				slog.String("request_id", uuid.NewString()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			reqLog.Info("request started")

			ctx := context.WithValue(r.Context(), LoggerKey, reqLog)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
