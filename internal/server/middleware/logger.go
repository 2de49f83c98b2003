package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs each request as it enters the chain. It runs
// after the metadata middleware and before auth, so the principal is not
// resolved yet; connection-scoped logging picks up from the upgrade.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				ip = reqMeta.IP
			}

			logger.Info("Incoming HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("ip", ip),
				slog.String("userAgent", r.UserAgent()),
			)
			next.ServeHTTP(w, r)
		})
	}
}
