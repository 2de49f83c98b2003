package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/golang-jwt/jwt/v5"
)

// AppClaims defines our JWT claims structure. The subject is the user id.
type AppClaims struct {
	jwt.RegisteredClaims
}

// NewAuthMiddleware rejects the connection attempt before the upgrade when
// the token is missing, invalid, or expired, or when the referenced user
// is not found or inactive. A failed connection never reaches the event
// router and creates no partial state.
func NewAuthMiddleware(logger *slog.Logger, jwtSecret string, directory domain.Directory) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := bearerToken(r)
			if tokenString == "" {
				logger.Warn("Token missing in request", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Parse and validate the JWT token with HMAC signing
			token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("Invalid JWT token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*AppClaims)
			if !ok || claims.Subject == "" {
				logger.Warn("Valid token missing 'sub' claim", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// The token only names the principal; the user store decides
			// whether that principal still exists and is active.
			principal, err := directory.GetActiveUser(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					logger.Warn("Token subject not found or inactive", slog.String("ip", reqMeta.IP), slog.String("userID", claims.Subject))
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				logger.Error("User lookup failed during auth", slog.Any("error", err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			reqMeta.Principal = principal
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credential from the Authorization header, or
// from the "token" query parameter for browser WebSocket clients that
// cannot set headers on the upgrade request.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
