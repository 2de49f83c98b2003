package middleware_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/server/middleware"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeDirectory struct {
	users map[string]domain.User
}

func (d *fakeDirectory) GetActiveUser(_ context.Context, id string) (domain.User, error) {
	u, ok := d.users[id]
	if !ok || !u.Active {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func signToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := &middleware.AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func authStack(directory domain.Directory) (http.Handler, *domain.User) {
	var seen domain.User
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
		seen = reqMeta.Principal
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.Chain(final,
		middleware.RequestMetadataMiddleware(),
		middleware.NewAuthMiddleware(newTestLogger(), testSecret, directory),
	)
	return h, &seen
}

func TestAuthAcceptsValidBearerToken(t *testing.T) {
	dir := &fakeDirectory{users: map[string]domain.User{
		"u1": {ID: "u1", Name: "Alice", Active: true},
	}}
	h, seen := authStack(dir)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if seen.ID != "u1" || seen.Name != "Alice" {
		t.Errorf("Principal not propagated, got %+v", *seen)
	}
}

func TestAuthAcceptsQueryParamToken(t *testing.T) {
	dir := &fakeDirectory{users: map[string]domain.User{
		"u1": {ID: "u1", Active: true},
	}}
	h, _ := authStack(dir)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+signToken(t, testSecret, "u1", time.Hour), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestAuthRejections(t *testing.T) {
	dir := &fakeDirectory{users: map[string]domain.User{
		"u1":       {ID: "u1", Active: true},
		"inactive": {ID: "inactive", Active: false},
	}}
	h, _ := authStack(dir)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", signToken(t, "other-secret", "u1", time.Hour), http.StatusUnauthorized},
		{"expired token", signToken(t, testSecret, "u1", -time.Hour), http.StatusUnauthorized},
		{"empty subject", signToken(t, testSecret, "", time.Hour), http.StatusUnauthorized},
		{"unknown user", signToken(t, testSecret, "ghost", time.Hour), http.StatusForbidden},
		{"inactive user", signToken(t, testSecret, "inactive", time.Hour), http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, rec.Code)
			}
		})
	}
}
