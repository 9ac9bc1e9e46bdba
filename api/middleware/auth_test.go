package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/auth"
	"github.com/angelmondragon/grocery-backend/pkg/config"
)

var authTestConfig = config.JWTConfig{Secret: "secret", Issuer: "grocery-api", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(authTestConfig, stubSessionVerifier{ok: true}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(authTestConfig, stubSessionVerifier{ok: true}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	token := mintTestToken(t, 42, "session-42")

	var captured struct {
		user     uint64
		username string
		access   string
	}
	handler := Auth(authTestConfig, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.username = UsernameFromContext(r.Context())
		captured.access = AccessIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != 42 || captured.username != "ana" {
		t.Fatalf("unexpected identity %+v", captured)
	}
	if captured.access != "session-42" {
		t.Fatalf("expected access id session-42 got %q", captured.access)
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token := mintTestToken(t, 42, "revoked")
	handler := Auth(authTestConfig, stubSessionVerifier{ok: false}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSessionStoreFailure(t *testing.T) {
	token := mintTestToken(t, 42, "any")
	handler := Auth(authTestConfig, stubSessionVerifier{err: errors.New("redis down")}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAuthWithoutSessionStore(t *testing.T) {
	token := mintTestToken(t, 7, "stateless")
	handler := Auth(authTestConfig, nil, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestOptionalAuthAnonymousAndAuthenticated(t *testing.T) {
	var seen []uint64
	handler := OptionalAuth(authTestConfig, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, UserIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	anon := httptest.NewRecorder()
	handler.ServeHTTP(anon, httptest.NewRequest(http.MethodPost, "/api/orders", nil))
	if anon.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to pass, got %d", anon.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, 9, "session-9"))
	authed := httptest.NewRecorder()
	handler.ServeHTTP(authed, req)
	if authed.Code != http.StatusOK {
		t.Fatalf("expected authenticated request to pass, got %d", authed.Code)
	}

	if len(seen) != 2 || seen[0] != 0 || seen[1] != 9 {
		t.Fatalf("unexpected user ids %v", seen)
	}
}

func TestOptionalAuthRejectsBadToken(t *testing.T) {
	handler := OptionalAuth(authTestConfig, nil, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func mintTestToken(t *testing.T, userID uint64, jti string) string {
	t.Helper()
	token, err := auth.MintAccessToken(authTestConfig, time.Now(), auth.AccessTokenPayload{
		UserID:   userID,
		Username: "ana",
		JTI:      jti,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	return s.ok, s.err
}
