package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/config"
	"github.com/nexusmfg/traveler/internal/user"
	"github.com/nexusmfg/traveler/model"
)

var testSecret = []byte("test-signing-secret")

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()

	store := user.NewMemoryStore()
	seed := []model.User{
		{Username: "jdoe", Email: "jdoe@example.com", Role: model.RoleOperator, IsActive: true},
		{Username: "ghost", Email: "ghost@example.com", Role: model.RoleOperator, IsActive: false},
	}
	for _, u := range seed {
		if _, err := store.Create(context.Background(), u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	cfg := config.IdentityConfig{
		Issuer:   "traveler-test",
		Audience: "traveler-api",
	}
	a, err := NewAuthenticator(cfg, testSecret, store, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a
}

func signToken(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func validClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": sub,
		"iss": "traveler-test",
		"aud": "traveler-api",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func authRequest(t *testing.T, a *Authenticator, token string) (*httptest.ResponseRecorder, *model.Actor) {
	t.Helper()
	var captured *model.Actor
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = model.ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/travelers", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "traveler-test/1.0")
	req.RemoteAddr = "10.1.2.3:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestAuthenticator_validToken(t *testing.T) {
	a := newTestAuthenticator(t)

	rec, actor := authRequest(t, a, signToken(t, validClaims("jdoe"), testSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if actor == nil {
		t.Fatal("expected an actor in context")
	}
	if actor.Username != "jdoe" || actor.Role != model.RoleOperator {
		t.Errorf("actor = %+v", actor)
	}
	if actor.Origin.IPAddress != "10.1.2.3" {
		t.Errorf("origin IP = %q, want 10.1.2.3", actor.Origin.IPAddress)
	}
	if actor.Origin.UserAgent != "traveler-test/1.0" {
		t.Errorf("origin UA = %q", actor.Origin.UserAgent)
	}
}

func TestAuthenticator_missingHeader(t *testing.T) {
	a := newTestAuthenticator(t)

	rec, _ := authRequest(t, a, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticator_malformedHeader(t *testing.T) {
	a := newTestAuthenticator(t)

	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/travelers", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticator_wrongSecret(t *testing.T) {
	a := newTestAuthenticator(t)

	rec, _ := authRequest(t, a, signToken(t, validClaims("jdoe"), []byte("other-secret")))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticator_expiredToken(t *testing.T) {
	a := newTestAuthenticator(t)

	claims := validClaims("jdoe")
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	rec, _ := authRequest(t, a, signToken(t, claims, testSecret))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticator_wrongIssuer(t *testing.T) {
	a := newTestAuthenticator(t)

	claims := validClaims("jdoe")
	claims["iss"] = "someone-else"
	rec, _ := authRequest(t, a, signToken(t, claims, testSecret))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticator_unknownSubject(t *testing.T) {
	a := newTestAuthenticator(t)

	rec, _ := authRequest(t, a, signToken(t, validClaims("nobody"), testSecret))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticator_inactiveAccount(t *testing.T) {
	a := newTestAuthenticator(t)

	rec, _ := authRequest(t, a, signToken(t, validClaims("ghost"), testSecret))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticator_emptySecretRejected(t *testing.T) {
	_, err := NewAuthenticator(config.IdentityConfig{}, nil, user.NewMemoryStore(), zap.NewNop())
	if err == nil {
		t.Fatal("expected an error for an empty secret")
	}
}

func TestClientIP_forwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := clientIP(req); ip != "203.0.113.9" {
		t.Errorf("clientIP = %q, want 203.0.113.9", ip)
	}
}
