package integration

import (
	"maps"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestClaims holds the configurable claims for generating test JWT tokens.
type TestClaims struct {
	Username string
	Extra    map[string]any
}

// tokenIssuer signs HS256 tokens with the shared secret the server verifies
// against.
type tokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
}

func newTokenIssuer(_ *testing.T) *tokenIssuer {
	return &tokenIssuer{
		secret:   []byte("integration-test-secret"),
		issuer:   "https://auth.test.nexusmfg.dev",
		audience: "traveler-api-test",
	}
}

// GenerateToken creates a valid, signed JWT token with the given claims.
func (ti *tokenIssuer) GenerateToken(claims TestClaims) string {
	now := time.Now()

	mapClaims := jwt.MapClaims{
		"iss": ti.issuer,
		"aud": ti.audience,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(1 * time.Hour)),
		"sub": claims.Username,
	}
	maps.Copy(mapClaims, claims.Extra)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}

// GenerateExpiredToken creates a JWT token that expired in the past.
func (ti *tokenIssuer) GenerateExpiredToken(claims TestClaims) string {
	now := time.Now()

	mapClaims := jwt.MapClaims{
		"iss": ti.issuer,
		"aud": ti.audience,
		"iat": jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		"exp": jwt.NewNumericDate(now.Add(-1 * time.Hour)),
		"sub": claims.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}

// Secret returns the shared signing secret.
func (ti *tokenIssuer) Secret() []byte {
	return ti.secret
}

// Issuer returns the expected token issuer claim.
func (ti *tokenIssuer) Issuer() string {
	return ti.issuer
}

// Audience returns the expected token audience claim.
func (ti *tokenIssuer) Audience() string {
	return ti.audience
}
