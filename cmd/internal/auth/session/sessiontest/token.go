// Package sessiontest mints access tokens for tests.
package sessiontest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var signingKey = []byte("debtease-test-key")

// Token returns an HS256 token with the given subject, role and expiry.
func Token(t testing.TB, sub, role string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
		"iat": exp.Add(-time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}
