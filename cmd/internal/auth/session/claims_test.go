package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"debtease/cmd/internal/auth/session/sessiontest"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Role
	}{
		{"CREDITOR", RoleCreditor},
		{"debtor", RoleDebtor},
		{"ROLE_ADMIN", RoleAdmin},
		{" role_creditor ", RoleCreditor},
		{"USER", RoleUnknown},
		{"", RoleUnknown},
	}

	for _, tc := range cases {
		if got := ParseRole(tc.in); got != tc.want {
			t.Fatalf("ParseRole(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseClaims(t *testing.T) {
	t.Parallel()

	exp := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	raw := sessiontest.Token(t, "alice", "CREDITOR", exp)

	c, err := ParseClaims(raw)
	if err != nil {
		t.Fatalf("ParseClaims: %v", err)
	}
	if c.Subject != "alice" || c.Role != RoleCreditor {
		t.Fatalf("unexpected claims: %+v", c)
	}
	if !c.ExpiresAt.Equal(exp) {
		t.Fatalf("exp mismatch: %v", c.ExpiresAt)
	}
}

func TestParseClaims_ListRole(t *testing.T) {
	t.Parallel()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "bob",
		"exp":  time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		"role": []any{"ROLE_USER", "ROLE_DEBTOR"},
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	c, err := ParseClaims(raw)
	if err != nil {
		t.Fatalf("ParseClaims: %v", err)
	}
	if c.Role != RoleDebtor {
		t.Fatalf("role=%q", c.Role)
	}
}

func TestParseClaims_Rejects(t *testing.T) {
	t.Parallel()

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for _, raw := range []string{"", "not-a-jwt", "a.b.c", noExp} {
		if _, err := ParseClaims(raw); err != ErrInvalidToken {
			t.Fatalf("ParseClaims(%q) err=%v want ErrInvalidToken", raw, err)
		}
	}
}
