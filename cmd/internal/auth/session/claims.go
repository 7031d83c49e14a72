package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the account role carried in the access token.
type Role string

const (
	RoleCreditor Role = "CREDITOR"
	RoleDebtor   Role = "DEBTOR"
	RoleAdmin    Role = "ADMIN"
	// RoleUnknown is returned when no session exists or the claim is unrecognized.
	RoleUnknown Role = ""
)

// ParseRole maps a role claim onto a Role. Case is ignored and an optional
// "ROLE_" prefix is stripped.
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "ROLE_")
	switch Role(s) {
	case RoleCreditor, RoleDebtor, RoleAdmin:
		return Role(s)
	default:
		return RoleUnknown
	}
}

func (r Role) String() string { return string(r) }

// Claims is the subset of access token claims the client relies on.
type Claims struct {
	Subject   string
	Role      Role
	ExpiresAt time.Time
}

var unverified = jwt.NewParser()

// ParseClaims decodes raw without verifying its signature.
//
// A token without an "exp" claim is rejected with ErrInvalidToken, since
// expiry checks would otherwise be meaningless.
func ParseClaims(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}

	mc := jwt.MapClaims{}
	if _, _, err := unverified.ParseUnverified(raw, mc); err != nil {
		return Claims{}, ErrInvalidToken
	}

	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, ErrInvalidToken
	}
	sub, err := mc.GetSubject()
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Subject:   sub,
		Role:      roleClaim(mc["role"]),
		ExpiresAt: exp.Time,
	}, nil
}

func roleClaim(v any) Role {
	switch r := v.(type) {
	case string:
		return ParseRole(r)
	case []any:
		// Some issuers emit a list of authorities; the first known one wins.
		for _, item := range r {
			if s, ok := item.(string); ok {
				if role := ParseRole(s); role != RoleUnknown {
					return role
				}
			}
		}
	}
	return RoleUnknown
}
