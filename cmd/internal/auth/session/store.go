package session

import (
	"sync"
	"time"
)

// Tokens is the persisted form of a session.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether neither token is set.
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Store is the single source of truth for the current user's identity.
//
// It is safe for concurrent use. The zero value is not usable; call NewStore.
type Store struct {
	mu sync.RWMutex

	now func() time.Time

	token   string
	refresh string
	claims  Claims
	decoded bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DecodeToken decodes raw and, on success, makes it the current access token.
// On failure the previous state is left untouched.
func (s *Store) DecodeToken(raw string) (Claims, error) {
	c, err := ParseClaims(raw)
	if err != nil {
		return Claims{}, err
	}

	s.mu.Lock()
	s.token = raw
	s.claims = c
	s.decoded = true
	s.mu.Unlock()

	return c, nil
}

// SetRefreshToken stores the refresh token.
func (s *Store) SetRefreshToken(raw string) {
	s.mu.Lock()
	s.refresh = raw
	s.mu.Unlock()
}

// IsExpired is true when there is no decoded session or its expiry has passed.
func (s *Store) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.decoded {
		return true
	}
	return !s.now().Before(s.claims.ExpiresAt)
}

// HasToken reports whether an access token is present, expired or not.
func (s *Store) HasToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// Role returns RoleUnknown when no session exists.
func (s *Store) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.Role
}

// Username returns the token subject, or "" when no session exists.
func (s *Store) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.Subject
}

// Claims returns the decoded claims and whether a session exists.
func (s *Store) Claims() (Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims, s.decoded
}

// Clear drops every stored value. Calling it on an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.refresh = ""
	s.claims = Claims{}
	s.decoded = false
	s.mu.Unlock()
}

// Snapshot returns the raw tokens for persistence.
func (s *Store) Snapshot() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Tokens{AccessToken: s.token, RefreshToken: s.refresh}
}

// Restore loads a persisted snapshot. An undecodable access token is rejected
// and nothing is changed.
func (s *Store) Restore(t Tokens) error {
	if t.AccessToken != "" {
		if _, err := s.DecodeToken(t.AccessToken); err != nil {
			return err
		}
	}
	s.SetRefreshToken(t.RefreshToken)
	return nil
}
