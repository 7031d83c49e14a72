package session

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config selects where a session is persisted between runs.
//
// RedisURL wins over File when both are set. With neither set the session
// only lives in memory.
type Config struct {
	// File is the JSON file used by FilePersister.
	File string

	// RedisURL is a redis:// URL used by RedisPersister.
	RedisURL string

	// Profile namespaces the Redis key so several accounts can share one server.
	Profile string

	// RedisTTL bounds how long a saved session survives in Redis.
	RedisTTL time.Duration
}

// DefaultSessionFile returns ~/.debtease/session.json, or "" when the home
// directory cannot be resolved.
func DefaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".debtease", "session.json")
}

// DefaultConfig persists to the per-user session file.
func DefaultConfig() Config {
	return Config{
		File:     DefaultSessionFile(),
		Profile:  "default",
		RedisTTL: 7 * 24 * time.Hour,
	}
}

// Validate returns ErrConfig if the configuration cannot be used.
func (c Config) Validate() error {
	if c.RedisURL != "" {
		if !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
			return ErrConfig
		}
		if strings.TrimSpace(c.Profile) == "" || c.RedisTTL <= 0 {
			return ErrConfig
		}
	}
	return nil
}

// NewPersister builds the Persister selected by cfg.
func NewPersister(cfg Config) (Persister, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case cfg.RedisURL != "":
		p, err := NewRedisPersister(cfg.RedisURL, cfg.Profile, cfg.RedisTTL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case cfg.File != "":
		return NewFilePersister(cfg.File), nil
	default:
		return NopPersister{}, nil
	}
}
