package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFilePersister_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	p := NewFilePersister(path)
	ctx := context.Background()

	if _, err := p.Load(ctx); err != ErrNoSavedSession {
		t.Fatalf("expected ErrNoSavedSession, got %v", err)
	}

	want := Tokens{AccessToken: "a", RefreshToken: "r"}
	if err := p.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm=%v", info.Mode().Perm())
	}

	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}

	if err := p.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := p.Clear(ctx); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if _, err := p.Load(ctx); err != ErrNoSavedSession {
		t.Fatalf("expected ErrNoSavedSession after clear, got %v", err)
	}
}

func TestRedisPersister_RoundTrip(t *testing.T) {
	s := miniredis.RunT(t)

	p, err := NewRedisPersister("redis://"+s.Addr(), "alice", time.Hour)
	if err != nil {
		t.Fatalf("NewRedisPersister: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	if _, err := p.Load(ctx); err != ErrNoSavedSession {
		t.Fatalf("expected ErrNoSavedSession, got %v", err)
	}

	want := Tokens{AccessToken: "a", RefreshToken: "r"}
	if err := p.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists("debtease:session:alice") {
		t.Fatalf("key not written")
	}
	if ttl := s.TTL("debtease:session:alice"); ttl != time.Hour {
		t.Fatalf("ttl=%v", ttl)
	}

	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}

	s.FastForward(2 * time.Hour)
	if _, err := p.Load(ctx); err != ErrNoSavedSession {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestNewPersister_Selection(t *testing.T) {
	t.Parallel()

	p, err := NewPersister(Config{})
	if err != nil {
		t.Fatalf("NewPersister: %v", err)
	}
	if _, ok := p.(NopPersister); !ok {
		t.Fatalf("expected NopPersister, got %T", p)
	}

	p, err = NewPersister(Config{File: filepath.Join(t.TempDir(), "s.json")})
	if err != nil {
		t.Fatalf("NewPersister: %v", err)
	}
	if _, ok := p.(*FilePersister); !ok {
		t.Fatalf("expected *FilePersister, got %T", p)
	}

	if _, err := NewPersister(Config{RedisURL: "http://nope", Profile: "x", RedisTTL: time.Hour}); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
