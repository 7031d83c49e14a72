package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Persister saves and restores session tokens across process restarts.
type Persister interface {
	// Load returns ErrNoSavedSession when nothing is stored.
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, t Tokens) error
	// Clear removes the saved session. Clearing an empty persister is not an error.
	Clear(ctx context.Context) error
}

// NopPersister keeps nothing.
type NopPersister struct{}

func (NopPersister) Load(context.Context) (Tokens, error) { return Tokens{}, ErrNoSavedSession }
func (NopPersister) Save(context.Context, Tokens) error   { return nil }
func (NopPersister) Clear(context.Context) error          { return nil }

// FilePersister stores tokens as JSON in a file readable only by the owner.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Path() string { return p.path }

func (p *FilePersister) Load(_ context.Context) (Tokens, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Tokens{}, ErrNoSavedSession
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("read session file: %w", err)
	}

	var t Tokens
	if err := json.Unmarshal(data, &t); err != nil {
		return Tokens{}, fmt.Errorf("parse session file: %w", err)
	}
	if t.Empty() {
		return Tokens{}, ErrNoSavedSession
	}
	return t, nil
}

func (p *FilePersister) Save(_ context.Context, t Tokens) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (p *FilePersister) Clear(_ context.Context) error {
	err := os.Remove(p.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
