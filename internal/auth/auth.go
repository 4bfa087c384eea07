// Package auth supplies the signed-in user's session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoSession means nobody is signed in.
var ErrNoSession = errors.New("no session")

// Session identifies the signed-in user.
type Session struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether s identifies a user and has not expired at now.
// A zero ExpiresAt never expires.
func (s Session) Valid(now time.Time) bool {
	if s.UserID == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Provider returns the current session.
type Provider interface {
	Session(ctx context.Context) (Session, error)
}

// Static always returns the same session.
type Static Session

// Session returns s, or ErrNoSession when it has no user.
func (s Static) Session(ctx context.Context) (Session, error) {
	if s.UserID == "" {
		return Session{}, ErrNoSession
	}
	return Session(s), nil
}

// FileProvider keeps the session in a JSON file written by Login.
type FileProvider struct {
	Path string
}

// NewFileProvider returns a provider backed by path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Session reads the session file.
func (p *FileProvider) Session(ctx context.Context) (Session, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("failed to parse session: %w", err)
	}
	if s.UserID == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Login persists s with owner-only permissions.
func (p *FileProvider) Login(s Session) error {
	if s.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Logout removes the session file. Logging out twice is not an error.
func (p *FileProvider) Logout() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
