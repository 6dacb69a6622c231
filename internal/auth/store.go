// Package auth owns the OAuth2 token lifecycle: the on-disk token store, the
// one-time interactive authorization-code flow and silent refresh-token
// renewal against the Microsoft identity platform.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound indicates no token has been stored yet, i.e. the interactive
// authorization flow has never been run.
var ErrNotFound = errors.New("auth: no stored token")

// ErrStoreWrite indicates the token file could not be persisted. Retrying
// cannot help: a rotated refresh token that is not on disk is lost at the
// next restart, so callers treat this as fatal.
var ErrStoreWrite = errors.New("auth: token file write failed")

// TokenPair is the persisted OAuth2 credential. Once obtained, the refresh
// token is only ever replaced by a rotated value or by explicit
// re-authentication.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Store persists the token pair in the state directory. Secrets at rest:
// the file is readable only by the owning user.
type Store struct {
	path string
}

// NewStore creates a store rooted at the given state directory.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, "token.json")}
}

// Path returns the token file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored token pair. Returns ErrNotFound when no prior
// authentication has occurred.
func (s *Store) Load() (TokenPair, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return TokenPair{}, ErrNotFound
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("read token file: %w", err)
	}

	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return TokenPair{}, fmt.Errorf("parse token file: %w", err)
	}
	return pair, nil
}

// Save writes the token pair with owner-only permissions. The write goes to
// a temporary file first so a crash cannot leave a truncated credential.
func (s *Store) Save(pair TokenPair) error {
	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}
