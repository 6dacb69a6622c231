package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadNotFound(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load()

	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	pair := TokenPair{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		ExpiresAt:    time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Save(pair))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, pair, loaded)
}

func TestStore_FilePermissions(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Save(TokenPair{AccessToken: "a", RefreshToken: "r"}))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "token file must be owner-readable only")
}

func TestStore_SaveFailureIsStoreWrite(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "no-such-dir"))

	err := store.Save(TokenPair{AccessToken: "a", RefreshToken: "r"})

	require.ErrorIs(t, err, ErrStoreWrite)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Save(TokenPair{AccessToken: "old", RefreshToken: "old-r"}))
	require.NoError(t, store.Save(TokenPair{AccessToken: "new", RefreshToken: "new-r"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", loaded.AccessToken)
	assert.Equal(t, "new-r", loaded.RefreshToken)
}
