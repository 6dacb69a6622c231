package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls until check passes or the deadline expires. File watch
// events arrive asynchronously so assertions on reloads need to wait.
func waitFor(t *testing.T, check func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return check()
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owa.toml")
	require.NoError(t, os.WriteFile(path, []byte("check_interval_seconds = 60\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 60, w.Settings().CheckIntervalSeconds)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owa.toml")
	require.NoError(t, os.WriteFile(path, []byte("check_interval_seconds = 5\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("check_interval_seconds = 90\n"), 0o600))

	ok := waitFor(t, func() bool {
		return w.Settings().CheckIntervalSeconds == 90
	})
	assert.True(t, ok, "settings were not reloaded after the file changed")
}

func TestWatcher_SurvivesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "owa.toml")
	require.NoError(t, os.WriteFile(path, []byte("check_interval_seconds = 5\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(ctx, path)
	require.NoError(t, err)

	// Replace the file the way editors and the token store do: write a
	// temp file and rename it over the target.
	tmp := filepath.Join(dir, "owa.toml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("check_interval_seconds = 90\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	ok := waitFor(t, func() bool {
		return w.Settings().CheckIntervalSeconds == 90
	})
	require.True(t, ok, "settings were not reloaded after an atomic replace")

	// The watch must still be alive for plain writes afterwards.
	require.NoError(t, os.WriteFile(path, []byte("check_interval_seconds = 120\n"), 0o600))
	ok = waitFor(t, func() bool {
		return w.Settings().CheckIntervalSeconds == 120
	})
	assert.True(t, ok, "watch died after the replace; later writes never reload")
}

func TestWatcher_IgnoresOtherFilesInStateDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "owa.toml")
	require.NoError(t, os.WriteFile(path, []byte("mail_popup_limit = 7\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(ctx, path)
	require.NoError(t, err)

	// Sibling files (log, token store) share the watched directory.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token.json"), []byte("{}"), 0o600))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 7, w.Settings().MailPopupLimit)
}

func TestWatcher_KeepsPreviousSettingsOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owa.toml")
	require.NoError(t, os.WriteFile(path, []byte("mail_popup_limit = 7\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("mail_popup_limit = [broken"), 0o600))

	// Give the watcher a moment to see the write, then confirm the last
	// good settings survived.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 7, w.Settings().MailPopupLimit)
}

func TestWatcher_MissingFileFails(t *testing.T) {
	// LoadSettings creates a missing file, but a missing parent directory
	// cannot be watched.
	path := filepath.Join(t.TempDir(), "no-such-dir", "owa.toml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := NewWatcher(ctx, path)
	require.Error(t, err)
}
