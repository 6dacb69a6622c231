package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/metoffice/owa-checker/internal/logger"
)

// Watcher keeps an up-to-date copy of the user settings, re-reading the
// settings file whenever it changes on disk. Reads are safe from the poll
// loop while the watcher goroutine applies updates.
type Watcher struct {
	path string
	fs   *fsnotify.Watcher

	mu       sync.RWMutex
	settings Settings
}

// NewWatcher loads the settings at path and starts watching for changes.
// The watcher stops when ctx is cancelled.
func NewWatcher(ctx context.Context, path string) (*Watcher, error) {
	settings, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create settings watcher: %w", err)
	}
	// Watch the parent directory, not the file: editors and atomic writers
	// save by renaming a temp file over the target, which removes a watch
	// held on the file itself.
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch settings directory: %w", err)
	}

	w := &Watcher{path: path, fs: fs, settings: settings}
	go w.run(ctx)
	return w, nil
}

// Settings returns the current settings.
func (w *Watcher) Settings() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

func (w *Watcher) run(ctx context.Context) {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			// The directory watch reports every file in the state
			// directory, including the log and token files.
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warn("settings watcher: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	settings, err := LoadSettings(w.path)
	if err != nil {
		logger.Warn("settings reload failed, keeping previous values: %v", err)
		return
	}
	w.mu.Lock()
	w.settings = settings
	w.mu.Unlock()
	logger.Info("settings reloaded from %s", w.path)
}
