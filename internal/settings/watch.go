package settings

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of file events from a single save.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Store when its config file changes.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	path     string
	debounce time.Duration
	stopOnce sync.Once
}

// Watch starts watching the config file the store was read from. The parent
// directory is watched so editors that replace the file are still seen.
func (s *Store) Watch(debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	s.mu.RLock()
	path := s.v.ConfigFileUsed()
	s.mu.RUnlock()
	if path == "" {
		return nil, fmt.Errorf("no config file in use")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		store:    s,
		watcher:  fw,
		logger:   logger,
		path:     filepath.Clean(path),
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()

	logger.Debug("watching config file", "path", path)
	return w, nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-timer.C:
			if err := w.store.reload(); err != nil {
				w.logger.Warn("failed to reload config", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("config reloaded", "path", w.path)
		}
	}
}
