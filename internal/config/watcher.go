package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and hands the
// fresh document to the callback. Editors write config files with
// rename-and-replace tricks, so the containing directory is watched and
// events are debounced.
type Watcher struct {
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// Watch starts watching path. onChange runs on a background goroutine for
// every successful reload; load failures are logged and skipped.
func Watch(path string, logger *slog.Logger, onChange func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config-watcher")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fsw, stopCh: make(chan struct{})}

	go func() {
		var pending *time.Timer
		fire := make(chan struct{}, 1)
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				// debounce bursts of writes into one reload
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(200*time.Millisecond, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case <-fire:
				cfg, err := Load(absPath)
				if err != nil {
					logger.Warn("config reload failed", "error", err)
					continue
				}
				logger.Info("config reloaded", "path", absPath)
				onChange(cfg)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", "error", err)
			case <-w.stopCh:
				return
			}
		}
	}()

	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.stopCh)
	return w.watcher.Close()
}
