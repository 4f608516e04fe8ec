// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gowerlin/AutoDoc/cmd/autodoc/config"
	"github.com/gowerlin/AutoDoc/pkg/logging"
)

// ConfigReloadHandler receives the freshly loaded config after a change.
type ConfigReloadHandler func(cfg config.AppConfig)

// ConfigWatcher reloads the config file when it changes on disk.
//
// The watcher observes the config directory, not the file: atomic saves
// replace the file by rename, which would silently detach a file-level
// watch. Rapid event bursts (editor saves, the save pipeline's temp
// file dance) are debounced into a single reload.
//
// The handler runs on the watcher goroutine; keep it short or hand off.
type ConfigWatcher struct {
	store    *config.Store
	handler  ConfigReloadHandler
	debounce time.Duration
	logger   *logging.Logger

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewConfigWatcher creates a watcher for the store's config file.
// The default debounce window is 200ms.
func NewConfigWatcher(store *config.Store, handler ConfigReloadHandler, logger *logging.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{
		store:    store,
		handler:  handler,
		debounce: 200 * time.Millisecond,
		logger:   logger,
		watcher:  watcher,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Returns immediately; events are handled on a
// background goroutine until Stop or context cancellation.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.store.Dir); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return err
	}

	go w.loop(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *ConfigWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// loop debounces events on the config file and triggers reloads.
func (w *ConfigWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigFile(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				arm()
			}
		case <-timerC:
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// isConfigFile filters directory events down to the config file itself.
func (w *ConfigWatcher) isConfigFile(path string) bool {
	return filepath.Base(path) == filepath.Base(w.store.Path())
}

// reload loads the current file and hands it to the handler. A file
// that is mid-write and unparseable is skipped; the next event will
// retry.
func (w *ConfigWatcher) reload() {
	cfg, err := w.store.Load()
	if err != nil {
		w.logger.Warn("config changed but could not be reloaded", "error", err)
		return
	}
	w.logger.Info("config file changed, reloaded", "path", w.store.Path())
	if w.handler != nil {
		w.handler(cfg)
	}
}
