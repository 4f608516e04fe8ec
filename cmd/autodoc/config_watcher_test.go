// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gowerlin/AutoDoc/cmd/autodoc/config"
	"github.com/gowerlin/AutoDoc/pkg/logging"
)

// reloadRecorder collects handler invocations safely across goroutines.
type reloadRecorder struct {
	mu      sync.Mutex
	configs []config.AppConfig
}

func (r *reloadRecorder) handle(cfg config.AppConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
}

func (r *reloadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs)
}

func (r *reloadRecorder) last() config.AppConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[len(r.configs)-1]
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func newWatcherFixture(t *testing.T) (*config.Store, *reloadRecorder, *ConfigWatcher) {
	t.Helper()

	store := &config.Store{Dir: t.TempDir()}
	recorder := &reloadRecorder{}
	logger := logging.New(logging.Config{Level: logging.LevelError, Writer: &bytes.Buffer{}})

	watcher, err := NewConfigWatcher(store, recorder.handle, logger)
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	watcher.debounce = 50 * time.Millisecond
	t.Cleanup(watcher.Stop)

	return store, recorder, watcher
}

func TestConfigWatcher_ReloadsOnSave(t *testing.T) {
	store, recorder, watcher := newWatcherFixture(t)

	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Basic.Language = "en-US"
	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return recorder.count() >= 1 }) {
		t.Fatal("handler was not called after a save")
	}
	if got := recorder.last().Basic.Language; got != "en-US" {
		t.Errorf("reloaded Language = %q, want %q", got, "en-US")
	}
}

func TestConfigWatcher_DebouncesBursts(t *testing.T) {
	store, recorder, watcher := newWatcherFixture(t)

	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Several saves inside one debounce window.
	for i := 0; i < 5; i++ {
		cfg := config.DefaultConfig()
		cfg.Exploration.MaxDepth = i + 1
		if err := store.Save(cfg); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	if !waitFor(t, 2*time.Second, func() bool { return recorder.count() >= 1 }) {
		t.Fatal("handler was not called")
	}
	// Allow a trailing window to drain, then expect far fewer
	// callbacks than saves.
	time.Sleep(200 * time.Millisecond)
	if recorder.count() >= 5 {
		t.Errorf("expected debouncing, got %d callbacks for 5 saves", recorder.count())
	}
	if got := recorder.last().Exploration.MaxDepth; got != 5 {
		t.Errorf("final reload MaxDepth = %d, want the last save", got)
	}
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	store, recorder, watcher := newWatcherFixture(t)

	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Unrelated file in the same directory.
	if err := os.WriteFile(filepath.Join(store.Dir, "notes.txt"), []byte("unrelated"), 0600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if recorder.count() != 0 {
		t.Errorf("unrelated file triggered %d reloads", recorder.count())
	}
}

func TestConfigWatcher_StartStop(t *testing.T) {
	_, _, watcher := newWatcherFixture(t)

	if watcher.IsWatching() {
		t.Error("watcher should be idle before Start")
	}
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !watcher.IsWatching() {
		t.Error("watcher should be active after Start")
	}

	// Start is idempotent.
	if err := watcher.Start(context.Background()); err != nil {
		t.Errorf("second Start: %v", err)
	}

	watcher.Stop()
	if watcher.IsWatching() {
		t.Error("watcher should be idle after Stop")
	}
	// Stop is idempotent.
	watcher.Stop()
}

func TestConfigWatcher_FailedStartLeavesIdle(t *testing.T) {
	store := &config.Store{Dir: filepath.Join(t.TempDir(), "missing")}
	logger := logging.New(logging.Config{Level: logging.LevelError, Writer: &bytes.Buffer{}})

	watcher, err := NewConfigWatcher(store, func(config.AppConfig) {}, logger)
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	t.Cleanup(watcher.Stop)

	if err := watcher.Start(context.Background()); err == nil {
		t.Fatal("Start should fail for a missing directory")
	}
	if watcher.IsWatching() {
		t.Error("IsWatching should be false after a failed Start")
	}
}
