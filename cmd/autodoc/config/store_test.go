// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Basic.AppName != "AutoDoc Agent" {
		t.Errorf("AppName = %q, want %q", cfg.Basic.AppName, "AutoDoc Agent")
	}
	if cfg.Basic.Language != "zh-TW" {
		t.Errorf("Language = %q, want %q", cfg.Basic.Language, "zh-TW")
	}
	if !cfg.Basic.MinimizeToTray {
		t.Error("MinimizeToTray should default to true")
	}
	if cfg.Auth.ClaudeAPIKey != "" {
		t.Error("ClaudeAPIKey should default to empty")
	}
	if cfg.Auth.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q", cfg.Auth.ClaudeModel)
	}
	if cfg.Auth.ChromeMCPPort != 3001 {
		t.Errorf("ChromeMCPPort = %d, want 3001", cfg.Auth.ChromeMCPPort)
	}
	if cfg.Exploration.Strategy != "importance" {
		t.Errorf("Strategy = %q, want %q", cfg.Exploration.Strategy, "importance")
	}
	if cfg.Exploration.MaxDepth != 5 {
		t.Errorf("MaxDepth = %d, want 5", cfg.Exploration.MaxDepth)
	}
	if cfg.Exploration.MaxPages != 100 {
		t.Errorf("MaxPages = %d, want 100", cfg.Exploration.MaxPages)
	}
	if cfg.Advanced.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.Advanced.LogLevel, "info")
	}
	if cfg.Advanced.ConcurrentTabs != 3 {
		t.Errorf("ConcurrentTabs = %d, want 3", cfg.Advanced.ConcurrentTabs)
	}
}

func TestDefaultConfig_StoragePathsUnderAutoDoc(t *testing.T) {
	cfg := DefaultConfig()

	for name, p := range map[string]string{
		"snapshot":   cfg.Storage.SnapshotStoragePath,
		"screenshot": cfg.Storage.ScreenshotStoragePath,
		"database":   cfg.Storage.DatabasePath,
	} {
		if !strings.Contains(p, "AutoDoc") {
			t.Errorf("%s path %q should live under an AutoDoc directory", name, p)
		}
	}
}

func TestSecretFieldsNeverSerialized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.ClaudeAPIKey = "sk-ant-super-secret"
	cfg.Auth.TargetPassword = "hunter2"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "sk-ant-super-secret") {
		t.Error("serialized config contains the API key")
	}
	if strings.Contains(out, "hunter2") {
		t.Error("serialized config contains the target password")
	}
	if strings.Contains(out, "claude_api_key") {
		t.Error("serialized config should not even carry the API key field")
	}
}

func TestStore_LoadMissingFileReturnsDefaults(t *testing.T) {
	store := &Store{Dir: t.TempDir()}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Basic.AppName != "AutoDoc Agent" {
		t.Errorf("missing file should yield defaults, got AppName=%q", cfg.Basic.AppName)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := &Store{Dir: t.TempDir()}

	cfg := DefaultConfig()
	cfg.Basic.Language = "en-US"
	cfg.Exploration.MaxDepth = 7
	cfg.Advanced.ProxyURL = "http://proxy.local:8080"

	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Basic.Language != "en-US" {
		t.Errorf("Language = %q, want %q", loaded.Basic.Language, "en-US")
	}
	if loaded.Exploration.MaxDepth != 7 {
		t.Errorf("MaxDepth = %d, want 7", loaded.Exploration.MaxDepth)
	}
	if loaded.Advanced.ProxyURL != "http://proxy.local:8080" {
		t.Errorf("ProxyURL = %q", loaded.Advanced.ProxyURL)
	}
}

func TestStore_LoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Dir: dir}

	// A sparse file from an older version: only one field set.
	sparse := "basic:\n  language: ja-JP\n"
	if err := os.WriteFile(store.Path(), []byte(sparse), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Basic.Language != "ja-JP" {
		t.Errorf("Language = %q, want %q", cfg.Basic.Language, "ja-JP")
	}
	if cfg.Exploration.MaxDepth != 5 {
		t.Errorf("unset fields should keep defaults, MaxDepth = %d", cfg.Exploration.MaxDepth)
	}
}

func TestStore_LoadCorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Dir: dir}

	if err := os.WriteFile(store.Path(), []byte("basic: [not a mapping"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(); err == nil {
		t.Error("corrupt file should not silently fall back to defaults")
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Dir: dir}

	if err := store.Save(DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != configFileName {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory should hold only %s, got %v", configFileName, names)
	}
}

func TestStore_SaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "autodoc-agent")
	store := &Store{Dir: dir}

	if err := store.Save(DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Errorf("config file missing after Save: %v", err)
	}
}

func TestStore_Path(t *testing.T) {
	store := &Store{Dir: "/tmp/cfg"}
	want := filepath.Join("/tmp/cfg", "config.yaml")
	if got := store.Path(); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	if !strings.Contains(store.Dir, appDirName) {
		t.Errorf("store dir %q should end in %q", store.Dir, appDirName)
	}
}
