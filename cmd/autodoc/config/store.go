// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// appDirName is the per-user directory under the OS config root.
	appDirName = "autodoc-agent"

	configFileName = "config.yaml"
)

// Store reads and writes the on-disk configuration file.
//
// The file lives at {os.UserConfigDir()}/autodoc-agent/config.yaml.
// Tests point Dir at a temp directory instead.
type Store struct {
	// Dir is the directory holding config.yaml. When empty, the
	// platform default is used.
	Dir string
}

// NewStore returns a Store rooted at the platform config directory.
func NewStore() (*Store, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("could not resolve the user config directory: %w", err)
	}
	return &Store{Dir: filepath.Join(root, appDirName)}, nil
}

// Path returns the full path of the config file.
func (s *Store) Path() string {
	return filepath.Join(s.Dir, configFileName)
}

// Load reads the config file, returning defaults when no file exists
// yet. A file that exists but cannot be read or parsed is an error;
// defaults must not silently mask a corrupted config.
func (s *Store) Load() (AppConfig, error) {
	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	// Start from defaults so fields missing from an older file keep
	// their default values instead of zeroing out.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config atomically: marshal to a temp file in the
// same directory, then rename over the target. Readers never observe
// a partially written file.
//
// Secret fields carry a yaml:"-" tag, so the serialized form cannot
// contain them regardless of what the in-memory struct holds.
func (s *Store) Save(cfg AppConfig) error {
	if err := os.MkdirAll(s.Dir, 0750); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize the config: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, configFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create the temp config file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write the temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close the temp config file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace the config file: %w", err)
	}
	return nil
}
