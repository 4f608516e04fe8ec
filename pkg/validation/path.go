// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// file paths or subprocess calls. Using these validators prevents injection
// attacks (command injection, path traversal).
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrPathRejected is returned when a path resolves outside every allowed
// base directory. The wrapped message includes the canonical path so the
// rejection can be diagnosed without re-running the validation.
var ErrPathRejected = errors.New("path outside allowed directories")

// PathGuard validates filesystem paths against a closed allow-list of
// base directories.
//
// # Description
//
// Configuration-driven paths (storage locations, credential files) are a
// path-traversal vector: a crafted value like "../../etc/passwd" or a
// symlink into a system directory would let a settings file read or write
// outside the application's sandbox. PathGuard canonicalizes every
// candidate path (absolute + symlink-resolved) and accepts it only when
// the canonical result is a descendant of one of the allowed bases.
//
// The allow-list is closed: a path outside it is rejected even when it
// exists and is readable. Validation is performed on the canonical target,
// so a symlink whose literal location is inside an allowed base but whose
// target escapes it is still rejected.
//
// # Thread Safety
//
// PathGuard is immutable after construction and safe for concurrent use.
type PathGuard struct {
	bases []string
}

// NewPathGuard creates a guard for an explicit set of base directories.
//
// Each base is canonicalized at construction; bases that cannot be
// resolved (for example, a directory that does not exist) are dropped.
// Intended for tests and for callers that manage their own sandbox roots.
func NewPathGuard(bases ...string) *PathGuard {
	g := &PathGuard{}
	for _, b := range bases {
		canon, err := canonicalize(b)
		if err != nil {
			continue
		}
		g.bases = append(g.bases, canon)
	}
	return g
}

// DefaultPathGuard creates a guard allowing the conventional user
// directories: documents, user config, user data, and the home directory.
//
// Returns an error only when the home directory itself cannot be
// resolved, since every other base degrades to a subset of it.
func DefaultPathGuard() (*PathGuard, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("could not resolve the user's home directory: %w", err)
	}

	bases := []string{home, DocumentsDir()}
	if cfg, err := os.UserConfigDir(); err == nil {
		bases = append(bases, cfg)
	}
	if data := userDataDir(home); data != "" {
		bases = append(bases, data)
	}
	return NewPathGuard(bases...), nil
}

// ValidatePath canonicalizes path and checks it against the allow-list.
//
// # Description
//
// The path is resolved to an absolute, symlink-free form. Paths that do
// not exist yet (a database file to be created, a storage tree before
// the first save) are resolved at the nearest existing ancestor and the
// untraversed tail re-appended, so destination paths validate before
// anything is materialized. Tail components cannot hide symlinks
// because they do not exist, and ".." segments are removed lexically
// before resolution.
//
// # Outputs
//
//   - string: the canonical path, empty on rejection
//   - error: ErrPathRejected (wrapped, with the canonical path in the
//     message) when the path escapes the allow-list; other errors when
//     canonicalization fails
//
// ValidatePath never creates directories and has no side effects.
func (g *PathGuard) ValidatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("could not resolve path %q: %w", path, err)
	}

	canon, err := resolveWithMissingTail(abs)
	if err != nil {
		return "", fmt.Errorf("could not resolve path %q: %w", path, err)
	}

	for _, base := range g.bases {
		if isDescendant(base, canon) {
			return canon, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrPathRejected, canon)
}

// resolveWithMissingTail canonicalizes abs, walking up to the nearest
// existing ancestor when the tail does not exist. The resolved ancestor
// gets the untraversed tail re-appended unchanged.
func resolveWithMissingTail(abs string) (string, error) {
	dir := abs
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", err
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
	}
}

// Bases returns a copy of the canonical allow-list roots.
func (g *PathGuard) Bases() []string {
	out := make([]string, len(g.bases))
	copy(out, g.bases)
	return out
}

// DocumentsDir returns the user's documents directory.
//
// There is no stdlib accessor for this, so it follows platform
// convention: %USERPROFILE%\Documents on Windows, ~/Documents elsewhere.
// Falls back to the current directory when home cannot be resolved,
// mirroring how the default configuration degrades.
func DocumentsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Documents")
}

// canonicalize resolves path to an absolute, symlink-free form.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// isDescendant reports whether target equals base or sits beneath it.
// Comparison is on whole path segments so /home/user does not match
// /home/username.
func isDescendant(base, target string) bool {
	if target == base {
		return true
	}
	return strings.HasPrefix(target, base+string(filepath.Separator))
}

// userDataDir returns the platform data directory (XDG_DATA_HOME on
// Linux, Application Support on macOS, LocalAppData on Windows).
func userDataDir(home string) string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support")
	case "windows":
		if dir := os.Getenv("LocalAppData"); dir != "" {
			return dir
		}
		return filepath.Join(home, "AppData", "Local")
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return dir
		}
		return filepath.Join(home, ".local", "share")
	}
}
