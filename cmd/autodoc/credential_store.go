// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main provides CredentialStore for secure credential management.

CredentialStore keeps API keys and target-site passwords in the operating
system's native credential store instead of the config file. The store is
accessed through the platform CLI so no native keychain bindings are needed.

# Security Context

This is a CRITICAL-RISK component because it handles the Claude API key and
the password for the documentation target site. Improper handling could leak
credentials into log files or the on-disk configuration.

# Security Features

  - Zero Value Logging: Credential values are NEVER logged (key names only)
  - Keychain Only: Values round-trip through the OS store, never the config file
  - Fail-Secure: Missing credentials produce a typed error, never a guess

# Platform Backends

  - macOS: Keychain via the `security` CLI
  - Linux: Secret Service via the `secret-tool` CLI (libsecret-tools)

Windows is not supported by the CLI path; construction fails there so the
caller can surface a clear setup message instead of failing on first use.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Error Sentinel Values
// -----------------------------------------------------------------------------

// ErrCredentialNotFound is returned when a requested credential does not
// exist in the OS store.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrNoCredentialBackend is returned when no OS credential store is usable
// on this system.
var ErrNoCredentialBackend = errors.New("no credential backend available")

// -----------------------------------------------------------------------------
// Backend Constants
// -----------------------------------------------------------------------------

const (
	// CredentialBackendKeychain is the macOS Keychain backend.
	CredentialBackendKeychain = "keychain"

	// CredentialBackendLibsecret is the Linux Secret Service backend.
	CredentialBackendLibsecret = "libsecret"

	// credentialService is the service name every entry is filed under.
	// Shared with earlier releases, so existing entries keep working.
	credentialService = "AutoDoc Agent"
)

// -----------------------------------------------------------------------------
// Well-Known Credential Keys
// -----------------------------------------------------------------------------

const (
	// CredentialClaudeAPIKey is the Anthropic API key for Claude models.
	// Format: Must start with "sk-"
	CredentialClaudeAPIKey = "claude_api_key"

	// CredentialTargetPassword is the password for the documentation
	// target site when target_auth_type is not "none".
	CredentialTargetPassword = "target_password"
)

// KnownCredentials lists the credential keys AutoDoc manages.
var KnownCredentials = []string{
	CredentialClaudeAPIKey,
	CredentialTargetPassword,
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// CredentialStore provides secure access to locally stored credentials.
//
// # Description
//
// This interface abstracts credential persistence from the underlying OS
// mechanism. The production implementation shells out to the platform
// credential CLI; tests use MockCredentialStore.
//
// # Security
//
//   - Credential values are NEVER logged (even at debug level)
//   - Log statements may reference key names only
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type CredentialStore interface {
	// Store writes a credential, replacing any previous value for the key.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - key: Credential key (e.g., "claude_api_key")
	//   - value: The secret value
	//
	// # Outputs
	//
	//   - error: Backend errors; nil on success
	Store(ctx context.Context, key, value string) error

	// Get retrieves a credential value by key.
	//
	// # Outputs
	//
	//   - string: The credential value
	//   - error: ErrCredentialNotFound when absent, or backend errors
	Get(ctx context.Context, key string) (string, error)

	// Delete removes a credential. Deleting a key that does not exist
	// is not an error.
	Delete(ctx context.Context, key string) error

	// Has reports whether a credential exists. It never returns an
	// error; any backend failure reads as "absent".
	Has(ctx context.Context, key string) bool

	// Migrate moves a plaintext value into the OS store. Returns true
	// when a value was written, false when there was nothing to move.
	// Used to upgrade configurations that predate keychain storage.
	Migrate(ctx context.Context, key, plaintext string) (bool, error)

	// Backend returns the identifier of the active backend.
	Backend() string
}

// Compile-time interface compliance checks.
var (
	_ CredentialStore = (*DefaultCredentialStore)(nil)
	_ CredentialStore = (*MockCredentialStore)(nil)
)

// -----------------------------------------------------------------------------
// Default Implementation
// -----------------------------------------------------------------------------

// DefaultCredentialStore implements CredentialStore over the platform
// credential CLI.
//
// # Description
//
// On macOS, entries are generic passwords managed with the `security`
// tool. On Linux, entries live in the Secret Service (GNOME Keyring,
// KWallet) managed with `secret-tool`. Values pass through stdin where
// the CLI allows it so they never appear in the process argument list.
//
// # Thread Safety
//
// DefaultCredentialStore is safe for concurrent use. The OS store
// serializes concurrent writers itself.
type DefaultCredentialStore struct {
	backend string

	// execCommandFunc is injectable for tests.
	execCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

	// lookPathFunc is injectable for backend detection tests.
	lookPathFunc func(file string) (string, error)

	mu sync.Mutex
}

// NewDefaultCredentialStore creates a credential store bound to the
// platform backend.
//
// # Outputs
//
//   - *DefaultCredentialStore: Ready-to-use store
//   - error: ErrNoCredentialBackend when the platform has no usable store
//
// # Examples
//
//	store, err := NewDefaultCredentialStore()
//	if err != nil {
//	    return err
//	}
//	apiKey, err := store.Get(ctx, CredentialClaudeAPIKey)
//
// # Limitations
//
//   - Backend detection happens once at construction
//   - Windows Credential Manager is not supported
func NewDefaultCredentialStore() (*DefaultCredentialStore, error) {
	s := &DefaultCredentialStore{
		execCommandFunc: exec.CommandContext,
		lookPathFunc:    exec.LookPath,
	}
	backend, err := s.detectBackend()
	if err != nil {
		return nil, err
	}
	s.backend = backend
	return s, nil
}

// detectBackend picks the credential backend for the current platform.
func (s *DefaultCredentialStore) detectBackend() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return CredentialBackendKeychain, nil
	case "linux":
		if _, err := s.lookPathFunc("secret-tool"); err == nil {
			return CredentialBackendLibsecret, nil
		}
		return "", fmt.Errorf("%w: install libsecret-tools (secret-tool)", ErrNoCredentialBackend)
	default:
		return "", fmt.Errorf("%w: unsupported platform %s", ErrNoCredentialBackend, runtime.GOOS)
	}
}

// Backend returns the identifier of the active backend.
func (s *DefaultCredentialStore) Backend() string {
	return s.backend
}

// Store writes a credential, replacing any previous value for the key.
func (s *DefaultCredentialStore) Store(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("credential key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.backend {
	case CredentialBackendKeychain:
		return s.keychainStore(ctx, key, value)
	case CredentialBackendLibsecret:
		return s.libsecretStore(ctx, key, value)
	default:
		return ErrNoCredentialBackend
	}
}

// Get retrieves a credential value by key.
func (s *DefaultCredentialStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("credential key cannot be empty")
	}

	var (
		value string
		err   error
	)
	switch s.backend {
	case CredentialBackendKeychain:
		value, err = s.keychainLookup(ctx, key)
	case CredentialBackendLibsecret:
		value, err = s.libsecretLookup(ctx, key)
	default:
		return "", ErrNoCredentialBackend
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Delete removes a credential. Absent keys are not an error.
func (s *DefaultCredentialStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("credential key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cmd *exec.Cmd
	switch s.backend {
	case CredentialBackendKeychain:
		cmd = s.execCommandFunc(ctx, "security", "delete-generic-password",
			"-a", key,
			"-s", credentialService,
		)
	case CredentialBackendLibsecret:
		cmd = s.execCommandFunc(ctx, "secret-tool", "clear",
			"service", credentialService,
			"key", key,
		)
	default:
		return ErrNoCredentialBackend
	}

	// Both CLIs exit non-zero when the entry is missing. Delete is
	// idempotent, so that outcome is success.
	_ = cmd.Run()

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Has reports whether a credential exists. Backend failures read as absent.
func (s *DefaultCredentialStore) Has(ctx context.Context, key string) bool {
	_, err := s.Get(ctx, key)
	return err == nil
}

// Migrate moves a plaintext value into the OS store.
func (s *DefaultCredentialStore) Migrate(ctx context.Context, key, plaintext string) (bool, error) {
	if plaintext == "" {
		return false, nil
	}
	if err := s.Store(ctx, key, plaintext); err != nil {
		return false, fmt.Errorf("migrating %s to %s: %w", key, s.backend, err)
	}
	return true, nil
}

// -----------------------------------------------------------------------------
// macOS Keychain Backend
// -----------------------------------------------------------------------------

// keychainStore writes a generic password entry. -U updates in place
// when the entry already exists.
func (s *DefaultCredentialStore) keychainStore(ctx context.Context, key, value string) error {
	cmd := s.execCommandFunc(ctx, "security", "add-generic-password",
		"-a", key,
		"-s", credentialService,
		"-w", value,
		"-U",
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		// The output never echoes -w arguments, only the error text.
		return fmt.Errorf("keychain store failed for %s: %s", key, strings.TrimSpace(string(output)))
	}
	return nil
}

// keychainLookup reads a generic password entry. A missing entry is a
// non-zero exit from the CLI; output content is never inspected, so
// empty and whitespace values round-trip exactly.
func (s *DefaultCredentialStore) keychainLookup(ctx context.Context, key string) (string, error) {
	cmd := s.execCommandFunc(ctx, "security", "find-generic-password",
		"-a", key,
		"-s", credentialService,
		"-w",
	)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, key)
		}
		return "", fmt.Errorf("keychain lookup failed for %s: %w", key, err)
	}
	// -w prints the value followed by a single newline.
	return strings.TrimSuffix(string(output), "\n"), nil
}

// -----------------------------------------------------------------------------
// Linux Secret Service Backend
// -----------------------------------------------------------------------------

// libsecretStore writes an entry via secret-tool. The value is passed
// on stdin so it never appears in /proc/*/cmdline.
func (s *DefaultCredentialStore) libsecretStore(ctx context.Context, key, value string) error {
	cmd := s.execCommandFunc(ctx, "secret-tool", "store",
		"--label", fmt.Sprintf("%s %s", credentialService, key),
		"service", credentialService,
		"key", key,
	)
	cmd.Stdin = strings.NewReader(value)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("secret-tool store failed for %s: %s", key, strings.TrimSpace(string(output)))
	}
	return nil
}

// libsecretLookup reads an entry via secret-tool. Missing entries exit
// non-zero; when piped, lookup writes the raw secret bytes with no
// trailing newline, so the output is the value as stored.
func (s *DefaultCredentialStore) libsecretLookup(ctx context.Context, key string) (string, error) {
	cmd := s.execCommandFunc(ctx, "secret-tool", "lookup",
		"service", credentialService,
		"key", key,
	)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, key)
		}
		return "", fmt.Errorf("secret-tool lookup failed for %s: %w", key, err)
	}
	return string(output), nil
}

// -----------------------------------------------------------------------------
// Mock Implementation
// -----------------------------------------------------------------------------

// MockCredentialStore is an in-memory CredentialStore for testing.
//
// # Usage
//
//	mock := NewMockCredentialStore()
//	mock.Credentials[CredentialClaudeAPIKey] = "sk-ant-test123"
//
// Error injection is per-operation through the *Err fields.
type MockCredentialStore struct {
	// Credentials holds the stored key/value pairs.
	Credentials map[string]string

	// StoreErr, GetErr, DeleteErr inject failures when non-nil.
	StoreErr  error
	GetErr    error
	DeleteErr error

	// StoreCalls records the keys passed to Store, in order.
	StoreCalls []string

	mu sync.Mutex
}

// NewMockCredentialStore creates an empty mock store.
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		Credentials: make(map[string]string),
	}
}

// Store writes a credential to the in-memory map.
func (m *MockCredentialStore) Store(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreErr != nil {
		return m.StoreErr
	}
	m.Credentials[key] = value
	m.StoreCalls = append(m.StoreCalls, key)
	return nil
}

// Get retrieves a credential from the in-memory map.
func (m *MockCredentialStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	value, ok := m.Credentials[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, key)
	}
	return value, nil
}

// Delete removes a credential from the in-memory map.
func (m *MockCredentialStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Credentials, key)
	return nil
}

// Has reports whether the in-memory map holds the key.
func (m *MockCredentialStore) Has(ctx context.Context, key string) bool {
	_, err := m.Get(ctx, key)
	return err == nil
}

// Migrate mirrors DefaultCredentialStore.Migrate over the map.
func (m *MockCredentialStore) Migrate(ctx context.Context, key, plaintext string) (bool, error) {
	if plaintext == "" {
		return false, nil
	}
	if err := m.Store(ctx, key, plaintext); err != nil {
		return false, err
	}
	return true, nil
}

// Backend identifies the mock backend.
func (m *MockCredentialStore) Backend() string {
	return "mock"
}
