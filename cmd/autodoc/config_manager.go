// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main provides ConfigManager for settings lifecycle management.

ConfigManager coordinates the three stores a setting can touch:

  - the YAML config file (everything except secrets)
  - the OS credential store (API key, target password)
  - the filesystem (storage directories referenced by the config)

# Save Pipeline

Save is all-or-nothing in this order:

 1. Validate the whole config, collecting every violation
 2. Push secrets to the OS credential store
 3. Persist the config file atomically (secrets are never serialized)

A validation failure stops the pipeline before any state changes. Only the
snapshot directory is created on demand; other storage paths are validated
but left to the components that write to them.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gowerlin/AutoDoc/cmd/autodoc/config"
	"github.com/gowerlin/AutoDoc/pkg/logging"
	"github.com/gowerlin/AutoDoc/pkg/validation"
)

// ErrConfigInvalid is returned by Save when validation found violations.
// The full list is available through errors.As on *ConfigValidationError.
var ErrConfigInvalid = errors.New("config invalid")

// ConfigValidationError carries every violation found in one pass.
type ConfigValidationError struct {
	Violations []string
}

// Error joins all violations into a single message.
func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrConfigInvalid, strings.Join(e.Violations, "; "))
}

// Unwrap lets errors.Is match ErrConfigInvalid.
func (e *ConfigValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// ConfigManager owns loading, validating, and saving the app config.
//
// # Thread Safety
//
// ConfigManager itself holds no mutable state; concurrent Save calls are
// serialized by the atomic rename in the store and the OS credential
// store's own locking.
type ConfigManager struct {
	store       *config.Store
	credentials CredentialStore
	guard       *validation.PathGuard
	validate    *validator.Validate
	logger      *logging.Logger
}

// NewConfigManager wires a manager from its dependencies.
func NewConfigManager(
	store *config.Store,
	credentials CredentialStore,
	guard *validation.PathGuard,
	logger *logging.Logger,
) *ConfigManager {
	return &ConfigManager{
		store:       store,
		credentials: credentials,
		guard:       guard,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// Load reads the config file and overlays secrets from the OS store.
//
// A missing config file yields defaults. Missing credentials are not an
// error; the corresponding fields stay empty and validation reports them
// at save time. Only a corrupted config file fails the load.
func (cm *ConfigManager) Load(ctx context.Context) (config.AppConfig, error) {
	cfg, err := cm.store.Load()
	if err != nil {
		return config.AppConfig{}, err
	}

	if key, err := cm.credentials.Get(ctx, CredentialClaudeAPIKey); err == nil {
		cfg.Auth.ClaudeAPIKey = key
	} else if !errors.Is(err, ErrCredentialNotFound) {
		cm.logger.Warn("could not read credential, continuing without it",
			"key", CredentialClaudeAPIKey, "error", err)
	}

	if pw, err := cm.credentials.Get(ctx, CredentialTargetPassword); err == nil {
		cfg.Auth.TargetPassword = pw
	} else if !errors.Is(err, ErrCredentialNotFound) {
		cm.logger.Warn("could not read credential, continuing without it",
			"key", CredentialTargetPassword, "error", err)
	}

	return cfg, nil
}

// validationPassedMessage is returned by Validate for a clean config.
const validationPassedMessage = "configuration is valid"

// Validate checks the whole config in one read-only pass.
//
// On success the returned slice carries a confirmation message. On
// failure the error is a *ConfigValidationError holding every violation
// found, not just the first.
func (cm *ConfigManager) Validate(cfg config.AppConfig) ([]string, error) {
	if violations := cm.collectViolations(cfg); len(violations) > 0 {
		return nil, &ConfigValidationError{Violations: violations}
	}
	return []string{validationPassedMessage}, nil
}

// collectViolations walks every check and accumulates the failures.
func (cm *ConfigManager) collectViolations(cfg config.AppConfig) []string {
	var violations []string

	switch {
	case cfg.Auth.ClaudeAPIKey == "":
		violations = append(violations, "claude_api_key must not be empty")
	case !strings.HasPrefix(cfg.Auth.ClaudeAPIKey, "sk-"):
		violations = append(violations, "claude_api_key has an invalid format, expected an sk- prefix")
	}

	if err := cm.validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				violations = append(violations, boundsViolation(fe))
			}
		} else {
			violations = append(violations, err.Error())
		}
	}

	for name, path := range map[string]string{
		"snapshot_storage_path":   cfg.Storage.SnapshotStoragePath,
		"screenshot_storage_path": cfg.Storage.ScreenshotStoragePath,
		"database_path":           cfg.Storage.DatabasePath,
	} {
		if _, err := cm.guard.ValidatePath(path); err != nil {
			violations = append(violations, fmt.Sprintf("%s: %v", name, err))
		}
	}

	// Optional paths are only checked when set.
	for name, path := range map[string]string{
		"google_credentials_path": cfg.Auth.GoogleCredentialsPath,
		"google_token_path":       cfg.Auth.GoogleTokenPath,
	} {
		if path == "" {
			continue
		}
		if _, err := cm.guard.ValidatePath(path); err != nil {
			violations = append(violations, fmt.Sprintf("%s: %v", name, err))
		}
	}

	return violations
}

// boundsViolation maps a struct tag failure to a stable message.
func boundsViolation(fe validator.FieldError) string {
	switch fe.Field() {
	case "MaxDepth":
		return "max_depth must be between 1 and 10"
	case "MaxPages":
		return "max_pages must be between 10 and 1000"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// Save runs the full pipeline: validate, push secrets, persist.
//
// On a validation failure nothing changes: no directory is created, no
// credential is written, the config file is untouched. The returned
// error wraps ErrConfigInvalid and carries every violation.
func (cm *ConfigManager) Save(ctx context.Context, cfg config.AppConfig) error {
	if _, err := cm.Validate(cfg); err != nil {
		return err
	}

	snapshotPath, err := cm.guard.ValidatePath(cfg.Storage.SnapshotStoragePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(snapshotPath, 0750); err != nil {
		return fmt.Errorf("failed to create the snapshot directory: %w", err)
	}

	if err := cm.credentials.Store(ctx, CredentialClaudeAPIKey, cfg.Auth.ClaudeAPIKey); err != nil {
		return fmt.Errorf("failed to store %s: %w", CredentialClaudeAPIKey, err)
	}
	if cfg.Auth.TargetPassword != "" {
		if err := cm.credentials.Store(ctx, CredentialTargetPassword, cfg.Auth.TargetPassword); err != nil {
			return fmt.Errorf("failed to store %s: %w", CredentialTargetPassword, err)
		}
	}

	if err := cm.store.Save(cfg); err != nil {
		return err
	}

	cm.logger.Info("configuration saved", "path", cm.store.Path())
	return nil
}

// Default returns the out-of-the-box configuration.
func (cm *ConfigManager) Default() config.AppConfig {
	return config.DefaultConfig()
}

// Reset overwrites the config file with defaults.
//
// Reset bypasses validation: defaults carry an empty API key, which is
// exactly the state a reset should produce. Credentials in the OS store
// are left alone; use the credential commands to remove those.
func (cm *ConfigManager) Reset() error {
	if err := cm.store.Save(config.DefaultConfig()); err != nil {
		return err
	}
	cm.logger.Info("configuration reset to defaults", "path", cm.store.Path())
	return nil
}

// Migrate moves plaintext secrets out of a legacy config file into the
// OS store and rewrites the file without them. Returns how many values
// were migrated.
func (cm *ConfigManager) Migrate(ctx context.Context, cfg config.AppConfig) (int, error) {
	migrated := 0

	moved, err := cm.credentials.Migrate(ctx, CredentialClaudeAPIKey, cfg.Auth.ClaudeAPIKey)
	if err != nil {
		return migrated, err
	}
	if moved {
		migrated++
	}

	moved, err = cm.credentials.Migrate(ctx, CredentialTargetPassword, cfg.Auth.TargetPassword)
	if err != nil {
		return migrated, err
	}
	if moved {
		migrated++
	}

	if migrated > 0 {
		// Rewriting drops any plaintext secrets an old file carried;
		// current tags keep them out of the serialized form.
		if err := cm.store.Save(cfg); err != nil {
			return migrated, err
		}
		cm.logger.Info("credentials migrated to the OS store", "count", migrated)
	}
	return migrated, nil
}
