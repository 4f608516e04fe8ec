// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gowerlin/AutoDoc/cmd/autodoc/config"
	"github.com/gowerlin/AutoDoc/pkg/logging"
	"github.com/gowerlin/AutoDoc/pkg/validation"
)

// appLogger is initialized by the root command before any subcommand runs.
var appLogger *logging.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogger builds the process logger. The log level comes from the
// config file when one exists; flags override output shape.
func initLogger() {
	level := logging.LevelInfo
	if store, err := config.NewStore(); err == nil {
		if cfg, err := store.Load(); err == nil {
			level = logging.ParseLevel(cfg.Advanced.LogLevel)
		}
	}
	appLogger = logging.New(logging.Config{
		Level:   level,
		Service: "autodoc",
		JSON:    jsonLogs,
		Quiet:   quietFlag,
		LogDir:  logDirFlag,
	})
}

// app bundles the wired components behind the CLI commands.
type app struct {
	logger      *logging.Logger
	store       *config.Store
	credentials CredentialStore
	manager     *ConfigManager
	supervisor  *BackendSupervisor
	metrics     *SupervisorMetrics
}

// newApp wires the full dependency graph.
//
// A missing credential backend is not fatal here: read-only commands
// still work, and write paths surface the backend error when used.
func newApp() (*app, error) {
	store, err := config.NewStore()
	if err != nil {
		return nil, err
	}

	guard, err := validation.DefaultPathGuard()
	if err != nil {
		return nil, err
	}

	var credentials CredentialStore
	credentials, err = NewDefaultCredentialStore()
	if err != nil {
		if !errors.Is(err, ErrNoCredentialBackend) {
			return nil, err
		}
		appLogger.Warn("credential backend unavailable, secrets disabled", "error", err)
		credentials = &unavailableCredentialStore{reason: err}
	}

	metrics := NewSupervisorMetrics(prometheus.DefaultRegisterer)

	return &app{
		logger:      appLogger,
		store:       store,
		credentials: credentials,
		manager:     NewConfigManager(store, credentials, guard, appLogger),
		supervisor:  NewBackendSupervisor(appLogger, metrics),
		metrics:     metrics,
	}, nil
}

// unavailableCredentialStore stands in when no OS backend exists.
// Reads behave as "nothing stored"; writes fail with the detection error.
type unavailableCredentialStore struct {
	reason error
}

var _ CredentialStore = (*unavailableCredentialStore)(nil)

func (u *unavailableCredentialStore) Store(_ context.Context, key, _ string) error {
	return fmt.Errorf("cannot store %s: %w", key, u.reason)
}

func (u *unavailableCredentialStore) Get(_ context.Context, key string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, key)
}

func (u *unavailableCredentialStore) Delete(_ context.Context, key string) error {
	return fmt.Errorf("cannot delete %s: %w", key, u.reason)
}

func (u *unavailableCredentialStore) Has(context.Context, string) bool {
	return false
}

func (u *unavailableCredentialStore) Migrate(_ context.Context, key, plaintext string) (bool, error) {
	if plaintext == "" {
		return false, nil
	}
	return false, fmt.Errorf("cannot migrate %s: %w", key, u.reason)
}

func (u *unavailableCredentialStore) Backend() string {
	return "none"
}
