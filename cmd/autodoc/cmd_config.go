// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	appconfig "github.com/gowerlin/AutoDoc/cmd/autodoc/config"
)

// runConfigShow prints the effective config. Secret values are never
// printed; a footer reports which credentials are configured.
func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	cfg, err := a.manager.Load(cmd.Context())
	if err != nil {
		return err
	}

	// The yaml tags already exclude secret fields.
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	fmt.Println("credentials:")
	for _, key := range KnownCredentials {
		state := "(not set)"
		if a.credentials.Has(cmd.Context(), key) {
			state = "(stored in " + a.credentials.Backend() + ")"
		}
		fmt.Printf("  %s: %s\n", key, state)
	}
	return nil
}

// runConfigSave re-persists the effective configuration: validate,
// push secrets to the keychain, write the file atomically. Useful after
// hand-editing the file, since it normalizes formatting and creates the
// snapshot directory.
func runConfigSave(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	cfg, err := a.manager.Load(cmd.Context())
	if err != nil {
		return err
	}
	if err := a.manager.Save(cmd.Context(), cfg); err != nil {
		return err
	}
	fmt.Println("configuration validated and saved")
	return nil
}

// runConfigValidate reports every violation, one per line.
func runConfigValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	cfg, err := a.manager.Load(cmd.Context())
	if err != nil {
		return err
	}

	messages, err := a.manager.Validate(cfg)
	if err != nil {
		var vErr *ConfigValidationError
		if errors.As(err, &vErr) {
			for _, v := range vErr.Violations {
				fmt.Fprintf(os.Stderr, "  - %s\n", v)
			}
			return fmt.Errorf("%d problem(s) found", len(vErr.Violations))
		}
		return err
	}
	for _, m := range messages {
		fmt.Println(m)
	}
	return nil
}

// runConfigDefaults prints the defaults without touching any file.
func runConfigDefaults(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(appconfig.DefaultConfig())
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

// runConfigReset overwrites the config file with defaults after a
// confirmation. Credentials in the keychain are untouched.
func runConfigReset(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if !assumeYes {
		fmt.Printf("This overwrites %s with defaults. Continue? [y/N] ", a.store.Path())
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			fmt.Println("aborted")
			return nil
		}
	}

	if err := a.manager.Reset(); err != nil {
		return err
	}
	fmt.Printf("configuration reset: %s\n", a.store.Path())
	return nil
}

// runConfigPath prints where the config file lives.
func runConfigPath(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	fmt.Println(a.store.Path())
	return nil
}

// runConfigMigrate moves plaintext secrets left behind by old versions
// into the OS keychain and rewrites the file without them.
func runConfigMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	// Read the raw file, not Load: legacy files carried secrets in
	// fields current tags no longer parse into the struct.
	cfg, legacy, err := loadLegacySecrets(a.store)
	if err != nil {
		return err
	}
	cfg.Auth.ClaudeAPIKey = legacy.apiKey
	cfg.Auth.TargetPassword = legacy.targetPassword

	migrated, err := a.manager.Migrate(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if migrated == 0 {
		fmt.Println("nothing to migrate")
		return nil
	}
	fmt.Printf("migrated %d credential(s) to %s\n", migrated, a.credentials.Backend())
	return nil
}

// legacySecrets holds plaintext values found in an old config file.
type legacySecrets struct {
	apiKey         string
	targetPassword string
}

// loadLegacySecrets reads the config file once for the struct and once
// for the raw fields that used to carry secrets.
func loadLegacySecrets(store *appconfig.Store) (appconfig.AppConfig, legacySecrets, error) {
	cfg, err := store.Load()
	if err != nil {
		return appconfig.AppConfig{}, legacySecrets{}, err
	}

	data, err := os.ReadFile(store.Path())
	if os.IsNotExist(err) {
		return cfg, legacySecrets{}, nil
	}
	if err != nil {
		return appconfig.AppConfig{}, legacySecrets{}, err
	}

	var raw struct {
		Auth struct {
			ClaudeAPIKey   string `yaml:"claude_api_key"`
			TargetPassword string `yaml:"target_password"`
		} `yaml:"auth"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return appconfig.AppConfig{}, legacySecrets{}, err
	}

	return cfg, legacySecrets{
		apiKey:         raw.Auth.ClaudeAPIKey,
		targetPassword: raw.Auth.TargetPassword,
	}, nil
}
