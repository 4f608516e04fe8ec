// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// --- Global Command Variables ---
var (
	backendPort   int
	metricsAddr   string
	watchConfig   bool
	jsonLogs      bool
	quietFlag     bool
	logDirFlag    string
	assumeYes     bool

	rootCmd = &cobra.Command{
		Use:   "autodoc",
		Short: "Control plane for the AutoDoc documentation agent",
		Long: `AutoDoc explores a target site and turns it into documentation.
This CLI manages the agent's local pieces: the Node.js backend sidecar,
the settings file, and the credentials in the OS keychain.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogger()
		},
	}

	// --- Configuration ---
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the agent configuration",
	}
	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets masked)",
		RunE:  runConfigShow,
	}
	configSaveCmd = &cobra.Command{
		Use:   "save",
		Short: "Validate and re-persist the configuration file",
		RunE:  runConfigSave,
	}
	configValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and report every problem found",
		RunE:  runConfigValidate,
	}
	configDefaultsCmd = &cobra.Command{
		Use:   "defaults",
		Short: "Print the out-of-the-box configuration",
		RunE:  runConfigDefaults,
	}
	configResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Overwrite the configuration file with defaults",
		RunE:  runConfigReset,
	}
	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		RunE:  runConfigPath,
	}
	configMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Move plaintext secrets from the config file into the OS keychain",
		RunE:  runConfigMigrate,
	}

	// --- Credentials ---
	credentialCmd = &cobra.Command{
		Use:     "credential",
		Aliases: []string{"cred"},
		Short:   "Manage credentials in the OS keychain",
	}
	credentialSetCmd = &cobra.Command{
		Use:   "set <key>",
		Short: "Store a credential (value read from stdin, never from argv)",
		Args:  cobra.ExactArgs(1),
		RunE:  runCredentialSet,
	}
	credentialGetCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "Print a credential value to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  runCredentialGet,
	}
	credentialDeleteCmd = &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a credential from the keychain",
		Args:  cobra.ExactArgs(1),
		RunE:  runCredentialDelete,
	}
	credentialStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show which known credentials are configured (values are never printed)",
		RunE:  runCredentialStatus,
	}

	// --- Backend Sidecar ---
	backendCmd = &cobra.Command{
		Use:   "backend",
		Short: "Manage the Node.js backend sidecar",
	}
	backendStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the backend and supervise it in the foreground",
		Long: `Starts the Node.js backend and supervises it until interrupted.
Ctrl-C stops the backend and exits. With --watch, a config file change
restarts the backend.`,
		RunE: runBackendStart,
	}
	backendStopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the supervised backend session",
		RunE:  runBackendStop,
	}
	backendRestartCmd = &cobra.Command{
		Use:   "restart",
		Short: "Ask the supervising session to restart its backend",
		RunE:  runBackendRestart,
	}
	backendStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Probe the backend and report its health",
		RunE:  runBackendStatus,
	}
	backendHealthCmd = &cobra.Command{
		Use:   "health",
		Short: "Probe the backend health endpoint (exit code 0 when healthy)",
		RunE:  runBackendHealth,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the autodoc version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("autodoc %s\n", Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress log output on stderr")
	rootCmd.PersistentFlags().StringVar(&logDirFlag, "log-dir", "", "Also write logs to this directory")

	configResetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")

	backendStartCmd.Flags().IntVarP(&backendPort, "port", "p", DefaultBackendPort, "Port to start the backend on")
	backendStartCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	backendStartCmd.Flags().BoolVar(&watchConfig, "watch", false, "Restart the backend when the config file changes")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configDefaultsCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configMigrateCmd)

	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialSetCmd)
	credentialCmd.AddCommand(credentialGetCmd)
	credentialCmd.AddCommand(credentialDeleteCmd)
	credentialCmd.AddCommand(credentialStatusCmd)

	rootCmd.AddCommand(backendCmd)
	backendCmd.AddCommand(backendStartCmd)
	backendCmd.AddCommand(backendStopCmd)
	backendCmd.AddCommand(backendRestartCmd)
	backendCmd.AddCommand(backendStatusCmd)
	backendCmd.AddCommand(backendHealthCmd)

	rootCmd.AddCommand(versionCmd)
}
