// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"path/filepath"

	"github.com/gowerlin/AutoDoc/pkg/validation"
)

type AppConfig struct {
	// Basic: application identity and startup behavior
	Basic BasicSettings `yaml:"basic"`

	// Auth: API and target-site credentials
	Auth AuthSettings `yaml:"auth"`

	// Exploration: crawl strategy and limits
	Exploration ExplorationSettings `yaml:"exploration"`

	// Storage: where snapshots, screenshots, and the database live
	Storage StorageSettings `yaml:"storage"`

	// Advanced: tuning knobs most users never touch
	Advanced AdvancedSettings `yaml:"advanced"`
}

type BasicSettings struct {
	AppName        string `yaml:"app_name"`         // e.g. AutoDoc Agent
	Language       string `yaml:"language"`         // e.g. zh-TW
	AutoStart      bool   `yaml:"auto_start"`       // launch on login
	MinimizeToTray bool   `yaml:"minimize_to_tray"` //
	CheckUpdates   bool   `yaml:"check_updates"`    //
}

type AuthSettings struct {
	// ClaudeAPIKey is never written to disk. It lives in the OS
	// credential store and is overlaid at load time.
	ClaudeAPIKey string `yaml:"-"`

	ClaudeModel           string `yaml:"claude_model"`
	GoogleCredentialsPath string `yaml:"google_credentials_path,omitempty"`
	GoogleTokenPath       string `yaml:"google_token_path,omitempty"`
	ChromeMCPURL          string `yaml:"chrome_mcp_url"`
	ChromeMCPPort         int    `yaml:"chrome_mcp_port"`
	TargetAuthType        string `yaml:"target_auth_type"` // "none", "basic", "form"
	TargetUsername        string `yaml:"target_username,omitempty"`

	// TargetPassword follows the same keychain-only rule as the API key.
	TargetPassword string `yaml:"-"`
}

type ExplorationSettings struct {
	Strategy           string `yaml:"strategy"` // "importance", "breadth", "depth"
	MaxDepth           int    `yaml:"max_depth" validate:"gte=1,lte=10"`
	MaxPages           int    `yaml:"max_pages" validate:"gte=10,lte=1000"`
	ScreenshotQuality  string `yaml:"screenshot_quality"` // "low", "medium", "high"
	NetworkTimeout     int    `yaml:"network_timeout"`    // seconds
	WaitForNetworkIdle bool   `yaml:"wait_for_network_idle"`
}

type StorageSettings struct {
	SnapshotStoragePath   string `yaml:"snapshot_storage_path"`
	ScreenshotStoragePath string `yaml:"screenshot_storage_path"`
	DatabasePath          string `yaml:"database_path"`
	EnableCompression     bool   `yaml:"enable_compression"`
	AutoCleanup           bool   `yaml:"auto_cleanup"`
	RetentionDays         int    `yaml:"retention_days"`
}

type AdvancedSettings struct {
	LogLevel        string `yaml:"log_level"` // "debug", "info", "warn", "error"
	EnableTelemetry bool   `yaml:"enable_telemetry"`
	ConcurrentTabs  int    `yaml:"concurrent_tabs"`
	APIRateLimit    int    `yaml:"api_rate_limit"` // requests per minute
	ProxyURL        string `yaml:"proxy_url,omitempty"`
	CustomUserAgent string `yaml:"custom_user_agent,omitempty"`
}

// DefaultConfig returns the configuration a fresh install runs with.
// Storage paths are rooted under the user's Documents folder so they
// pass path validation without extra setup.
func DefaultConfig() AppConfig {
	docsDir := filepath.Join(validation.DocumentsDir(), "AutoDoc")

	return AppConfig{
		Basic: BasicSettings{
			AppName:        "AutoDoc Agent",
			Language:       "zh-TW",
			AutoStart:      false,
			MinimizeToTray: true,
			CheckUpdates:   true,
		},
		Auth: AuthSettings{
			ClaudeAPIKey:   "",
			ClaudeModel:    "claude-sonnet-4-20250514",
			ChromeMCPURL:   "http://localhost",
			ChromeMCPPort:  3001,
			TargetAuthType: "none",
		},
		Exploration: ExplorationSettings{
			Strategy:           "importance",
			MaxDepth:           5,
			MaxPages:           100,
			ScreenshotQuality:  "medium",
			NetworkTimeout:     30,
			WaitForNetworkIdle: true,
		},
		Storage: StorageSettings{
			SnapshotStoragePath:   filepath.Join(docsDir, "snapshots"),
			ScreenshotStoragePath: filepath.Join(docsDir, "screenshots"),
			DatabasePath:          filepath.Join(docsDir, "autodoc.db"),
			EnableCompression:     true,
			AutoCleanup:           false,
			RetentionDays:         0,
		},
		Advanced: AdvancedSettings{
			LogLevel:        "info",
			EnableTelemetry: false,
			ConcurrentTabs:  3,
			APIRateLimit:    20,
		},
	}
}
