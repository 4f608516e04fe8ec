// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fullConfigYAML is a complete hand-written config file, the shape a
// user would edit.
func fullConfigYAML() string {
	return `basic:
  app_name: "AutoDoc Agent"
  language: "en-US"
  auto_start: true
  minimize_to_tray: false
  check_updates: false

auth:
  claude_model: "claude-sonnet-4-20250514"
  chrome_mcp_url: "http://localhost"
  chrome_mcp_port: 3001
  target_auth_type: "basic"
  target_username: "docs-bot"

exploration:
  strategy: "breadth"
  max_depth: 3
  max_pages: 50
  screenshot_quality: "high"
  network_timeout: 60
  wait_for_network_idle: false

storage:
  snapshot_storage_path: "/home/user/Documents/AutoDoc/snapshots"
  screenshot_storage_path: "/home/user/Documents/AutoDoc/screenshots"
  database_path: "/home/user/Documents/AutoDoc/autodoc.db"
  enable_compression: false
  auto_cleanup: true
  retention_days: 30

advanced:
  log_level: "debug"
  enable_telemetry: false
  concurrent_tabs: 5
  api_rate_limit: 10
  proxy_url: "http://proxy.local:8080"
`
}

func TestAppConfig_UnmarshalFullFile(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, yaml.Unmarshal([]byte(fullConfigYAML()), &cfg))

	assert.Equal(t, "AutoDoc Agent", cfg.Basic.AppName)
	assert.Equal(t, "en-US", cfg.Basic.Language)
	assert.True(t, cfg.Basic.AutoStart)
	assert.False(t, cfg.Basic.MinimizeToTray)

	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Auth.ClaudeModel)
	assert.Equal(t, 3001, cfg.Auth.ChromeMCPPort)
	assert.Equal(t, "basic", cfg.Auth.TargetAuthType)
	assert.Equal(t, "docs-bot", cfg.Auth.TargetUsername)

	assert.Equal(t, "breadth", cfg.Exploration.Strategy)
	assert.Equal(t, 3, cfg.Exploration.MaxDepth)
	assert.Equal(t, 50, cfg.Exploration.MaxPages)
	assert.Equal(t, 60, cfg.Exploration.NetworkTimeout)

	assert.Equal(t, "/home/user/Documents/AutoDoc/autodoc.db", cfg.Storage.DatabasePath)
	assert.True(t, cfg.Storage.AutoCleanup)
	assert.Equal(t, 30, cfg.Storage.RetentionDays)

	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, 5, cfg.Advanced.ConcurrentTabs)
	assert.Equal(t, "http://proxy.local:8080", cfg.Advanced.ProxyURL)
}

func TestAppConfig_SecretsUnmarshalIgnored(t *testing.T) {
	// A legacy file may still carry secret fields; the struct must not
	// pick them up.
	legacy := `auth:
  claude_api_key: "sk-ant-plaintext-leak"
  target_password: "hunter2"
  claude_model: "claude-sonnet-4-20250514"
`
	var cfg AppConfig
	require.NoError(t, yaml.Unmarshal([]byte(legacy), &cfg))

	assert.Empty(t, cfg.Auth.ClaudeAPIKey, "claude_api_key must not unmarshal into the struct")
	assert.Empty(t, cfg.Auth.TargetPassword, "target_password must not unmarshal into the struct")
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Auth.ClaudeModel)
}

func TestAppConfig_OmitEmptyOptionalFields(t *testing.T) {
	data, err := yaml.Marshal(DefaultConfig())
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "proxy_url", "unset optional fields should be omitted")
	assert.NotContains(t, out, "google_credentials_path")
	assert.NotContains(t, out, "target_username")
}
