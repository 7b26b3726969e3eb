// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_ValidConfig(t *testing.T) {
	configContent := `{
		version: "1"
		server: {
			port: 8080
			host: "0.0.0.0"
		}
		storage: {
			driver: "sqlite"
			path: "/var/lib/panel/instances.db"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/panel/instances.db", cfg.Storage.Path)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	// Test HJSON-specific features: comments, unquoted keys, trailing commas
	configContent := `{
		// This is a comment
		version: "1"

		# Hash comment
		terminal: {
			shell: /bin/bash
			cols: 100,
			rows: 40,
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "/bin/bash", cfg.Terminal.Shell)
	assert.Equal(t, 100, cfg.Terminal.Cols)
	assert.Equal(t, 40, cfg.Terminal.Rows)
}

func TestLoader_Load_AllSections(t *testing.T) {
	configContent := `{
		version: "1"
		server: {
			port: 9000
			tailscale_tls: true
		}
		storage: {
			driver: file
			path: instances.json
			flush_delay: 250ms
		}
		java: {
			root: runtimes
			watch: false
			environments: [
				{ version: "17", path: "/opt/jdk17/bin/java" }
				{ version: "21", path: "/opt/jdk21/bin/java" }
			]
		}
		lifecycle: {
			ready_timeout: 3s
			settle_delay: 500ms
			stop_timeout: 20s
			restart_poll: 250ms
			restart_settle: 1s
		}
		boot: {
			enabled: false
			gap: 5s
			memory_limit: 80
			cpu_limit: 75
			cpu_resume: 70
			cpu_window: 200ms
			recheck_interval: 10s
			max_wait: 1m
		}
		events: {
			history: {
				max_events: 500
				max_age: 30m
			}
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.TailscaleTLS)

	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "250ms", cfg.Storage.FlushDelay)

	assert.Equal(t, "runtimes", cfg.Java.Root)
	assert.False(t, cfg.Java.IsWatching())
	require.Len(t, cfg.Java.Environments, 2)
	assert.Equal(t, "21", cfg.Java.Environments[1].Version)
	assert.Equal(t, "/opt/jdk21/bin/java", cfg.Java.Environments[1].Path)

	assert.Equal(t, "3s", cfg.Lifecycle.ReadyTimeout)
	assert.Equal(t, "500ms", cfg.Lifecycle.SettleDelay)
	assert.Equal(t, "20s", cfg.Lifecycle.StopTimeout)
	assert.Equal(t, "250ms", cfg.Lifecycle.RestartPoll)
	assert.Equal(t, "1s", cfg.Lifecycle.RestartSettle)

	assert.False(t, cfg.Boot.IsEnabled())
	assert.Equal(t, "5s", cfg.Boot.Gap)
	assert.Equal(t, 80.0, cfg.Boot.MemoryLimit)
	assert.Equal(t, 75.0, cfg.Boot.CPULimit)
	assert.Equal(t, 70.0, cfg.Boot.CPUResume)
	assert.Equal(t, "200ms", cfg.Boot.CPUWindow)
	assert.Equal(t, "10s", cfg.Boot.RecheckInterval)
	assert.Equal(t, "1m", cfg.Boot.MaxWait)

	assert.Equal(t, 500, cfg.Events.History.MaxEvents)
	assert.Equal(t, "30m", cfg.Events.History.MaxAge)
}

func TestLoader_Load_Defaults(t *testing.T) {
	configContent := `{
		version: "1"
	}`

	path := writeTestConfig(t, configContent)
	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	// Check defaults are applied
	assert.Equal(t, 23333, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data/instances.json"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data/java"), cfg.Java.Root)
	assert.Equal(t, 120, cfg.Terminal.Cols)
	assert.Equal(t, 30, cfg.Terminal.Rows)
	assert.Equal(t, "5s", cfg.Lifecycle.ReadyTimeout)
	assert.Equal(t, "1s", cfg.Lifecycle.SettleDelay)
	assert.Equal(t, "10s", cfg.Lifecycle.StopTimeout)
	assert.Equal(t, "2s", cfg.Boot.Gap)
	assert.Equal(t, 90.0, cfg.Boot.MemoryLimit)
	assert.Equal(t, 90.0, cfg.Boot.CPULimit)
	assert.Equal(t, 85.0, cfg.Boot.CPUResume)
	assert.True(t, cfg.Boot.IsEnabled())
	assert.True(t, cfg.Java.IsWatching())
}

func TestLoader_Load_SQLiteDefaultPath(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), writeTestConfig(t, `{storage: {driver: sqlite}}`))
	require.NoError(t, err)
	assert.Equal(t, "instances.db", filepath.Base(cfg.Storage.Path))
}

func TestLoader_Load_AbsolutePathsKept(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), writeTestConfig(t, `{
		storage: { path: "/srv/panel/instances.json" }
		java: { root: "/srv/java" }
	}`))
	require.NoError(t, err)
	assert.Equal(t, "/srv/panel/instances.json", cfg.Storage.Path)
	assert.Equal(t, "/srv/java", cfg.Java.Root)
}

func TestLoader_LoadWithDefaults_Invalid(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadWithDefaults(context.Background(), writeTestConfig(t, `{storage: {driver: "postgres"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/path/config.hjson")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	configContent := `{
		version: "1"
		invalid json here {{{
	}`

	loader := NewLoader()
	path := writeTestConfig(t, configContent)
	_, err := loader.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer os.Chdir(originalWd)
	os.Chdir(dir)

	loader := NewLoader()

	// No config file exists
	_, err := loader.FindConfig()
	assert.Error(t, err)

	// JSON is found when it is the only file
	require.NoError(t, os.WriteFile("gamepanel.json", []byte(`{}`), 0644))
	path, err := loader.FindConfig()
	require.NoError(t, err)
	assert.Equal(t, "gamepanel.json", filepath.Base(path))

	// HJSON takes precedence
	require.NoError(t, os.WriteFile("gamepanel.hjson", []byte(`{}`), 0644))
	path, err = loader.FindConfig()
	require.NoError(t, err)
	assert.Equal(t, "gamepanel.hjson", filepath.Base(path))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 23333, cfg.Server.Port)
	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestBootConfig_IsEnabled_Defaults(t *testing.T) {
	var b BootConfig
	assert.True(t, b.IsEnabled())
	b.Enabled = boolPtr(false)
	assert.False(t, b.IsEnabled())
}

func TestJavaConfig_IsWatching_Defaults(t *testing.T) {
	var j JavaConfig
	assert.True(t, j.IsWatching())
	j.Watch = boolPtr(false)
	assert.False(t, j.IsWatching())
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		def      string
		expected string
	}{
		{"500ms", "100ms", "500ms"},
		{"1m", "100ms", "1m"},
		{"", "100ms", "100ms"},
		{"invalid", "100ms", "100ms"},
		{"1h30m", "100ms", "1h30m"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			defDur := mustParseDuration(tt.def)
			result := ParseDuration(tt.input, defDur)
			assert.Equal(t, mustParseDuration(tt.expected), result)
		})
	}
}

// Helper functions

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	path := writeTestConfig(t, content)
	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gamepanel.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func boolPtr(b bool) *bool {
	return &b
}

func mustParseDuration(s string) time.Duration {
	dur, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return dur
}
