// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config, applies default values and validates it.
// Relative storage and java paths are resolved against the config file's directory.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	resolvePaths(cfg, filepath.Dir(path))

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
// It looks for gamepanel.hjson first, then gamepanel.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"gamepanel.hjson",
		"gamepanel.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for gamepanel.hjson, gamepanel.json)")
}

// Default returns a configuration with every default applied, used when no
// config file exists.
func Default() *Config {
	cfg := &Config{Version: "1"}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for missing config fields.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 23333
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	// Storage defaults
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Path == "" {
		if cfg.Storage.Driver == "sqlite" {
			cfg.Storage.Path = "data/instances.db"
		} else {
			cfg.Storage.Path = "data/instances.json"
		}
	}
	if cfg.Storage.FlushDelay == "" {
		cfg.Storage.FlushDelay = "1s"
	}

	// Terminal defaults
	if cfg.Terminal.Cols == 0 {
		cfg.Terminal.Cols = 120
	}
	if cfg.Terminal.Rows == 0 {
		cfg.Terminal.Rows = 30
	}

	// Java defaults
	if cfg.Java.Root == "" {
		cfg.Java.Root = "data/java"
	}
	if cfg.Java.Debounce == "" {
		cfg.Java.Debounce = "500ms"
	}

	// Lifecycle defaults
	if cfg.Lifecycle.ReadyTimeout == "" {
		cfg.Lifecycle.ReadyTimeout = "5s"
	}
	if cfg.Lifecycle.SettleDelay == "" {
		cfg.Lifecycle.SettleDelay = "1s"
	}
	if cfg.Lifecycle.StopTimeout == "" {
		cfg.Lifecycle.StopTimeout = "10s"
	}
	if cfg.Lifecycle.RestartPoll == "" {
		cfg.Lifecycle.RestartPoll = "500ms"
	}
	if cfg.Lifecycle.RestartSettle == "" {
		cfg.Lifecycle.RestartSettle = "2s"
	}

	// Boot sweep defaults
	if cfg.Boot.Gap == "" {
		cfg.Boot.Gap = "2s"
	}
	if cfg.Boot.MemoryLimit == 0 {
		cfg.Boot.MemoryLimit = 90
	}
	if cfg.Boot.CPULimit == 0 {
		cfg.Boot.CPULimit = 90
	}
	if cfg.Boot.CPUResume == 0 {
		cfg.Boot.CPUResume = 85
	}
	if cfg.Boot.CPUWindow == "" {
		cfg.Boot.CPUWindow = "100ms"
	}
	if cfg.Boot.RecheckInterval == "" {
		cfg.Boot.RecheckInterval = "5s"
	}
	if cfg.Boot.MaxWait == "" {
		cfg.Boot.MaxWait = "5m"
	}

	// Events defaults
	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}
}

func resolvePaths(cfg *Config, baseDir string) {
	if baseDir == "" {
		return
	}
	if !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(baseDir, cfg.Storage.Path)
	}
	if !filepath.IsAbs(cfg.Java.Root) {
		cfg.Java.Root = filepath.Join(baseDir, cfg.Java.Root)
	}
}
