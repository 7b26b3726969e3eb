// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/gamepanel/internal/config"
)

// The generated file must load cleanly with the real loader.
func TestConfigTemplate_Loads(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, configTemplate.Execute(&buf, initOptions{Host: "0.0.0.0", Port: 8080, Driver: "sqlite"}))

	path := filepath.Join(t.TempDir(), configFile)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	cfg, err := config.NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data/instances.db"), cfg.Storage.Path)
	assert.True(t, cfg.Java.IsWatching())
	assert.True(t, cfg.Boot.IsEnabled())
	assert.Equal(t, 85.0, cfg.Boot.CPUResume)
}
