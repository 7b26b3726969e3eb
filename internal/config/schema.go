// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the panel.
package config

import (
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Version   string          `json:"version"`
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Terminal  TerminalConfig  `json:"terminal"`
	Java      JavaConfig      `json:"java"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Boot      BootConfig      `json:"boot"`
	Events    EventsConfig    `json:"events"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	TLSCert      string `json:"tls_cert"`      // Path to TLS certificate file (enables HTTPS if both cert and key set)
	TLSKey       string `json:"tls_key"`       // Path to TLS private key file
	TailscaleTLS bool   `json:"tailscale_tls"` // Serve HTTPS with certificates from the local tailscaled
}

// StorageConfig configures where instance records are kept.
type StorageConfig struct {
	Driver     string `json:"driver"` // "file" or "sqlite"
	Path       string `json:"path"`
	FlushDelay string `json:"flush_delay"`
}

// TerminalConfig configures the pty sessions instances run in.
type TerminalConfig struct {
	Shell string `json:"shell"`
	Cols  int    `json:"cols"`
	Rows  int    `json:"rows"`
}

// JavaConfig configures the managed Java runtimes.
type JavaConfig struct {
	Root         string                  `json:"root"` // Directory scanned for <version>/bin/java
	Watch        *bool                   `json:"watch"`
	Debounce     string                  `json:"debounce"`
	Environments []JavaEnvironmentConfig `json:"environments"`
}

// JavaEnvironmentConfig declares a runtime by version and executable path.
type JavaEnvironmentConfig struct {
	Version string `json:"version"`
	Path    string `json:"path"`
}

// IsWatching returns whether the runtime root is watched for changes.
func (j *JavaConfig) IsWatching() bool {
	if j.Watch == nil {
		return true
	}
	return *j.Watch
}

// LifecycleConfig holds the delays and timeouts of the instance state machine.
type LifecycleConfig struct {
	ReadyTimeout  string `json:"ready_timeout"`
	SettleDelay   string `json:"settle_delay"`
	StopTimeout   string `json:"stop_timeout"`
	RestartPoll   string `json:"restart_poll"`
	RestartSettle string `json:"restart_settle"`
}

// BootConfig configures the auto-start sweep run when the panel starts.
type BootConfig struct {
	Enabled         *bool   `json:"enabled"`
	Gap             string  `json:"gap"`
	MemoryLimit     float64 `json:"memory_limit"`
	CPULimit        float64 `json:"cpu_limit"`
	CPUResume       float64 `json:"cpu_resume"`
	CPUWindow       string  `json:"cpu_window"`
	RecheckInterval string  `json:"recheck_interval"`
	MaxWait         string  `json:"max_wait"`
}

// IsEnabled returns whether auto-start instances are started at boot.
func (b *BootConfig) IsEnabled() bool {
	if b.Enabled == nil {
		return true
	}
	return *b.Enabled
}

// EventsConfig configures the event system.
type EventsConfig struct {
	History EventHistoryConfig `json:"history"`
}

// EventHistoryConfig configures event history retention.
type EventHistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// ParseDuration parses a duration string, returning defaultVal on error.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
