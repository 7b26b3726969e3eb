// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Instance states.
const (
	StatusStopped  = "stopped"
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusStopping = "stopping"
	StatusError    = "error"
)

// Error codes returned by the panel.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL_ERROR"
)

// InstanceConfig is the configuration of an instance, as sent on create
// and update.
type InstanceConfig struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	WorkingDirectory string `json:"working_directory"`
	StartCommand     string `json:"start_command,omitempty"`

	// StopCommand is one of "ctrl+c", "stop", "exit" or "quit".
	StopCommand string `json:"stop_command,omitempty"`
	AutoStart   bool   `json:"auto_start"`

	// Type is "generic", "minecraft-java" or "minecraft-bedrock".
	Type        string `json:"type,omitempty"`
	JavaVersion string `json:"java_version,omitempty"`

	// ForwardMode runs ProgramPath directly instead of typing the start
	// command into a shell.
	ForwardMode bool   `json:"forward_mode,omitempty"`
	ProgramPath string `json:"program_path,omitempty"`
	RunAsUser   string `json:"run_as_user,omitempty"`
	Cols        int    `json:"cols,omitempty"`
	Rows        int    `json:"rows,omitempty"`
}

// Instance is a configured game server and its runtime state.
type Instance struct {
	ID string `json:"id"`
	InstanceConfig

	CreatedAt   time.Time `json:"created_at"`
	LastStarted time.Time `json:"last_started,omitempty"`
	LastStopped time.Time `json:"last_stopped,omitempty"`

	// Status is one of the Status constants.
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	PID       int    `json:"pid,omitempty"`
}

// JavaEnvironment is a Java runtime known to the panel.
type JavaEnvironment struct {
	Version        string `json:"version"`
	Installed      bool   `json:"installed"`
	ExecutablePath string `json:"executable_path"`
	Source         string `json:"source"`
}

// Event is an entry in the panel's event history.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Instance  string                 `json:"instance,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}
