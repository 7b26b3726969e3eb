// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package instance supervises game-server processes: it resolves launch
// commands, runs each instance in a terminal session and tracks it through
// the stopped/starting/running/stopping/error state machine.
package instance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the runtime state of an instance. It is never persisted.
type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler to output the string representation.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ParseStatus returns the status named by s.
func ParseStatus(s string) (Status, error) {
	for st := StatusStopped; st <= StatusError; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StatusStopped, fmt.Errorf("unknown status %q", s)
}

// UnmarshalJSON implements json.Unmarshaler for API clients.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	st, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Type selects how the start command is resolved.
type Type string

const (
	TypeGeneric          Type = "generic"
	TypeMinecraftJava    Type = "minecraft-java"
	TypeMinecraftBedrock Type = "minecraft-bedrock"
)

// Valid reports whether t is a known instance type.
func (t Type) Valid() bool {
	switch t {
	case TypeGeneric, TypeMinecraftJava, TypeMinecraftBedrock:
		return true
	}
	return false
}

// StopCommand is what gets sent to the session to ask the process to exit.
type StopCommand string

const (
	StopCtrlC StopCommand = "ctrl+c"
	StopStop  StopCommand = "stop"
	StopExit  StopCommand = "exit"
	StopQuit  StopCommand = "quit"
)

// Valid reports whether c is a known stop command.
func (c StopCommand) Valid() bool {
	switch c {
	case StopCtrlC, StopStop, StopExit, StopQuit:
		return true
	}
	return false
}

// Payload returns the bytes written to the session for this stop command.
func (c StopCommand) Payload() []byte {
	if c == StopCtrlC || c == "" {
		return []byte{0x03}
	}
	return []byte(string(c) + lineTerminator)
}

// lineTerminator ends every line injected into a session.
const lineTerminator = "\r"

// Record is the persisted configuration of an instance.
type Record struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	WorkingDirectory string      `json:"working_directory"`
	StartCommand     string      `json:"start_command"`
	StopCommand      StopCommand `json:"stop_command"`
	AutoStart        bool        `json:"auto_start"`
	Type             Type        `json:"type"`
	JavaVersion      string      `json:"java_version,omitempty"`

	// ForwardMode runs the program directly instead of typing the start
	// command into a shell.
	ForwardMode bool   `json:"forward_mode,omitempty"`
	ProgramPath string `json:"program_path,omitempty"`
	RunAsUser   string `json:"run_as_user,omitempty"`
	Cols        int    `json:"cols,omitempty"`
	Rows        int    `json:"rows,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastStarted time.Time `json:"last_started,omitempty"`
	LastStopped time.Time `json:"last_stopped,omitempty"`
}

// Instance is a record together with its runtime state.
type Instance struct {
	Record
	Status    Status `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	PID       int    `json:"pid,omitempty"`
}

// Observer receives instance lifecycle notifications. Methods are called
// synchronously from the goroutine that caused the change and must not block.
type Observer interface {
	InstanceCreated(inst Instance)
	InstanceUpdated(inst Instance)
	InstanceDeleted(id string)
	StatusChanged(id string, status Status)
	Output(id string, data []byte)
}

// Store persists instance records.
type Store interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// Gate admits or refuses the next start of the boot sweep.
type Gate interface {
	Admit(ctx context.Context) error
}

// Manager is the interface the HTTP layer and schedulers drive instances through.
type Manager interface {
	Create(ctx context.Context, rec Record) (Instance, error)
	Update(ctx context.Context, id string, rec Record) (Instance, error)
	Delete(ctx context.Context, id string) error
	Get(id string) (Instance, error)
	List() []Instance

	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	CloseTerminal(ctx context.Context, id string) error
	SendInput(ctx context.Context, id string, data []byte) error
	Resize(ctx context.Context, id string, cols, rows int) error

	Subscribe(o Observer) func()
}

// Timings holds the delays and timeouts of the state machine.
type Timings struct {
	ReadyTimeout  time.Duration // wait for the session to report ready
	SettleDelay   time.Duration // pause between ready and command injection
	StopTimeout   time.Duration // watchdog before a stopping session is force-closed
	RestartPoll   time.Duration
	RestartSettle time.Duration
}

// DefaultTimings returns the production timings.
func DefaultTimings() Timings {
	return Timings{
		ReadyTimeout:  5 * time.Second,
		SettleDelay:   time.Second,
		StopTimeout:   10 * time.Second,
		RestartPoll:   500 * time.Millisecond,
		RestartSettle: 2 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.ReadyTimeout <= 0 {
		t.ReadyTimeout = d.ReadyTimeout
	}
	if t.SettleDelay < 0 {
		t.SettleDelay = 0
	}
	if t.StopTimeout <= 0 {
		t.StopTimeout = d.StopTimeout
	}
	if t.RestartPoll <= 0 {
		t.RestartPoll = d.RestartPoll
	}
	if t.RestartSettle < 0 {
		t.RestartSettle = 0
	}
	return t
}

// SessionID returns the terminal session id used for an instance.
func SessionID(id string) string {
	return "instance-" + id
}
