// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package terminal runs processes inside pseudo-terminals and streams their
// output to a per-session handler.
package terminal

import (
	"context"
	"errors"
)

var (
	// ErrSessionExists is returned by Open when the session id is in use.
	ErrSessionExists = errors.New("terminal session already exists")
	// ErrSessionNotFound is returned for operations on unknown sessions.
	ErrSessionNotFound = errors.New("terminal session not found")
)

// Handler receives the events of one session. Callbacks run on the
// session's reader goroutine.
type Handler interface {
	// OnReady is called once, after the process has started.
	OnReady()
	// OnOutput is called for every chunk read from the terminal. The slice
	// is owned by the handler.
	OnOutput(data []byte)
	// OnExit is called once when the process exits.
	OnExit(code int)
	// OnError is called instead of OnExit when the session fails.
	OnError(err error)
}

// OpenOptions describes a session to open.
type OpenOptions struct {
	SessionID        string
	Name             string
	Cols             int
	Rows             int
	WorkingDirectory string

	// ForwardMode runs ProgramPath (or Command when ProgramPath is empty)
	// directly instead of an interactive shell.
	ForwardMode bool
	ProgramPath string
	Command     string

	RunAsUser string
}

// Session identifies an opened session.
type Session struct {
	ID  string
	PID int
}

// Service is a terminal backend.
type Service interface {
	Open(ctx context.Context, opts OpenOptions, h Handler) (Session, error)
	Write(id string, data []byte) error
	Resize(id string, cols, rows int) error
	Close(id string) error
}

// Config configures a PTYService.
type Config struct {
	Shell string // default shell; falls back to $SHELL then /bin/sh
	Cols  int
	Rows  int
}
