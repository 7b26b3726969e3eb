// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/creack/pty"
)

// PTYService runs each session as a process attached to its own pty.
type PTYService struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*ptySession
}

type ptySession struct {
	id      string
	cmd     *exec.Cmd
	ptmx    *os.File
	handler Handler

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
}

// NewPTYService creates a pty-backed terminal service.
func NewPTYService(cfg Config) *PTYService {
	if cfg.Cols <= 0 {
		cfg.Cols = 120
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 30
	}
	return &PTYService{
		cfg:      cfg,
		sessions: make(map[string]*ptySession),
	}
}

func (s *PTYService) shell() string {
	if s.cfg.Shell != "" {
		return s.cfg.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

func (s *PTYService) command(opts OpenOptions) (*exec.Cmd, error) {
	if !opts.ForwardMode {
		return exec.Command(s.shell()), nil
	}
	if opts.ProgramPath != "" {
		return exec.Command(opts.ProgramPath), nil
	}
	if opts.Command == "" {
		return nil, fmt.Errorf("forward mode needs a program path or command")
	}
	if strings.Contains(opts.Command, " ") {
		return exec.Command("sh", "-c", opts.Command), nil
	}
	return exec.Command(opts.Command), nil
}

// Open starts a process in a new pty. h receives OnReady once the process
// is running, then its output and exit.
func (s *PTYService) Open(ctx context.Context, opts OpenOptions, h Handler) (Session, error) {
	if opts.SessionID == "" {
		return Session{}, fmt.Errorf("session id is required")
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[opts.SessionID]; exists {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionExists, opts.SessionID)
	}

	cmd, err := s.command(opts)
	if err != nil {
		return Session{}, err
	}
	cmd.Dir = opts.WorkingDirectory
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	if opts.RunAsUser != "" {
		if err := runAs(cmd, opts.RunAsUser); err != nil {
			return Session{}, fmt.Errorf("run as %s: %w", opts.RunAsUser, err)
		}
	}

	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = s.cfg.Cols
	}
	if rows <= 0 {
		rows = s.cfg.Rows
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return Session{}, fmt.Errorf("start pty: %w", err)
	}

	sess := &ptySession{
		id:      opts.SessionID,
		cmd:     cmd,
		ptmx:    ptmx,
		handler: h,
		done:    make(chan struct{}),
	}
	s.sessions[sess.id] = sess

	log.Printf("Terminal %s: started %s (PID %d)", sess.id, cmd.Path, cmd.Process.Pid)
	go s.run(sess)

	return Session{ID: sess.id, PID: cmd.Process.Pid}, nil
}

func (s *PTYService) run(sess *ptySession) {
	defer close(sess.done)

	sess.handler.OnReady()

	buf := make([]byte, 4096)
	for {
		n, err := sess.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			sess.handler.OnOutput(data)
		}
		if err != nil {
			// EOF or EIO once the process side of the pty closes.
			break
		}
	}

	waitErr := sess.cmd.Wait()
	sess.ptmx.Close()

	s.mu.Lock()
	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
	s.mu.Unlock()

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		log.Printf("Terminal %s: process exited", sess.id)
		sess.handler.OnExit(0)
	case errors.As(waitErr, &exitErr):
		log.Printf("Terminal %s: process exited with code %d", sess.id, exitErr.ExitCode())
		sess.handler.OnExit(exitErr.ExitCode())
	default:
		log.Printf("Terminal %s: wait failed: %v", sess.id, waitErr)
		sess.handler.OnError(waitErr)
	}
}

func (s *PTYService) get(id string) (*ptySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Write sends raw bytes to the session's input.
func (s *PTYService) Write(id string, data []byte) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if _, err := sess.ptmx.Write(data); err != nil {
		return fmt.Errorf("write to %s: %w", id, err)
	}
	return nil
}

// Resize changes the terminal size of a session.
func (s *PTYService) Resize(id string, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	return pty.Setsize(sess.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Close kills the session's process. The handler still receives OnExit.
func (s *PTYService) Close(id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil
	}
	sess.closed = true
	sess.mu.Unlock()

	if sess.cmd.Process != nil {
		if err := killTree(sess.cmd.Process); err != nil {
			log.Printf("Terminal %s: kill failed: %v", id, err)
		}
	}
	sess.ptmx.Close()
	return nil
}

// Sessions returns the ids of open sessions.
func (s *PTYService) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown closes every session and waits for their reader goroutines.
func (s *PTYService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*ptySession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		s.Close(sess.id)
	}
	for _, sess := range sessions {
		select {
		case <-sess.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
