// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/wingedpig/gamepanel/internal/terminal"
)

// bridge is the terminal.Handler for one instance session. It turns the
// terminal service's callbacks into controller signals.
type bridge struct {
	c          *Controller
	instanceID string
	sessionID  string

	ready     chan struct{}
	readyOnce sync.Once

	// done is closed when the session exits or fails; err holds the failure.
	done     chan struct{}
	doneOnce sync.Once
	mu       sync.Mutex
	err      error

	closeOnce sync.Once
}

var _ terminal.Handler = (*bridge)(nil)

func newBridge(c *Controller, instanceID string) *bridge {
	return &bridge{
		c:          c,
		instanceID: instanceID,
		sessionID:  SessionID(instanceID),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (b *bridge) OnReady() {
	b.readyOnce.Do(func() { close(b.ready) })
}

func (b *bridge) OnOutput(data []byte) {
	b.c.relayOutput(b, data)
}

func (b *bridge) OnExit(code int) {
	b.finish(nil)
	b.c.handleExit(b, code)
}

func (b *bridge) OnError(err error) {
	if err == nil {
		err = fmt.Errorf("terminal session failed")
	}
	b.finish(err)
	b.c.handleSessionError(b, err)
}

func (b *bridge) finish(err error) {
	b.doneOnce.Do(func() {
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
		close(b.done)
	})
}

// exited reports whether the session has ended.
func (b *bridge) exited() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// failure describes why the session ended.
func (b *bridge) failure() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	return fmt.Errorf("process exited")
}

// close asks the terminal service to close the session. Only the first
// call reaches the service.
func (b *bridge) close() {
	b.closeOnce.Do(b.release)
}

// release closes the session unless it has already ended. Unlike close it
// always reaches the service, so a start that lost its claim can tear down
// a session opened after the instance was reset.
func (b *bridge) release() {
	if b.exited() {
		return
	}
	if err := b.c.term.Close(b.sessionID); err != nil && !errors.Is(err, terminal.ErrSessionNotFound) {
		log.Printf("Instance %s: close session %s: %v", b.instanceID, b.sessionID, err)
	}
}

func (b *bridge) write(data []byte) error {
	return b.c.term.Write(b.sessionID, data)
}
