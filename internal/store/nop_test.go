// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"

	"github.com/wingedpig/gamepanel/internal/terminal"
)

type nopTerminal struct{}

func (nopTerminal) Open(context.Context, terminal.OpenOptions, terminal.Handler) (terminal.Session, error) {
	return terminal.Session{}, errors.New("not supported")
}
func (nopTerminal) Write(string, []byte) error { return nil }
func (nopTerminal) Resize(string, int, int) error { return nil }
func (nopTerminal) Close(string) error { return nil }
