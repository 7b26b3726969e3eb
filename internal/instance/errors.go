// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation: bad configuration, missing directory or launch file.
	KindValidation
	// KindConcurrency: the operation is not allowed in the current status.
	KindConcurrency
	// KindResource: the terminal session failed or timed out.
	KindResource
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConcurrency:
		return "concurrency"
	case KindResource:
		return "resource"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is returned by every Controller operation.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "start"
	ID   string // instance id, if known
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if e.ID != "" {
		s += " " + e.ID
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func newError(kind Kind, op, id, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, op, id string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Msg: fmt.Sprintf(format, args...), Err: err}
}

func notFound(op, id string) *Error {
	return newError(KindNotFound, op, id, "instance not found")
}
