// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"strings"
)

type patternKind int

const (
	matchAll patternKind = iota
	matchExact
	matchPrefix // "instance.*"
	matchSuffix // "*.finished"
)

// Pattern is a compiled event type pattern. The zero value matches nothing.
type Pattern struct {
	kind  patternKind
	text  string
	valid bool
}

// Compile parses pattern. Supported forms are "*", an exact type such as
// "instance.created", a namespace wildcard such as "instance.*" and a
// suffix wildcard such as "*.finished". Any other "*" is taken literally.
func Compile(pattern string) (Pattern, error) {
	switch {
	case pattern == "":
		return Pattern{}, errors.New("empty pattern")
	case pattern == "*":
		return Pattern{kind: matchAll, valid: true}, nil
	case strings.HasSuffix(pattern, ".*"):
		return Pattern{kind: matchPrefix, text: strings.TrimSuffix(pattern, "*"), valid: true}, nil
	case strings.HasPrefix(pattern, "*."):
		return Pattern{kind: matchSuffix, text: strings.TrimPrefix(pattern, "*"), valid: true}, nil
	}
	return Pattern{kind: matchExact, text: pattern, valid: true}, nil
}

// Match reports whether eventType matches the pattern.
func (p Pattern) Match(eventType string) bool {
	if !p.valid || eventType == "" {
		return false
	}
	switch p.kind {
	case matchAll:
		return true
	case matchPrefix:
		return strings.HasPrefix(eventType, p.text)
	case matchSuffix:
		return strings.HasSuffix(eventType, p.text)
	}
	return eventType == p.text
}

// MatchPattern compiles pattern and matches eventType against it. An
// invalid pattern matches nothing.
func MatchPattern(eventType, pattern string) bool {
	p, err := Compile(pattern)
	return err == nil && p.Match(eventType)
}

// compileAll compiles patterns, skipping invalid ones.
func compileAll(patterns []string) []Pattern {
	out := make([]Pattern, 0, len(patterns))
	for _, pattern := range patterns {
		if p, err := Compile(pattern); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func matchAny(patterns []Pattern, eventType string) bool {
	for _, p := range patterns {
		if p.Match(eventType) {
			return true
		}
	}
	return false
}
