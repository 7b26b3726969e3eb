// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package version implements date-based API versioning.
//
// Clients pin a version with the Gamepanel-Version header. A pinned date
// is served by the newest version released on or before it. Requests
// without the header get LatestVersion, and every response echoes the
// version that served it.
package version

import (
	"context"
	"fmt"
	"time"
)

const (
	// Version20261001 is the initial API version.
	Version20261001 = "2026-10-01"
)

// Supported lists released versions, oldest first.
var Supported = []string{Version20261001}

// Resolve maps a requested date to the version that serves it. Dates
// before the first release are rejected.
func Resolve(requested string) (string, error) {
	if requested == "" {
		return LatestVersion, nil
	}
	if _, err := time.Parse(time.DateOnly, requested); err != nil {
		return "", fmt.Errorf("invalid API version %q: want YYYY-MM-DD", requested)
	}

	// ISO dates compare correctly as strings.
	served := ""
	for _, v := range Supported {
		if v <= requested {
			served = v
		}
	}
	if served == "" {
		return "", fmt.Errorf("API version %s predates the first release %s", requested, Supported[0])
	}
	return served, nil
}

// LatestVersion is the current default API version.
var LatestVersion = Version20261001

// Header is the HTTP header used to specify the API version.
const Header = "Gamepanel-Version"

type contextKey string

const versionKey contextKey = "api-version"

// FromContext returns the API version from the context.
// Returns LatestVersion if not set.
func FromContext(ctx context.Context) string {
	v, ok := ctx.Value(versionKey).(string)
	if !ok || v == "" {
		return LatestVersion
	}
	return v
}

// WithContext returns a new context with the API version set.
func WithContext(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, versionKey, version)
}
