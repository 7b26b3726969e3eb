// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store persists instance records.
package store

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/wingedpig/gamepanel/internal/instance"
)

// Store is an instance.Store that holds resources until closed.
type Store interface {
	instance.Store
	Close() error
}

// Open returns the store for driver ("file" or "sqlite") at path.
func Open(driver, path string, fs afero.Fs) (Store, error) {
	switch driver {
	case "", "file":
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewFileStore(fs, path), nil
	case "sqlite":
		return OpenSQLStore(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
