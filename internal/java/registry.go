// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package java tracks the Java runtimes instances can be launched with.
package java

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/wingedpig/gamepanel/internal/watcher"
)

// Environment is one Java runtime.
type Environment struct {
	Version        string `json:"version"`
	Installed      bool   `json:"installed"`
	ExecutablePath string `json:"executable_path"`
	Source         string `json:"source"` // "config" or "root"
}

// Declared is a runtime named in configuration.
type Declared struct {
	Version string
	Path    string
}

// Registry lists runtimes declared in configuration plus those found under
// a root directory laid out as <root>/<version>/bin/java.
type Registry struct {
	fs       afero.Fs
	root     string
	platform string
	declared []Declared

	mu   sync.RWMutex
	envs []Environment

	watcher *watcher.DirWatcher
}

// NewRegistry creates a registry and performs the first scan.
func NewRegistry(fs afero.Fs, root, platform string, declared []Declared) *Registry {
	r := &Registry{
		fs:       fs,
		root:     root,
		platform: platform,
		declared: declared,
	}
	if err := r.Refresh(); err != nil {
		log.Printf("Java: initial scan failed: %v", err)
	}
	return r
}

func (r *Registry) executable() string {
	if r.platform == "windows" {
		return "java.exe"
	}
	return "java"
}

// Refresh rescans the root directory and rechecks declared runtimes.
func (r *Registry) Refresh() error {
	byVersion := make(map[string]Environment)

	for _, d := range r.declared {
		byVersion[d.Version] = Environment{
			Version:        d.Version,
			Installed:      r.isFile(d.Path),
			ExecutablePath: d.Path,
			Source:         "config",
		}
	}

	var scanErr error
	if r.root != "" {
		entries, err := afero.ReadDir(r.fs, r.root)
		if err != nil {
			if exists, _ := afero.DirExists(r.fs, r.root); exists {
				scanErr = fmt.Errorf("scan %s: %w", r.root, err)
			}
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, ok := byVersion[e.Name()]; ok {
				continue
			}
			exe := filepath.Join(r.root, e.Name(), "bin", r.executable())
			if !r.isFile(exe) {
				continue
			}
			byVersion[e.Name()] = Environment{
				Version:        e.Name(),
				Installed:      true,
				ExecutablePath: exe,
				Source:         "root",
			}
		}
	}

	envs := make([]Environment, 0, len(byVersion))
	for _, env := range byVersion {
		envs = append(envs, env)
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Version < envs[j].Version })

	r.mu.Lock()
	r.envs = envs
	r.mu.Unlock()
	return scanErr
}

func (r *Registry) isFile(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// ListEnvironments returns every known runtime sorted by version.
func (r *Registry) ListEnvironments() []Environment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Environment, len(r.envs))
	copy(out, r.envs)
	return out
}

// Locate returns the executable of an installed runtime.
func (r *Registry) Locate(version string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, env := range r.envs {
		if env.Version == version && env.Installed {
			return env.ExecutablePath, true
		}
	}
	return "", false
}

// Watch rescans whenever the root directory changes. The root is created
// if missing. Watching needs the OS filesystem.
func (r *Registry) Watch(debounce time.Duration) error {
	if r.root == "" {
		return fmt.Errorf("no java root configured")
	}
	if err := r.fs.MkdirAll(r.root, 0755); err != nil {
		return fmt.Errorf("create java root: %w", err)
	}
	w, err := watcher.NewDirWatcher(r.root, debounce, func() {
		if err := r.Refresh(); err != nil {
			log.Printf("Java: rescan failed: %v", err)
			return
		}
		log.Printf("Java: %d runtime(s) available", len(r.ListEnvironments()))
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	old := r.watcher
	r.watcher = w
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Close stops watching the root directory.
func (r *Registry) Close() error {
	r.mu.Lock()
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}
