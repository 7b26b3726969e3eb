// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher watches a directory and its immediate subdirectories and calls
// a function, debounced, whenever something inside changes.
type DirWatcher struct {
	mu        sync.Mutex
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	onChange  func()
	paths     map[string]bool
	closed    bool
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewDirWatcher starts watching root. onChange runs on a timer goroutine
// after changes settle for the debounce duration.
func NewDirWatcher(root string, debounce time.Duration, onChange func()) (*DirWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &DirWatcher{
		root:      absRoot,
		watcher:   fsWatcher,
		debouncer: NewDebouncer(debounce),
		onChange:  onChange,
		paths:     make(map[string]bool),
		closeCh:   make(chan struct{}),
	}

	if err := w.addWatch(absRoot); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", absRoot, err)
	}

	entries, err := os.ReadDir(absRoot)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				sub := filepath.Join(absRoot, e.Name())
				if err := w.addWatch(sub); err != nil {
					log.Printf("Watcher: cannot watch %s: %v", sub, err)
				}
			}
		}
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Root returns the watched directory.
func (w *DirWatcher) Root() string {
	return w.root
}

// Watching returns the directories currently being watched.
func (w *DirWatcher) Watching() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := make([]string, 0, len(w.paths))
	for p := range w.paths {
		result = append(result, p)
	}
	return result
}

// Close stops the watcher and releases resources.
func (w *DirWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	w.watcher.Close()
	w.wg.Wait()

	return nil
}

func (w *DirWatcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.paths[path] = true
	return nil
}

func (w *DirWatcher) removeWatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paths[path] {
		w.watcher.Remove(path)
		delete(w.paths, path)
	}
}

func (w *DirWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher: %s: %v", w.root, err)
		}
	}
}

func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	// Chmod fires when a runtime is executed; it never changes what is installed.
	if event.Op == fsnotify.Chmod {
		return
	}

	// New subdirectories of the root are watched so files landing in them are seen.
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.root {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addWatch(event.Name); err != nil {
				log.Printf("Watcher: cannot watch %s: %v", event.Name, err)
			}
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.removeWatch(event.Name)
	}

	w.debouncer.Debounce(w.root, w.onChange)
}
