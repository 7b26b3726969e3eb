// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"log"
	"sync"
	"time"
)

const flushKey = "flush"

// Flusher coalesces write requests into a single delayed flush.
//
// MarkDirty schedules fn to run no sooner than the configured delay. A
// MarkDirty that arrives before the pending flush fires replaces it, so a
// burst of mutations produces one write. Flush forces any pending write to
// happen synchronously.
type Flusher struct {
	debouncer *Debouncer
	fn        func() error

	// flushMu serializes writes so a timer-driven flush and a forced flush
	// never run fn concurrently.
	flushMu sync.Mutex

	mu      sync.Mutex
	dirty   bool
	stopped bool
	lastErr error
}

// NewFlusher creates a flusher that calls fn at most once per delay window.
func NewFlusher(delay time.Duration, fn func() error) *Flusher {
	if delay <= 0 {
		delay = time.Second
	}
	return &Flusher{
		debouncer: NewDebouncer(delay),
		fn:        fn,
	}
}

// MarkDirty records that state changed and schedules a flush.
func (f *Flusher) MarkDirty() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.dirty = true
	f.mu.Unlock()

	f.debouncer.Debounce(flushKey, func() {
		if err := f.run(); err != nil {
			log.Printf("Flusher: write failed: %v", err)
		}
	})
}

// Dirty reports whether there are unflushed changes.
func (f *Flusher) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// Scheduled reports whether a timer-driven flush is pending.
func (f *Flusher) Scheduled() bool {
	return f.debouncer.Pending(flushKey)
}

// Flush writes pending changes now. It is a no-op when nothing is dirty.
func (f *Flusher) Flush() error {
	f.debouncer.Cancel(flushKey)
	return f.run()
}

// LastError returns the error from the most recent write, if any.
func (f *Flusher) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Stop flushes pending changes and disables further scheduling.
func (f *Flusher) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return f.Flush()
}

func (f *Flusher) run() error {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	f.mu.Lock()
	if !f.dirty {
		f.mu.Unlock()
		return nil
	}
	f.dirty = false
	f.mu.Unlock()

	err := f.fn()

	f.mu.Lock()
	f.lastErr = err
	if err != nil {
		// Keep the data marked dirty so the next flush retries it.
		f.dirty = true
	}
	f.mu.Unlock()
	return err
}
