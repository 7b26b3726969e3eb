// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"sync"
	"time"
)

const defaultDebounceDuration = 100 * time.Millisecond

// Debouncer delays calls per key. A new call for a key replaces the pending
// one and restarts its timer, so a burst runs only the last function once
// the key has been quiet for the full duration.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	gen      uint64
	pending  map[string]pendingCall
}

type pendingCall struct {
	gen   uint64
	timer *time.Timer
}

// NewDebouncer creates a debouncer. A non-positive duration uses 100ms.
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = defaultDebounceDuration
	}
	return &Debouncer{
		duration: duration,
		pending:  make(map[string]pendingCall),
	}
}

// Debounce schedules fn to run after the debounce duration, replacing any
// call already pending for key.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}

	d.gen++
	gen := d.gen
	timer := time.AfterFunc(d.duration, func() {
		if d.take(key, gen) {
			fn()
		}
	})
	d.pending[key] = pendingCall{gen: gen, timer: timer}
}

// take removes the pending call for key if it is still generation gen. A
// timer that fired just as it was replaced loses here.
func (d *Debouncer) take(key string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; !ok || p.gen != gen {
		return false
	}
	delete(d.pending, key)
	return true
}

// Pending reports whether a call is scheduled for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Cancel drops the pending call for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Stop drops every pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}
