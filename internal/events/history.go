// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
	"time"
)

// EventHistoryConfig configures event history.
type EventHistoryConfig struct {
	MaxEvents int
	MaxAge    time.Duration
}

// EventHistory keeps the most recent events in a fixed-size ring, in the
// order they were added.
type EventHistory struct {
	mu     sync.RWMutex
	ring   []Event
	start  int // index of the oldest event
	count  int
	maxAge time.Duration
}

// NewEventHistory creates a new event history.
func NewEventHistory(cfg EventHistoryConfig) *EventHistory {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 10000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}

	return &EventHistory{
		ring:   make([]Event, cfg.MaxEvents),
		maxAge: cfg.MaxAge,
	}
}

// at returns the i'th oldest retained event.
func (h *EventHistory) at(i int) Event {
	return h.ring[(h.start+i)%len(h.ring)]
}

// Add stores an event, overwriting the oldest one when full.
func (h *EventHistory) Add(event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ring == nil {
		return ErrBusClosed
	}

	if h.count < len(h.ring) {
		h.ring[(h.start+h.count)%len(h.ring)] = event
		h.count++
		return nil
	}
	h.ring[h.start] = event
	h.start = (h.start + 1) % len(h.ring)
	return nil
}

// Query returns matching events, oldest first. With a limit, the newest
// matching events are kept.
func (h *EventHistory) Query(filter EventFilter) ([]Event, error) {
	types := compileAll(filter.Types)

	h.mu.RLock()
	defer h.mu.RUnlock()

	// Walk newest to oldest so a limit stops the scan early.
	var newest []Event
	for i := h.count - 1; i >= 0; i-- {
		event := h.at(i)
		if !matches(event, filter, types) {
			continue
		}
		newest = append(newest, event)
		if filter.Limit > 0 && len(newest) == filter.Limit {
			break
		}
	}

	result := make([]Event, len(newest))
	for i, event := range newest {
		result[len(newest)-1-i] = event
	}
	return result, nil
}

func matches(event Event, filter EventFilter, types []Pattern) bool {
	if len(filter.Types) > 0 && !matchAny(types, event.Type) {
		return false
	}
	if filter.Instance != "" && event.Instance != filter.Instance {
		return false
	}
	if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && event.Timestamp.After(filter.Until) {
		return false
	}
	return true
}

// Prune drops events older than the configured max age.
func (h *EventHistory) Prune() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-h.maxAge)
	for h.count > 0 && !h.ring[h.start].Timestamp.After(cutoff) {
		h.ring[h.start] = Event{}
		h.start = (h.start + 1) % len(h.ring)
		h.count--
	}
	return nil
}

// Len returns the number of retained events.
func (h *EventHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Close releases the ring. Later adds fail with ErrBusClosed.
func (h *EventHistory) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring = nil
	h.start, h.count = 0, 0
	return nil
}
