// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHistory_Defaults(t *testing.T) {
	h := NewEventHistory(EventHistoryConfig{})
	assert.Len(t, h.ring, 10000)
	assert.Equal(t, time.Hour, h.maxAge)
	assert.Equal(t, 0, h.Len())
}

func TestEventHistory_MaxEvents(t *testing.T) {
	h := NewEventHistory(EventHistoryConfig{MaxEvents: 3})
	now := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Add(Event{
			ID:        fmt.Sprint(i),
			Type:      EventInstanceCreated,
			Timestamp: now.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	result, err := h.Query(EventFilter{})
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "2", result[0].ID)
	assert.Equal(t, "4", result[2].ID)
}

func TestEventHistory_QueryFilters(t *testing.T) {
	h := NewEventHistory(EventHistoryConfig{})
	now := time.Now()

	for _, e := range []Event{
		{ID: "1", Type: EventInstanceCreated, Instance: "a", Timestamp: now.Add(-30 * time.Minute)},
		{ID: "2", Type: EventInstanceStatusChanged, Instance: "a", Timestamp: now.Add(-15 * time.Minute)},
		{ID: "3", Type: EventInstanceStatusChanged, Instance: "b", Timestamp: now.Add(-10 * time.Minute)},
		{ID: "4", Type: EventBootFinished, Timestamp: now.Add(-5 * time.Minute)},
	} {
		require.NoError(t, h.Add(e))
	}

	ids := func(events []Event) []string {
		out := make([]string, len(events))
		for i, e := range events {
			out[i] = e.ID
		}
		return out
	}

	result, err := h.Query(EventFilter{Types: []string{"instance.*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(result))

	result, err = h.Query(EventFilter{Instance: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(result))

	result, err = h.Query(EventFilter{Since: now.Add(-20 * time.Minute), Until: now.Add(-8 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(result))

	result, err = h.Query(EventFilter{Types: []string{EventInstanceStatusChanged, "boot.*"}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, ids(result))
}

func TestEventHistory_RingWraps(t *testing.T) {
	h := NewEventHistory(EventHistoryConfig{MaxEvents: 4})
	now := time.Now()
	for i := 0; i < 10; i++ {
		h.Add(Event{ID: fmt.Sprint(i), Type: EventInstanceUpdated, Instance: fmt.Sprint(i % 2), Timestamp: now})
	}
	assert.Equal(t, 4, h.Len())

	result, err := h.Query(EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "7", "8", "9"}, []string{result[0].ID, result[1].ID, result[2].ID, result[3].ID})

	result, err = h.Query(EventFilter{Instance: "0", Limit: 1})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "8", result[0].ID)
}

func TestEventHistory_Prune(t *testing.T) {
	h := NewEventHistory(EventHistoryConfig{MaxAge: time.Minute})
	now := time.Now()
	h.Add(Event{ID: "old", Type: EventInstanceCreated, Timestamp: now.Add(-2 * time.Minute)})
	h.Add(Event{ID: "new", Type: EventInstanceCreated, Timestamp: now})

	require.NoError(t, h.Prune())

	result, err := h.Query(EventFilter{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "new", result[0].ID)

	// The freed slot is reused.
	h.Add(Event{ID: "newer", Type: EventInstanceCreated, Timestamp: now})
	assert.Equal(t, 2, h.Len())
}

func TestEventHistory_Close(t *testing.T) {
	h := NewEventHistory(EventHistoryConfig{MaxEvents: 2})
	h.Add(Event{ID: "1", Type: EventInstanceCreated, Timestamp: time.Now()})
	require.NoError(t, h.Close())

	assert.ErrorIs(t, h.Add(Event{ID: "2"}), ErrBusClosed)
	result, err := h.Query(EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestEventHistory_Concurrent(t *testing.T) {
	h := NewEventHistory(EventHistoryConfig{MaxEvents: 100})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Add(Event{Type: EventInstanceOutput, Instance: fmt.Sprint(n), Timestamp: time.Now()})
				h.Query(EventFilter{Instance: fmt.Sprint(n)})
			}
		}(i)
	}
	wg.Wait()

	result, err := h.Query(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, result, 100)
}
