// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/gamepanel/internal/load"
)

// memorySequence reports the given memory readings in order and idle CPU.
type memorySequence struct {
	mu       sync.Mutex
	readings []float64
	calls    int
}

func (s *memorySequence) MemoryPercent(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.readings[len(s.readings)-1]
	if s.calls < len(s.readings) {
		v = s.readings[s.calls]
	}
	s.calls++
	return v, nil
}

func (s *memorySequence) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	return 10, nil
}

type gateFunc func(ctx context.Context) error

func (f gateFunc) Admit(ctx context.Context) error { return f(ctx) }

func createAutoStart(t *testing.T, c *Controller, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		inst, err := c.Create(context.Background(), Record{
			Name:             "auto",
			WorkingDirectory: t.TempDir(),
			StartCommand:     "./server",
			AutoStart:        true,
		})
		require.NoError(t, err)
		ids[i] = inst.ID
	}
	return ids
}

func TestBootSweep_MemoryAbortStopsRemaining(t *testing.T) {
	term := newFakeTerminal()
	c := newTestController(t, term, nil)
	ids := createAutoStart(t, c, 5)

	// Memory is sampled once per admitted instance; the third reading is over the limit.
	sampler := &memorySequence{readings: []float64{40, 50, 95}}
	gov := load.NewGovernor(load.Config{CPUWindow: time.Millisecond}, sampler)

	report := c.BootSweep(context.Background(), gov, 5*time.Millisecond)

	assert.True(t, report.Aborted)
	assert.Equal(t, ids[:2], report.Started)
	assert.Equal(t, ids[2:], report.Skipped)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 2, term.openCount())

	for _, id := range ids[:2] {
		st, _ := c.Status(id)
		assert.Equal(t, StatusRunning, st)
	}
	for _, id := range ids[2:] {
		st, _ := c.Status(id)
		assert.Equal(t, StatusStopped, st)
	}
}

func TestBootSweep_SkipsManualInstances(t *testing.T) {
	term := newFakeTerminal()
	c := newTestController(t, term, nil)
	manual := createGeneric(t, c, "./manual")
	auto := createAutoStart(t, c, 1)

	report := c.BootSweep(context.Background(), nil, 0)
	assert.Equal(t, auto, report.Started)

	st, _ := c.Status(manual.ID)
	assert.Equal(t, StatusStopped, st)
}

func TestBootSweep_FailuresDoNotStopSweep(t *testing.T) {
	term := newFakeTerminal()
	c := newTestController(t, term, nil)

	ids := createAutoStart(t, c, 3)
	// The middle instance points at a directory that does not exist.
	rec, err := c.Get(ids[1])
	require.NoError(t, err)
	r := rec.Record
	r.WorkingDirectory = "/nonexistent/gamepanel/instance"
	_, err = c.Update(context.Background(), ids[1], r)
	require.NoError(t, err)

	report := c.BootSweep(context.Background(), nil, 0)
	assert.False(t, report.Aborted)
	assert.Equal(t, []string{ids[0], ids[2]}, report.Started)
	assert.Equal(t, []string{ids[1]}, report.Failed)
}

func TestBootSweep_GapBetweenInstances(t *testing.T) {
	term := newFakeTerminal()
	c := newTestController(t, term, nil)
	createAutoStart(t, c, 3)

	gap := 40 * time.Millisecond
	c.BootSweep(context.Background(), nil, gap)

	require.Equal(t, 3, term.openCount())
	for i := 1; i < 3; i++ {
		assert.GreaterOrEqual(t, term.openTimes[i].Sub(term.openTimes[i-1]), gap)
	}
}

func TestBootSweep_GateErrorEndsSweep(t *testing.T) {
	term := newFakeTerminal()
	c := newTestController(t, term, nil)
	ids := createAutoStart(t, c, 2)

	calls := 0
	gate := gateFunc(func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("nope")
		}
		return nil
	})

	report := c.BootSweep(context.Background(), gate, 0)
	assert.True(t, report.Aborted)
	assert.Empty(t, report.Started)
	assert.Equal(t, ids, report.Skipped)
	assert.Equal(t, 0, term.openCount())
}

func TestBootSweep_ContextCancelled(t *testing.T) {
	term := newFakeTerminal()
	c := newTestController(t, term, nil)
	ids := createAutoStart(t, c, 3)

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	c.Subscribe(&statusFunc{fn: func(id string, s Status) {
		if s == StatusRunning {
			once.Do(cancel)
		}
	}})

	report := c.BootSweep(ctx, nil, time.Second)
	assert.True(t, report.Aborted)
	assert.Equal(t, ids[:1], report.Started)
	assert.Equal(t, ids[1:], report.Skipped)
}
