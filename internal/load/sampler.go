// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package load

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemSampler reads usage from the host.
type SystemSampler struct{}

// MemoryPercent returns (total - free) / total as a percentage.
func (SystemSampler) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read memory: %w", err)
	}
	if vm.Total == 0 {
		return 0, fmt.Errorf("read memory: total is zero")
	}
	return float64(vm.Total-vm.Free) / float64(vm.Total) * 100, nil
}

// CPUPercent takes two per-core snapshots window apart and returns the
// average busy percentage across cores.
func (SystemSampler) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	before, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("read cpu times: %w", err)
	}

	select {
	case <-time.After(window):
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	after, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("read cpu times: %w", err)
	}
	return averageBusy(before, after), nil
}

func busyIdle(t cpu.TimesStat) (busy, idle float64) {
	busy = t.User + t.Nice + t.System + t.Irq + t.Softirq + t.Steal
	idle = t.Idle + t.Iowait
	return busy, idle
}

// averageBusy averages the per-core busy share between two snapshots.
// Cores with no elapsed time are skipped.
func averageBusy(before, after []cpu.TimesStat) float64 {
	n := len(before)
	if len(after) < n {
		n = len(after)
	}

	var sum float64
	var cores int
	for i := 0; i < n; i++ {
		b0, i0 := busyIdle(before[i])
		b1, i1 := busyIdle(after[i])
		busy := b1 - b0
		total := busy + (i1 - i0)
		if total <= 0 {
			continue
		}
		sum += busy / total * 100
		cores++
	}
	if cores == 0 {
		return 0
	}
	return sum / float64(cores)
}
