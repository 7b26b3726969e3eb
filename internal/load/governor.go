// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package load gates bulk instance startup on system memory and CPU usage.
package load

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrLoadAbort is returned by Admit when memory usage is too high to start
// anything else.
var ErrLoadAbort = errors.New("load abort")

// Sampler reads system usage as percentages in [0, 100].
type Sampler interface {
	MemoryPercent(ctx context.Context) (float64, error)
	// CPUPercent measures average CPU busy time across cores over window.
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
}

// Config holds the governor thresholds.
type Config struct {
	MemoryLimit     float64 // abort above this
	CPULimit        float64 // wait above this
	CPUResume       float64 // resume at or below this
	CPUWindow       time.Duration
	RecheckInterval time.Duration
	MaxWait         time.Duration // admit anyway after waiting this long
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MemoryLimit:     90,
		CPULimit:        90,
		CPUResume:       85,
		CPUWindow:       100 * time.Millisecond,
		RecheckInterval: 5 * time.Second,
		MaxWait:         5 * time.Minute,
	}
}

// Governor decides whether the next instance may be started.
type Governor struct {
	cfg     Config
	sampler Sampler
}

// NewGovernor creates a governor. Zero fields in cfg take their defaults.
func NewGovernor(cfg Config, sampler Sampler) *Governor {
	d := DefaultConfig()
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = d.MemoryLimit
	}
	if cfg.CPULimit <= 0 {
		cfg.CPULimit = d.CPULimit
	}
	if cfg.CPUResume <= 0 {
		cfg.CPUResume = d.CPUResume
	}
	if cfg.CPUWindow <= 0 {
		cfg.CPUWindow = d.CPUWindow
	}
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = d.RecheckInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = d.MaxWait
	}
	return &Governor{cfg: cfg, sampler: sampler}
}

// Config returns the effective thresholds.
func (g *Governor) Config() Config {
	return g.cfg
}

// Admit returns nil when the next start may proceed. It returns an error
// wrapping ErrLoadAbort when memory is over the limit. While CPU is over
// its limit it blocks, rechecking periodically, until CPU falls to the
// resume threshold or the maximum wait has passed.
func (g *Governor) Admit(ctx context.Context) error {
	if err := g.checkMemory(ctx); err != nil {
		return err
	}

	cpu, err := g.sampler.CPUPercent(ctx, g.cfg.CPUWindow)
	if err != nil {
		log.Printf("Load: CPU sample failed: %v", err)
		return nil
	}
	if cpu <= g.cfg.CPULimit {
		return nil
	}

	log.Printf("Load: CPU at %.1f%%, waiting for it to drop to %.0f%%", cpu, g.cfg.CPUResume)
	deadline := time.Now().Add(g.cfg.MaxWait)
	ticker := time.NewTicker(g.cfg.RecheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := g.checkMemory(ctx); err != nil {
			return err
		}
		// cpu keeps the last good reading when a sample fails.
		if reading, err := g.sampler.CPUPercent(ctx, g.cfg.CPUWindow); err != nil {
			log.Printf("Load: CPU sample failed: %v", err)
		} else {
			cpu = reading
			if cpu <= g.cfg.CPUResume {
				log.Printf("Load: CPU at %.1f%%, resuming", cpu)
				return nil
			}
		}
		if !time.Now().Before(deadline) {
			log.Printf("Load: CPU still at %.1f%% after %s, proceeding anyway", cpu, g.cfg.MaxWait)
			return nil
		}
	}
}

func (g *Governor) checkMemory(ctx context.Context) error {
	mem, err := g.sampler.MemoryPercent(ctx)
	if err != nil {
		log.Printf("Load: memory sample failed: %v", err)
		return nil
	}
	if mem > g.cfg.MemoryLimit {
		return fmt.Errorf("%w: memory at %.1f%% exceeds %.0f%%", ErrLoadAbort, mem, g.cfg.MemoryLimit)
	}
	return nil
}
