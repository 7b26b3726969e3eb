// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"context"
	"log"
	"time"
)

// SweepReport summarizes a boot sweep.
type SweepReport struct {
	Started []string // ids started successfully
	Failed  []string // ids whose start returned an error
	Skipped []string // ids never attempted because the sweep was aborted
	Aborted bool
}

// BootSweep starts every auto-start instance in stored order. gate is
// consulted before each start; an error from it ends the sweep. Start
// failures are logged and the sweep moves on. gap is inserted between
// consecutive instances.
func (c *Controller) BootSweep(ctx context.Context, gate Gate, gap time.Duration) SweepReport {
	var ids []string
	c.mu.Lock()
	for _, id := range c.order {
		if c.instances[id].rec.AutoStart {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()

	var report SweepReport
	if len(ids) == 0 {
		return report
	}
	log.Printf("Boot: auto-starting %d instance(s)", len(ids))

	for i, id := range ids {
		if i > 0 && gap > 0 {
			select {
			case <-time.After(gap):
			case <-ctx.Done():
				report.Aborted = true
				report.Skipped = append(report.Skipped, ids[i:]...)
				log.Printf("Boot: sweep cancelled: %v", ctx.Err())
				return report
			}
		}

		if gate != nil {
			if err := gate.Admit(ctx); err != nil {
				report.Aborted = true
				report.Skipped = append(report.Skipped, ids[i:]...)
				log.Printf("Boot: sweep aborted before instance %s, %d instance(s) not started: %v", id, len(ids)-i, err)
				return report
			}
		}

		if err := c.Start(ctx, id); err != nil {
			log.Printf("Boot: instance %s failed to start: %v", id, err)
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Started = append(report.Started, id)
	}

	log.Printf("Boot: sweep finished, %d started, %d failed", len(report.Started), len(report.Failed))
	return report
}
