package pipeline

import (
	"context"
	"fmt"
	"time"

	"resume-pdf-api/internal/shared/telemetry"
)

const recoverBatchSize = 100

// Recover dispatches a run again for every pending or processing job not
// updated within grace. Runs resume from the ledger.
func (c *Coordinator) Recover(ctx context.Context, grace time.Duration) (int, error) {
	olderThan := c.now().UTC().Add(-grace)
	list, err := c.jobs.ListUnfinished(ctx, olderThan, recoverBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unfinished jobs: %w", err)
	}
	for _, job := range list {
		telemetry.Info("pipeline.recover.dispatch", map[string]any{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"status":    job.Status,
			"updated":   job.UpdatedAt,
		})
		c.schedule(ctx, job)
	}
	return len(list), nil
}

// RunRecovery calls Recover every interval until ctx is done.
func (c *Coordinator) RunRecovery(ctx context.Context, interval, grace time.Duration) {
	if interval <= 0 {
		interval = grace
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := c.Recover(ctx, grace); err != nil {
			telemetry.Error("pipeline.recover.failed", map[string]any{"error": err.Error()})
		} else if n > 0 {
			telemetry.Info("pipeline.recover.completed", map[string]any{"count": n})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
