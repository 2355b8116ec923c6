package jobs

import (
	"context"
	"time"
)

// Repo defines persistence operations for jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	// CreateBatch stores all jobs or none of them.
	CreateBatch(ctx context.Context, jobs []Job) error
	GetByID(ctx context.Context, jobID, tenantID string) (Job, error)
	// UpdateByID applies patch atomically; it returns ErrInvalidTransition when the
	// stored status cannot move to patch.Status.
	UpdateByID(ctx context.Context, jobID string, patch Patch) error
	ListByBulkID(ctx context.Context, bulkJobID, tenantID string) ([]Job, error)
	// ListUnfinished returns pending or processing jobs last updated before olderThan, oldest first.
	ListUnfinished(ctx context.Context, olderThan time.Time, limit int) ([]Job, error)
}
