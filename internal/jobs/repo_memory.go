package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Job
	byBulk map[string][]string
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Job),
		byBulk: make(map[string][]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	return r.CreateBatch(ctx, []Job{job})
}

// CreateBatch stores every job under one lock.
func (r *MemoryRepo) CreateBatch(ctx context.Context, list []Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range list {
		stored := cloneJob(job)
		r.byID[job.ID] = stored
		if job.BulkJobID != nil {
			r.byBulk[*job.BulkJobID] = append(r.byBulk[*job.BulkJobID], job.ID)
		}
	}
	return nil
}

// GetByID returns a job owned by tenantID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID, tenantID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok || job.TenantID != tenantID {
		return Job{}, ErrNotFound
	}
	return cloneJob(job), nil
}

// UpdateByID applies a forward status transition.
func (r *MemoryRepo) UpdateByID(ctx context.Context, jobID string, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(job.Status, patch.Status) {
		return ErrInvalidTransition
	}
	job.Status = patch.Status
	if patch.PdfURL != nil {
		v := *patch.PdfURL
		job.PdfURL = &v
	}
	if patch.AtsScore != nil {
		v := *patch.AtsScore
		job.AtsScore = &v
	}
	if patch.Error != nil {
		v := *patch.Error
		job.Error = &v
	}
	job.UpdatedAt = r.now()
	r.byID[jobID] = job
	return nil
}

// ListByBulkID returns a batch's jobs in creation order.
func (r *MemoryRepo) ListByBulkID(ctx context.Context, bulkJobID, tenantID string) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Job
	for _, id := range r.byBulk[bulkJobID] {
		job := r.byID[id]
		if job.TenantID != tenantID {
			continue
		}
		out = append(out, cloneJob(job))
	}
	return out, nil
}

// ListUnfinished returns stale pending or processing jobs.
func (r *MemoryRepo) ListUnfinished(ctx context.Context, olderThan time.Time, limit int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Job
	for _, job := range r.byID {
		if job.IsTerminal() || !job.UpdatedAt.Before(olderThan) {
			continue
		}
		out = append(out, cloneJob(job))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// cloneJob copies the pointer fields so callers cannot mutate stored state.
func cloneJob(j Job) Job {
	out := j
	if j.PdfURL != nil {
		v := *j.PdfURL
		out.PdfURL = &v
	}
	if j.AtsScore != nil {
		v := *j.AtsScore
		out.AtsScore = &v
	}
	if j.BulkJobID != nil {
		v := *j.BulkJobID
		out.BulkJobID = &v
	}
	if j.NotifyEmail != nil {
		v := *j.NotifyEmail
		out.NotifyEmail = &v
	}
	if j.Error != nil {
		v := *j.Error
		out.Error = &v
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
