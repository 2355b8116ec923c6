package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resume-pdf-api/internal/analytics"
	"resume-pdf-api/internal/jobs"
	"resume-pdf-api/internal/shared/telemetry"
	"resume-pdf-api/internal/templates"
)

// Item is one resume to generate.
type Item struct {
	ResumeData  any     `json:"resumeData"`
	NotifyEmail *string `json:"notifyEmail"`
}

// TemplateFinder resolves a template slug for a tenant.
type TemplateFinder interface {
	Find(ctx context.Context, slug, tenantID string) (templates.Template, error)
}

// TenantConfig answers per-tenant limits.
type TenantConfig interface {
	MaxBulkSize(ctx context.Context, tenantID string) (int, error)
}

// Quota rejects submissions from tenants over their monthly cap.
type Quota interface {
	Allow(ctx context.Context, tenantID string) error
}

// CoordinatorOptions wires a Coordinator. Quota and Tracker are optional.
type CoordinatorOptions struct {
	Jobs      jobs.Repo
	Templates TemplateFinder
	Tenants   TenantConfig
	Quota     Quota
	Scheduler Scheduler
	Tracker   *analytics.Tracker
	Now       func() time.Time
}

// Coordinator accepts single and bulk submissions, creates their jobs, and
// schedules one run per job.
type Coordinator struct {
	jobs      jobs.Repo
	templates TemplateFinder
	tenants   TenantConfig
	quota     Quota
	scheduler Scheduler
	tracker   *analytics.Tracker
	now       func() time.Time
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	c := &Coordinator{
		jobs:      opts.Jobs,
		templates: opts.Templates,
		tenants:   opts.Tenants,
		quota:     opts.Quota,
		scheduler: opts.Scheduler,
		tracker:   opts.Tracker,
		now:       opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// BulkResult identifies an accepted bulk batch.
type BulkResult struct {
	BulkJobID string
	Count     int
	JobIDs    []string
}

// SubmitSingle validates the item, creates one pending job and schedules its run.
func (c *Coordinator) SubmitSingle(ctx context.Context, tenantID, templateSlug string, item Item) (jobs.Job, error) {
	data, err := validateItem(item)
	if err != nil {
		return jobs.Job{}, err
	}
	if err := c.checkQuota(ctx, tenantID); err != nil {
		return jobs.Job{}, err
	}
	if err := c.findTemplate(ctx, templateSlug, tenantID); err != nil {
		return jobs.Job{}, err
	}

	job := c.newJob(tenantID, templateSlug, data, normalizeEmail(item.NotifyEmail), nil)
	if err := c.jobs.Create(ctx, job); err != nil {
		return jobs.Job{}, fmt.Errorf("create job: %w", err)
	}
	telemetry.Info("pipeline.submit.accepted", map[string]any{
		"request_id":    RequestIDFromContext(ctx),
		"job_id":        job.ID,
		"tenant_id":     tenantID,
		"template_slug": templateSlug,
	})
	c.schedule(ctx, job)
	return job, nil
}

// SubmitBulk validates every item, then creates all jobs under one bulk id and
// schedules their runs. A rejected request creates no jobs.
func (c *Coordinator) SubmitBulk(ctx context.Context, tenantID, templateSlug string, items []Item) (BulkResult, error) {
	if len(items) == 0 {
		return BulkResult{}, &ValidationError{Message: msgItemsRequired}
	}
	limit, err := c.tenants.MaxBulkSize(ctx, tenantID)
	if err != nil {
		return BulkResult{}, fmt.Errorf("max bulk size: %w", err)
	}
	if len(items) > limit {
		return BulkResult{}, bulkLimitError(limit, len(items))
	}
	if err := c.checkQuota(ctx, tenantID); err != nil {
		return BulkResult{}, err
	}
	if err := c.findTemplate(ctx, templateSlug, tenantID); err != nil {
		return BulkResult{}, err
	}

	bulkJobID := uuid.NewString()
	batch := make([]jobs.Job, 0, len(items))
	for i, item := range items {
		data, err := validateItem(item)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return BulkResult{}, &ValidationError{Message: fmt.Sprintf("items[%d]: %s", i, ve.Message), Details: ve.Details}
			}
			return BulkResult{}, err
		}
		batch = append(batch, c.newJob(tenantID, templateSlug, data, normalizeEmail(item.NotifyEmail), &bulkJobID))
	}
	if err := c.jobs.CreateBatch(ctx, batch); err != nil {
		return BulkResult{}, fmt.Errorf("create bulk jobs: %w", err)
	}

	c.tracker.Track(ctx, analytics.Event{
		Name:         analytics.EventBulkJobStarted,
		TenantID:     tenantID,
		TemplateSlug: templateSlug,
		Meta:         map[string]any{"bulkJobId": bulkJobID, "count": len(batch)},
	})
	telemetry.Info("pipeline.bulk.accepted", map[string]any{
		"request_id":    RequestIDFromContext(ctx),
		"bulk_job_id":   bulkJobID,
		"tenant_id":     tenantID,
		"template_slug": templateSlug,
		"count":         len(batch),
	})

	res := BulkResult{BulkJobID: bulkJobID, Count: len(batch), JobIDs: make([]string, 0, len(batch))}
	for _, job := range batch {
		res.JobIDs = append(res.JobIDs, job.ID)
		c.schedule(ctx, job)
	}
	return res, nil
}

func (c *Coordinator) newJob(tenantID, templateSlug string, data map[string]any, notifyEmail, bulkJobID *string) jobs.Job {
	now := c.now().UTC()
	return jobs.Job{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		TemplateSlug: templateSlug,
		Status:       jobs.StatusPending,
		ResumeData:   data,
		BulkJobID:    bulkJobID,
		NotifyEmail:  notifyEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (c *Coordinator) checkQuota(ctx context.Context, tenantID string) error {
	if c.quota == nil {
		return nil
	}
	return c.quota.Allow(ctx, tenantID)
}

func (c *Coordinator) findTemplate(ctx context.Context, slug, tenantID string) error {
	_, err := c.templates.Find(ctx, slug, tenantID)
	if errors.Is(err, templates.ErrNotFound) {
		return &NotFoundError{Err: err}
	}
	if err != nil {
		return fmt.Errorf("find template: %w", err)
	}
	return nil
}

// schedule hands the job to the scheduler. A job that cannot be scheduled
// stays pending and is picked up by recovery.
func (c *Coordinator) schedule(ctx context.Context, job jobs.Job) {
	if c.scheduler == nil {
		return
	}
	if err := c.scheduler.Schedule(ctx, job.ID, job.TenantID); err != nil {
		telemetry.Error("pipeline.schedule.failed", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"job_id":     job.ID,
			"tenant_id":  job.TenantID,
			"error":      err.Error(),
		})
	}
}
