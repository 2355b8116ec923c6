// Package pipeline runs the resume-to-PDF generation pipeline: submission,
// fan-out, step-memoized runs, and crash recovery.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"resume-pdf-api/internal/analytics"
	"resume-pdf-api/internal/ats"
	"resume-pdf-api/internal/jobs"
	"resume-pdf-api/internal/ledger"
	"resume-pdf-api/internal/notify"
	"resume-pdf-api/internal/renderer"
	"resume-pdf-api/internal/shared/metrics"
	"resume-pdf-api/internal/shared/storage/object"
	"resume-pdf-api/internal/shared/telemetry"
	"resume-pdf-api/internal/templates"
	"resume-pdf-api/internal/usage"
)

// Step names, in execution order. They key the run ledger.
const (
	StepRenderTemplate    = "render-template"
	StepGeneratePDF       = "generate-pdf"
	StepUploadArtifact    = "upload-artifact"
	StepComputeScore      = "compute-score"
	StepPersistCompletion = "persist-completion"
	StepNotify            = "notify"
)

const (
	defaultMaxAttempts       = 3
	defaultRenderConcurrency = 10
)

// TemplateProvider finds and renders templates.
type TemplateProvider interface {
	Find(ctx context.Context, slug, tenantID string) (templates.Template, error)
	Render(t templates.Template, data map[string]any) (string, error)
}

// Uploader stores generated PDFs and returns their URL.
type Uploader interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// UsageRecorder counts a completed job against its tenant, once per job.
type UsageRecorder interface {
	RecordGeneration(ctx context.Context, tenantID, jobID string) (usage.Usage, bool, error)
}

// Notifier receives completion triggers. Delivery happens off the run.
type Notifier interface {
	Dispatch(ctx context.Context, c notify.Completed)
}

// EngineOptions wires an Engine. Ledger, Jobs, Templates, Renderer and Store are required.
type EngineOptions struct {
	Jobs      jobs.Repo
	Ledger    ledger.Ledger
	Templates TemplateProvider
	Renderer  renderer.Renderer
	Store     Uploader
	Usage     UsageRecorder
	Notifier  Notifier
	Tracker   *analytics.Tracker

	MaxAttempts       int
	RenderConcurrency int64
	RetryDelay        time.Duration
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Engine executes pipeline runs. A run is keyed by its job id, so a run
// dispatched again after a crash resumes at the first step the ledger lacks.
type Engine struct {
	jobs      jobs.Repo
	ledger    ledger.Ledger
	templates TemplateProvider
	renderer  renderer.Renderer
	store     Uploader
	usage     UsageRecorder
	notifier  Notifier
	tracker   *analytics.Tracker

	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	// renderSlots bounds runs inside generate-pdf and upload-artifact; waiters are served FIFO.
	renderSlots *semaphore.Weighted
}

// NewEngine constructs an Engine.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		jobs:        opts.Jobs,
		ledger:      opts.Ledger,
		templates:   opts.Templates,
		renderer:    opts.Renderer,
		store:       opts.Store,
		usage:       opts.Usage,
		notifier:    opts.Notifier,
		tracker:     opts.Tracker,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		sleep:       opts.Sleep,
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = defaultMaxAttempts
	}
	if e.retryDelay < 0 {
		e.retryDelay = 0
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	slots := opts.RenderConcurrency
	if slots <= 0 {
		slots = defaultRenderConcurrency
	}
	e.renderSlots = semaphore.NewWeighted(slots)
	return e
}

// Run executes or resumes the run for a job. Failures inside the pipeline are
// recorded on the job and reported as nil; a non-nil error means the run could
// not record its outcome and should be dispatched again.
func (e *Engine) Run(ctx context.Context, jobID, tenantID string) (err error) {
	job, err := e.jobs.GetByID(ctx, jobID, tenantID)
	if errors.Is(err, jobs.ErrNotFound) {
		return &NotFoundError{Err: fmt.Errorf("%w: %s", jobs.ErrNotFound, jobID)}
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	switch job.Status {
	case jobs.StatusFailed:
		e.logRun("pipeline.run.skipped", job, map[string]any{"reason": "job already failed"})
		return nil
	case jobs.StatusCompleted:
		// A crash after the completion write still owes usage and notify.
		if job.PdfURL == nil || job.AtsScore == nil {
			return nil
		}
		return e.complete(ctx, job, *job.PdfURL, *job.AtsScore, time.Time{})
	case jobs.StatusPending:
		if err := e.jobs.UpdateByID(ctx, job.ID, jobs.Processing()); err != nil {
			if errors.Is(err, jobs.ErrInvalidTransition) {
				e.logRun("pipeline.run.skipped", job, map[string]any{"reason": "job claimed by another run"})
				return nil
			}
			return fmt.Errorf("mark processing: %w", err)
		}
		job.Status = jobs.StatusProcessing
		e.logRun("pipeline.run.status", job, map[string]any{"status_transition": "pending->processing"})
	case jobs.StatusProcessing:
		e.logRun("pipeline.run.resumed", job, nil)
	}

	startedAt := time.Now().UTC()
	metrics.IncRunStarted()
	defer func() {
		if r := recover(); r != nil {
			err = e.fail(ctx, job, fmt.Errorf("panic: %v", r), startedAt)
		}
	}()

	pdfURL, err := e.produce(ctx, job)
	if err != nil {
		return e.fail(ctx, job, err, startedAt)
	}

	// Scoring is pure; an error here comes from the ledger, so the job stays
	// processing and recovery resumes it after the memoized upload.
	score, err := e.computeScore(ctx, job)
	if err != nil {
		telemetry.Error("pipeline.score.failed", map[string]any{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"step":      StepComputeScore,
			"error":     err.Error(),
		})
		return err
	}
	return e.complete(ctx, job, pdfURL, score, startedAt)
}

// produce runs render-template, generate-pdf and upload-artifact under one
// shared attempt budget and returns the artifact URL.
func (e *Engine) produce(ctx context.Context, job jobs.Job) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		url, err := e.produceOnce(ctx, job, attempt)
		if err == nil {
			return url, nil
		}
		lastErr = err
		if IsPermanent(err) {
			return "", err
		}
		telemetry.Warn("pipeline.attempt.failed", map[string]any{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"step":      stepOf(err),
			"attempt":   attempt,
			"error":     err.Error(),
		})
		if attempt < e.maxAttempts {
			if err := e.sleep(ctx, e.retryDelay); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

func (e *Engine) produceOnce(ctx context.Context, job jobs.Job, attempt int) (string, error) {
	html, err := e.step(ctx, job, StepRenderTemplate, attempt, func(ctx context.Context) ([]byte, error) {
		return e.renderTemplate(ctx, job)
	})
	if err != nil {
		return "", err
	}

	if url, ok, err := e.ledger.Get(ctx, job.ID, StepUploadArtifact); err != nil {
		return "", &TransientError{Step: StepUploadArtifact, Err: fmt.Errorf("ledger get: %w", err)}
	} else if ok {
		metrics.IncStepMemoized()
		return string(url), nil
	}

	if err := e.renderSlots.Acquire(ctx, 1); err != nil {
		return "", &TransientError{Step: StepGeneratePDF, Err: err}
	}
	defer e.renderSlots.Release(1)

	pdf, err := e.step(ctx, job, StepGeneratePDF, attempt, func(ctx context.Context) ([]byte, error) {
		out, err := e.renderer.RenderPDF(ctx, string(html))
		if err != nil {
			return nil, &TransientError{Step: StepGeneratePDF, Err: fmt.Errorf("render pdf: %w", err)}
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}

	url, err := e.step(ctx, job, StepUploadArtifact, attempt, func(ctx context.Context) ([]byte, error) {
		key, err := object.PDFKey(job.TenantID, job.ID)
		if err != nil {
			return nil, &PermanentError{Step: StepUploadArtifact, Err: err}
		}
		url, err := e.store.Put(ctx, key, object.ContentTypePDF, pdf)
		if err != nil {
			return nil, &TransientError{Step: StepUploadArtifact, Err: fmt.Errorf("upload pdf: %w", err)}
		}
		return []byte(url), nil
	})
	if err != nil {
		return "", err
	}
	return string(url), nil
}

func (e *Engine) renderTemplate(ctx context.Context, job jobs.Job) ([]byte, error) {
	tmpl, err := e.templates.Find(ctx, job.TemplateSlug, job.TenantID)
	if err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			return nil, &PermanentError{Step: StepRenderTemplate, Err: err}
		}
		return nil, &TransientError{Step: StepRenderTemplate, Err: fmt.Errorf("find template: %w", err)}
	}
	html, err := e.templates.Render(tmpl, job.ResumeData)
	if err != nil {
		return nil, &PermanentError{Step: StepRenderTemplate, Err: err}
	}
	e.tracker.Track(ctx, analytics.Event{
		Name:         analytics.EventTemplateUsed,
		TenantID:     job.TenantID,
		JobID:        job.ID,
		TemplateSlug: job.TemplateSlug,
	})
	return []byte(html), nil
}

func (e *Engine) computeScore(ctx context.Context, job jobs.Job) (ats.Result, error) {
	out, err := e.step(ctx, job, StepComputeScore, 0, func(ctx context.Context) ([]byte, error) {
		score := ats.Score(job.ResumeData)
		e.tracker.Track(ctx, analytics.Event{
			Name:         analytics.EventATSScoreComputed,
			TenantID:     job.TenantID,
			JobID:        job.ID,
			TemplateSlug: job.TemplateSlug,
			Meta:         map[string]any{"total": score.Total},
		})
		return json.Marshal(score)
	})
	if err != nil {
		return ats.Result{}, err
	}
	var score ats.Result
	if err := json.Unmarshal(out, &score); err != nil {
		return ats.Result{}, fmt.Errorf("decode %s output: %w", StepComputeScore, err)
	}
	return score, nil
}

// complete runs persist-completion and notify. A zero startedAt marks a
// resumed run whose completion was already written.
func (e *Engine) complete(ctx context.Context, job jobs.Job, pdfURL string, score ats.Result, startedAt time.Time) error {
	persisted := false
	_, err := e.step(ctx, job, StepPersistCompletion, 0, func(ctx context.Context) ([]byte, error) {
		// Usage is idempotent per job, so it is recorded before the job can be
		// seen as completed.
		if e.usage != nil {
			if _, _, err := e.usage.RecordGeneration(ctx, job.TenantID, job.ID); err != nil {
				return nil, fmt.Errorf("record usage: %w", err)
			}
		}
		err := e.jobs.UpdateByID(ctx, job.ID, jobs.Completed(pdfURL, score))
		switch {
		case err == nil:
			e.recordCompleted(ctx, job, pdfURL, score, startedAt)
		case errors.Is(err, jobs.ErrInvalidTransition):
			current, getErr := e.jobs.GetByID(ctx, job.ID, job.TenantID)
			if getErr != nil {
				return nil, fmt.Errorf("mark completed: %w", getErr)
			}
			if current.Status != jobs.StatusCompleted {
				return nil, fmt.Errorf("mark completed: job is %s: %w", current.Status, err)
			}
		default:
			return nil, fmt.Errorf("mark completed: %w", err)
		}
		persisted = true
		return []byte(pdfURL), nil
	})
	switch {
	case err != nil && persisted:
		// The job is completed; only the memo is missing and a rerun finds the
		// writes already applied.
		telemetry.Warn("pipeline.persist.memo_failed", map[string]any{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"step":      StepPersistCompletion,
			"error":     err.Error(),
		})
	case err != nil:
		// The job stays processing; recovery dispatches it again.
		telemetry.Error("pipeline.persist.failed", map[string]any{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"step":      StepPersistCompletion,
			"error":     err.Error(),
		})
		return err
	}

	_, err = e.step(ctx, job, StepNotify, 0, func(ctx context.Context) ([]byte, error) {
		if e.notifier != nil {
			e.notifier.Dispatch(ctx, completedTrigger(job, pdfURL, score))
		}
		return []byte("dispatched"), nil
	})
	if err != nil {
		// Completion already stands; notify is best effort.
		telemetry.Warn("pipeline.notify.failed", map[string]any{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"step":      StepNotify,
			"error":     err.Error(),
		})
	}
	return nil
}

// recordCompleted emits the completion metrics and event. It runs only for the
// write that moved the job to completed.
func (e *Engine) recordCompleted(ctx context.Context, job jobs.Job, pdfURL string, score ats.Result, startedAt time.Time) {
	metrics.IncRunCompleted()
	fields := map[string]any{
		"status_transition": "processing->completed",
		"pdf_url":           pdfURL,
		"ats_total":         score.Total,
	}
	if !startedAt.IsZero() {
		ms := durationMs(startedAt)
		metrics.ObserveRunDurationMs(ms)
		fields["duration_ms"] = ms
	}
	e.logRun("pipeline.run.status", job, fields)
	e.tracker.Track(ctx, analytics.Event{
		Name:         analytics.EventPDFGenerated,
		TenantID:     job.TenantID,
		JobID:        job.ID,
		TemplateSlug: job.TemplateSlug,
		Meta:         map[string]any{"atsScore": score.Total},
	})
}

// fail records err on the job. It returns nil once the failure is stored.
func (e *Engine) fail(ctx context.Context, job jobs.Job, cause error, startedAt time.Time) error {
	msg := cause.Error()
	if err := e.jobs.UpdateByID(ctx, job.ID, jobs.Failed(msg)); err != nil {
		if errors.Is(err, jobs.ErrInvalidTransition) {
			e.logRun("pipeline.run.skipped", job, map[string]any{"reason": "job already terminal", "error": msg})
			return nil
		}
		telemetry.Error("pipeline.fail.update_failed", map[string]any{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"error":     err.Error(),
			"cause":     msg,
		})
		return fmt.Errorf("mark failed: %w", err)
	}
	metrics.IncRunFailed()
	ms := durationMs(startedAt)
	metrics.ObserveRunDurationMs(ms)
	telemetry.Warn("pipeline.run.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"job_id":            job.ID,
		"tenant_id":         job.TenantID,
		"step":              stepOf(cause),
		"status_transition": "processing->failed",
		"duration_ms":       ms,
		"error":             msg,
	})
	e.tracker.Track(ctx, analytics.Event{
		Name:         analytics.EventPDFFailed,
		TenantID:     job.TenantID,
		JobID:        job.ID,
		TemplateSlug: job.TemplateSlug,
		Meta:         map[string]any{"error": msg, "step": stepOf(cause)},
	})
	return nil
}

// step returns the memoized output of name, or executes it and memoizes the
// result.
func (e *Engine) step(ctx context.Context, job jobs.Job, name string, attempt int, exec func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	out, ok, err := e.ledger.Get(ctx, job.ID, name)
	if err != nil {
		return nil, &TransientError{Step: name, Err: fmt.Errorf("ledger get: %w", err)}
	}
	if ok {
		metrics.IncStepMemoized()
		telemetry.Debug("pipeline.step.memoized", map[string]any{
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
			"step":      name,
		})
		return out, nil
	}

	start := time.Now()
	out, err = exec(ctx)
	if err != nil {
		if !IsTransient(err) && !IsPermanent(err) {
			err = &TransientError{Step: name, Err: err}
		}
		return nil, err
	}
	if err := e.ledger.Put(ctx, job.ID, name, out); err != nil {
		return nil, &TransientError{Step: name, Err: fmt.Errorf("ledger put: %w", err)}
	}
	// Another run may have stored this step first; its output wins.
	if stored, ok, err := e.ledger.Get(ctx, job.ID, name); err == nil && ok {
		out = stored
	}
	fields := map[string]any{
		"job_id":      job.ID,
		"tenant_id":   job.TenantID,
		"step":        name,
		"duration_ms": durationMs(start),
	}
	if attempt > 0 {
		fields["attempt"] = attempt
	}
	telemetry.Info("pipeline.step.completed", fields)
	return out, nil
}

func (e *Engine) logRun(msg string, job jobs.Job, extra map[string]any) {
	fields := map[string]any{
		"job_id":        job.ID,
		"tenant_id":     job.TenantID,
		"template_slug": job.TemplateSlug,
		"status":        job.Status,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info(msg, fields)
}

func completedTrigger(job jobs.Job, pdfURL string, score ats.Result) notify.Completed {
	c := notify.Completed{
		JobID:        job.ID,
		TenantID:     job.TenantID,
		TemplateSlug: job.TemplateSlug,
		PdfURL:       pdfURL,
		AtsScore:     score,
	}
	if job.NotifyEmail != nil {
		c.NotifyEmail = *job.NotifyEmail
	}
	if name, ok := job.ResumeData["name"].(string); ok {
		c.Name = name
	}
	return c
}

func stepOf(err error) string {
	var transient *TransientError
	if errors.As(err, &transient) {
		return transient.Step
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return permanent.Step
	}
	return ""
}

func durationMs(since time.Time) float64 {
	if since.IsZero() {
		return 0
	}
	return float64(time.Since(since).Microseconds()) / 1000.0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
