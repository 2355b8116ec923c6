package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"resume-pdf-api/internal/analytics"
	"resume-pdf-api/internal/jobs"
	"resume-pdf-api/internal/ledger"
	"resume-pdf-api/internal/notify"
	"resume-pdf-api/internal/templates"
	"resume-pdf-api/internal/usage"
)

const testTenant = "tenant-a"

type fakeRenderer struct {
	mu     sync.Mutex
	calls  int
	errs   []error
	failOn string
}

func (f *fakeRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != "" && strings.Contains(html, f.failOn) {
		return nil, errors.New("renderer crashed")
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []byte("%PDF-1.4 " + html), nil
}

func (f *fakeRenderer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu   sync.Mutex
	puts map[string]int
	err  error
}

func (f *fakeStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.puts == nil {
		f.puts = make(map[string]int)
	}
	f.puts[key]++
	return "https://files.test/" + key, nil
}

func (f *fakeStore) Puts(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts[key]
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Completed
}

func (r *recordingNotifier) Dispatch(ctx context.Context, c notify.Completed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, c)
}

func (r *recordingNotifier) Sent() []notify.Completed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Completed(nil), r.sent...)
}

// flakyJobs fails the first completed write, as if the process died there.
type flakyJobs struct {
	jobs.Repo
	mu            sync.Mutex
	failCompleted int
}

func (f *flakyJobs) UpdateByID(ctx context.Context, jobID string, patch jobs.Patch) error {
	f.mu.Lock()
	if patch.Status == jobs.StatusCompleted && f.failCompleted > 0 {
		f.failCompleted--
		f.mu.Unlock()
		return errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Repo.UpdateByID(ctx, jobID, patch)
}

// faultyLedger fails the first Put of one step.
type faultyLedger struct {
	ledger.Ledger
	mu      sync.Mutex
	step    string
	failing int
}

func (f *faultyLedger) Put(ctx context.Context, runID, step string, output []byte) error {
	f.mu.Lock()
	if step == f.step && f.failing > 0 {
		f.failing--
		f.mu.Unlock()
		return errors.New("ledger unavailable")
	}
	f.mu.Unlock()
	return f.Ledger.Put(ctx, runID, step, output)
}

type bulkLimit int

func (b bulkLimit) MaxBulkSize(ctx context.Context, tenantID string) (int, error) {
	return int(b), nil
}

type denyQuota struct{}

func (denyQuota) Allow(ctx context.Context, tenantID string) error { return usage.ErrLimitReached }

type recordingScheduler struct {
	mu     sync.Mutex
	jobIDs []string
}

func (r *recordingScheduler) Schedule(ctx context.Context, jobID, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobIDs = append(r.jobIDs, jobID)
	return nil
}

type harness struct {
	jobs      *jobs.MemoryRepo
	repo      jobs.Repo
	ledger    *ledger.MemoryLedger
	runLedger ledger.Ledger
	templates *templates.Service
	renderer  *fakeRenderer
	store     *fakeStore
	usage     *usage.Service
	notifier  *recordingNotifier
	events    *analytics.MemoryStore
	sleeps    []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		jobs:      jobs.NewMemoryRepo(),
		ledger:    ledger.NewMemoryLedger(),
		templates: templates.NewService(templates.NewMemoryRepo()),
		renderer:  &fakeRenderer{},
		store:     &fakeStore{},
		usage:     usage.NewService(),
		notifier:  &recordingNotifier{},
		events:    analytics.NewMemoryStore(),
	}
	h.repo = h.jobs
	h.runLedger = h.ledger
	_, err := h.templates.Create(context.Background(), testTenant, templates.CreateInput{
		Name: "Basic",
		Slug: "basic",
		HTML: "<h1>{{name}}</h1>",
	})
	require.NoError(t, err)
	return h
}

func (h *harness) engine() *Engine {
	return NewEngine(EngineOptions{
		Jobs:        h.repo,
		Ledger:      h.runLedger,
		Templates:   h.templates,
		Renderer:    h.renderer,
		Store:       h.store,
		Usage:       h.usage,
		Notifier:    h.notifier,
		Tracker:     analytics.NewTracker(h.events),
		MaxAttempts: 3,
		RetryDelay:  time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	})
}

func (h *harness) coordinator(s Scheduler, maxBulk int) *Coordinator {
	return NewCoordinator(CoordinatorOptions{
		Jobs:      h.repo,
		Templates: h.templates,
		Tenants:   bulkLimit(maxBulk),
		Scheduler: s,
		Tracker:   analytics.NewTracker(h.events),
	})
}

func (h *harness) createJob(t *testing.T, slug string, data map[string]any) jobs.Job {
	t.Helper()
	return h.createJobWithID(t, "job-"+slug, slug, data)
}

func (h *harness) createJobWithID(t *testing.T, id, slug string, data map[string]any) jobs.Job {
	t.Helper()
	now := time.Now().UTC()
	job := jobs.Job{
		ID:           id,
		TenantID:     testTenant,
		TemplateSlug: slug,
		Status:       jobs.StatusPending,
		ResumeData:   data,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, h.jobs.Create(context.Background(), job))
	return job
}

func (h *harness) job(t *testing.T, id string) jobs.Job {
	t.Helper()
	job, err := h.jobs.GetByID(context.Background(), id, testTenant)
	require.NoError(t, err)
	return job
}
