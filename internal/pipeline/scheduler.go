package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"resume-pdf-api/internal/queue"
	"resume-pdf-api/internal/shared/telemetry"
)

// Scheduler dispatches a run for a job.
type Scheduler interface {
	Schedule(ctx context.Context, jobID, tenantID string) error
}

// Runner executes one run.
type Runner interface {
	Run(ctx context.Context, jobID, tenantID string) error
}

// LocalScheduler runs each job on its own goroutine in this process. A job
// already running here is not started a second time.
type LocalScheduler struct {
	runner Runner

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

var _ Scheduler = (*LocalScheduler)(nil)

// NewLocalScheduler constructs a LocalScheduler.
func NewLocalScheduler(runner Runner) *LocalScheduler {
	return &LocalScheduler{runner: runner, inflight: make(map[string]struct{})}
}

// Schedule starts the run and returns immediately. The run outlives ctx's cancellation.
func (s *LocalScheduler) Schedule(ctx context.Context, jobID, tenantID string) error {
	s.mu.Lock()
	if _, running := s.inflight[jobID]; running {
		s.mu.Unlock()
		return nil
	}
	s.inflight[jobID] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, jobID)
			s.mu.Unlock()
			s.wg.Done()
		}()
		if err := s.runner.Run(runCtx, jobID, tenantID); err != nil {
			telemetry.Error("pipeline.run.error", map[string]any{
				"request_id": RequestIDFromContext(runCtx),
				"job_id":     jobID,
				"tenant_id":  tenantID,
				"error":      err.Error(),
			})
		}
	}()
	return nil
}

// Wait blocks until every scheduled run returns or ctx is done.
func (s *LocalScheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueScheduler publishes one run message per job for a worker to consume.
type QueueScheduler struct {
	client queue.Client
	now    func() time.Time
}

var _ Scheduler = (*QueueScheduler)(nil)

// NewQueueScheduler constructs a QueueScheduler.
func NewQueueScheduler(client queue.Client) *QueueScheduler {
	return &QueueScheduler{client: client, now: time.Now}
}

// Schedule sends the run message.
func (s *QueueScheduler) Schedule(ctx context.Context, jobID, tenantID string) error {
	if s.client == nil {
		return errors.New("queue client not configured")
	}
	msg := queue.NewMessage(jobID, tenantID, RequestIDFromContext(ctx), s.now().UTC())
	if err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return nil
}
