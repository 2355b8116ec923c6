package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-pdf-api/internal/queue"
)

type gatedRunner struct {
	mu    sync.Mutex
	runs  map[string]int
	gate  chan struct{}
	ctxOK bool
}

func (g *gatedRunner) Run(ctx context.Context, jobID, tenantID string) error {
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs[jobID]++
	g.ctxOK = ctx.Err() == nil
	return nil
}

func TestLocalSchedulerSkipsJobAlreadyRunning(t *testing.T) {
	r := &gatedRunner{runs: map[string]int{}, gate: make(chan struct{})}
	s := NewLocalScheduler(r)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Schedule(ctx, "job-1", "t"))
	require.NoError(t, s.Schedule(ctx, "job-1", "t"))
	cancel()
	close(r.gate)
	require.NoError(t, s.Wait(context.Background()))

	assert.Equal(t, 1, r.runs["job-1"])
	assert.True(t, r.ctxOK, "run context must outlive the request")

	require.NoError(t, s.Schedule(context.Background(), "job-1", "t"))
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, 2, r.runs["job-1"])
}

type recordingQueue struct {
	msgs []queue.Message
	err  error
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func TestQueueSchedulerSendsRunMessage(t *testing.T) {
	q := &recordingQueue{}
	s := NewQueueScheduler(q)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx := WithRequestID(context.Background(), "req-1")
	require.NoError(t, s.Schedule(ctx, "job-1", "tenant-1"))
	require.Len(t, q.msgs, 1)
	assert.Equal(t, "job-1", q.msgs[0].JobID)
	assert.Equal(t, "tenant-1", q.msgs[0].TenantID)
	assert.Equal(t, "req-1", q.msgs[0].RequestID)

	q.err = errors.New("throttled")
	assert.ErrorContains(t, s.Schedule(ctx, "job-2", "tenant-1"), "throttled")
}
