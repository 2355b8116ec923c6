// Package notify fans a completed generation out to the tenant webhook and the job's email recipient.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"resume-pdf-api/internal/analytics"
	"resume-pdf-api/internal/ats"
	"resume-pdf-api/internal/shared/metrics"
	"resume-pdf-api/internal/shared/telemetry"
)

const (
	defaultEmailConcurrency = 5
	defaultEmailAttempts    = 3
	defaultEmailBackoff     = time.Second
)

// Completed is the trigger emitted when a job finishes successfully.
type Completed struct {
	JobID        string
	TenantID     string
	TemplateSlug string
	PdfURL       string
	AtsScore     ats.Result
	NotifyEmail  string
	Name         string
}

// WebhookPayload is the body POSTed to the tenant's webhook.
type WebhookPayload struct {
	JobID    string     `json:"jobId"`
	PdfURL   string     `json:"pdfUrl"`
	AtsScore ats.Result `json:"atsScore"`
}

// WebhookSource returns a tenant's webhook URL, empty when none is configured.
type WebhookSource interface {
	WebhookURL(ctx context.Context, tenantID string) (string, error)
}

// Deliverer posts a webhook payload.
type Deliverer interface {
	Deliver(ctx context.Context, url string, payload any) error
}

// Options configures a Dispatcher.
type Options struct {
	Webhooks         WebhookSource
	Deliverer        Deliverer
	Sender           Sender
	Tracker          *analytics.Tracker
	EmailConcurrency int
	EmailAttempts    int
	EmailBackoff     time.Duration
	Sleep            func(ctx context.Context, d time.Duration) error
}

// Dispatcher runs notifications off the pipeline's path. Webhook and email
// are independent; email sends share a FIFO pool.
type Dispatcher struct {
	webhooks  WebhookSource
	deliverer Deliverer
	sender    Sender
	tracker   *analytics.Tracker
	emailSem  *semaphore.Weighted
	attempts  int
	backoff   time.Duration
	sleep     func(ctx context.Context, d time.Duration) error

	queue    chan Completed
	inflight sync.WaitGroup

	// mu is held shared by Dispatch while it enqueues and exclusively by stop,
	// so nothing is sent to the queue once the consumer has drained it.
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	stopping chan struct{}
}

// NewDispatcher constructs a Dispatcher. Start must be called before Dispatch.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		webhooks:  opts.Webhooks,
		deliverer: opts.Deliverer,
		sender:    opts.Sender,
		tracker:   opts.Tracker,
		attempts:  opts.EmailAttempts,
		backoff:   opts.EmailBackoff,
		sleep:     opts.Sleep,
		queue:     make(chan Completed, 256),
		stopping:  make(chan struct{}),
	}
	concurrency := opts.EmailConcurrency
	if concurrency <= 0 {
		concurrency = defaultEmailConcurrency
	}
	d.emailSem = semaphore.NewWeighted(int64(concurrency))
	if d.attempts <= 0 {
		d.attempts = defaultEmailAttempts
	}
	if d.backoff <= 0 {
		d.backoff = defaultEmailBackoff
	}
	if d.sleep == nil {
		d.sleep = sleepContext
	}
	return d
}

// Start consumes queued triggers until ctx is done or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	go func() {
		for {
			select {
			case c := <-d.queue:
				go d.run(runCtx, c)
			case <-ctx.Done():
				d.stop()
				d.drain(runCtx)
				return
			case <-d.stopping:
				d.stop()
				d.drain(runCtx)
				return
			}
		}
	}()
}

// Dispatch enqueues c. It does not wait for delivery. Once the dispatcher is
// stopping, c is delivered on its own goroutine and still counted by Flush.
func (d *Dispatcher) Dispatch(ctx context.Context, c Completed) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.inflight.Add(1)
	if d.closed {
		d.deliverDirect(ctx, c)
		return
	}
	select {
	case <-d.stopping:
		d.deliverDirect(ctx, c)
		return
	default:
	}
	select {
	case d.queue <- c:
	case <-d.stopping:
		d.deliverDirect(ctx, c)
	case <-ctx.Done():
		d.inflight.Done()
		telemetry.Warn("notify.dispatch_dropped", map[string]any{"job_id": c.JobID, "tenant_id": c.TenantID, "error": ctx.Err()})
	}
}

// Flush waits for every dispatched trigger to finish or ctx to end.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue and waits for every dispatched trigger to finish.
// Dispatch stays safe to call afterwards.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.stop()
	d.drain(context.WithoutCancel(ctx))
	return d.Flush(ctx)
}

func (d *Dispatcher) stop() {
	d.stopOnce.Do(func() {
		close(d.stopping)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
	})
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case c := <-d.queue:
			go d.run(ctx, c)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, c Completed) {
	defer d.inflight.Done()
	d.Notify(ctx, c)
}

func (d *Dispatcher) deliverDirect(ctx context.Context, c Completed) {
	telemetry.Debug("notify.dispatch_direct", map[string]any{"job_id": c.JobID, "tenant_id": c.TenantID})
	go d.run(context.WithoutCancel(ctx), c)
}

// Notify runs the webhook and email sub-actions concurrently and returns when both end.
// Failures are logged; neither suppresses the other.
func (d *Dispatcher) Notify(ctx context.Context, c Completed) {
	var g errgroup.Group
	g.Go(func() error {
		d.sendWebhook(ctx, c)
		return nil
	})
	g.Go(func() error {
		d.sendEmail(ctx, c)
		return nil
	})
	_ = g.Wait()
}

func (d *Dispatcher) sendWebhook(ctx context.Context, c Completed) {
	if d.webhooks == nil || d.deliverer == nil {
		return
	}
	url, err := d.webhooks.WebhookURL(ctx, c.TenantID)
	if err != nil {
		telemetry.Error("notify.webhook_lookup_failed", map[string]any{"job_id": c.JobID, "tenant_id": c.TenantID, "error": err})
		return
	}
	if url == "" {
		return
	}
	payload := WebhookPayload{JobID: c.JobID, PdfURL: c.PdfURL, AtsScore: c.AtsScore}
	if err := d.deliverer.Deliver(ctx, url, payload); err != nil {
		telemetry.Warn("notify.webhook_failed", map[string]any{"job_id": c.JobID, "tenant_id": c.TenantID, "error": err})
		return
	}
	d.tracker.Track(ctx, analytics.Event{
		Name:         analytics.EventWebhookSent,
		TenantID:     c.TenantID,
		JobID:        c.JobID,
		TemplateSlug: c.TemplateSlug,
	})
}

func (d *Dispatcher) sendEmail(ctx context.Context, c Completed) {
	to := strings.TrimSpace(c.NotifyEmail)
	if to == "" || d.sender == nil {
		return
	}
	email, err := BuildEmail(to, c.PdfURL, c.Name)
	if err != nil {
		telemetry.Error("notify.email_build_failed", map[string]any{"job_id": c.JobID, "error": err})
		metrics.IncEmailFailed()
		return
	}

	if err := d.emailSem.Acquire(ctx, 1); err != nil {
		telemetry.Warn("notify.email_abandoned", map[string]any{"job_id": c.JobID, "error": err})
		metrics.IncEmailFailed()
		return
	}
	defer d.emailSem.Release(1)

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		lastErr = d.sender.Send(ctx, email)
		if lastErr == nil {
			metrics.IncEmailSent()
			telemetry.Info("notify.email_sent", map[string]any{"job_id": c.JobID, "tenant_id": c.TenantID, "attempt": attempt})
			d.tracker.Track(ctx, analytics.Event{
				Name:         analytics.EventEmailSent,
				TenantID:     c.TenantID,
				JobID:        c.JobID,
				TemplateSlug: c.TemplateSlug,
			})
			return
		}
		telemetry.Warn("notify.email_attempt_failed", map[string]any{"job_id": c.JobID, "attempt": attempt, "error": lastErr})
		if attempt < d.attempts {
			if err := d.sleep(ctx, d.backoff*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}
	metrics.IncEmailFailed()
	telemetry.Error("notify.email_failed", map[string]any{"job_id": c.JobID, "tenant_id": c.TenantID, "error": lastErr})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
