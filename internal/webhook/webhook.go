// Package webhook delivers JSON payloads to subscriber URLs with bounded retries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"resume-pdf-api/internal/shared/metrics"
	"resume-pdf-api/internal/shared/telemetry"
)

const (
	defaultMaxAttempts = 3
	defaultTimeout     = 10 * time.Second
	defaultBackoffUnit = 2 * time.Second

	maxDrainBytes = 64 << 10
)

// ErrExhausted is returned when every delivery attempt failed.
var ErrExhausted = errors.New("webhook delivery exhausted all attempts")

// Options configures a Deliverer. Zero values take the defaults.
type Options struct {
	Client      *http.Client
	MaxAttempts int
	Timeout     time.Duration
	BackoffUnit time.Duration
	// Sleep waits between attempts; tests replace it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Deliverer POSTs JSON payloads, retrying non-2xx responses and transport errors.
type Deliverer struct {
	client      *http.Client
	maxAttempts int
	timeout     time.Duration
	backoffUnit time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// New builds a Deliverer.
func New(opts Options) *Deliverer {
	d := &Deliverer{
		client:      opts.Client,
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.Timeout,
		backoffUnit: opts.BackoffUnit,
		sleep:       opts.Sleep,
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultMaxAttempts
	}
	if d.timeout <= 0 {
		d.timeout = defaultTimeout
	}
	if d.backoffUnit <= 0 {
		d.backoffUnit = defaultBackoffUnit
	}
	if d.sleep == nil {
		d.sleep = sleepContext
	}
	return d
}

// Deliver posts payload to url. An empty url is a successful no-op.
// Attempt n failing waits backoffUnit*n before attempt n+1.
func (d *Deliverer) Deliver(ctx context.Context, url string, payload any) error {
	if url == "" {
		telemetry.Debug("webhook.skipped", map[string]any{"reason": "no url configured"})
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		status, err := d.post(ctx, url, body)
		if err == nil {
			metrics.IncWebhookDelivered()
			telemetry.Info("webhook.delivered", map[string]any{
				"url":     url,
				"status":  status,
				"attempt": attempt,
			})
			return nil
		}
		lastErr = err
		telemetry.Warn("webhook.attempt_failed", map[string]any{
			"url":     url,
			"status":  status,
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt < d.maxAttempts {
			if err := d.sleep(ctx, d.backoffUnit*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	metrics.IncWebhookFailed()
	telemetry.Error("webhook.abandoned", map[string]any{
		"url":      url,
		"attempts": d.maxAttempts,
		"error":    errString(lastErr),
	})
	return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

func (d *Deliverer) post(ctx context.Context, url string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
