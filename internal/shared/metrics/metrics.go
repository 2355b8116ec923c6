package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal   atomic.Uint64
	runsCompletedTotal atomic.Uint64
	runsFailedTotal    atomic.Uint64
	stepMemoizedTotal  atomic.Uint64

	webhookDeliveriesTotal atomic.Uint64
	webhookFailuresTotal   atomic.Uint64
	emailsSentTotal        atomic.Uint64
	emailsFailedTotal      atomic.Uint64

	workerMessagesReceivedTotal      atomic.Uint64
	workerMessagesCompletedTotal     atomic.Uint64
	workerMessagesFailedTotal        atomic.Uint64
	workerMessagesUnrecoverableTotal atomic.Uint64

	runDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncRunStarted increments the pipeline runs started counter.
func IncRunStarted() {
	runsStartedTotal.Add(1)
}

// IncRunCompleted increments the pipeline runs completed counter.
func IncRunCompleted() {
	runsCompletedTotal.Add(1)
}

// IncRunFailed increments the pipeline runs failed counter.
func IncRunFailed() {
	runsFailedTotal.Add(1)
}

// IncStepMemoized counts steps skipped because the ledger already held their output.
func IncStepMemoized() {
	stepMemoizedTotal.Add(1)
}

// IncWebhookDelivered counts successful webhook deliveries.
func IncWebhookDelivered() {
	webhookDeliveriesTotal.Add(1)
}

// IncWebhookFailed counts abandoned webhook deliveries.
func IncWebhookFailed() {
	webhookFailuresTotal.Add(1)
}

func IncEmailSent() {
	emailsSentTotal.Add(1)
}

func IncEmailFailed() {
	emailsFailedTotal.Add(1)
}

// IncWorkerMessageReceived counts queue messages picked up by a worker.
func IncWorkerMessageReceived() {
	workerMessagesReceivedTotal.Add(1)
}

// IncWorkerMessageCompleted counts queue messages processed and deleted.
func IncWorkerMessageCompleted() {
	workerMessagesCompletedTotal.Add(1)
}

// IncWorkerMessageFailed counts queue messages left for redelivery.
func IncWorkerMessageFailed() {
	workerMessagesFailedTotal.Add(1)
}

// IncWorkerMessageUnrecoverable counts queue messages deleted without processing.
func IncWorkerMessageUnrecoverable() {
	workerMessagesUnrecoverableTotal.Add(1)
}

// ObserveRunDurationMs records a pipeline run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "pipeline_runs_started_total", "Total pipeline runs started", runsStartedTotal.Load())
	writeCounter(&buf, "pipeline_runs_completed_total", "Total pipeline runs completed", runsCompletedTotal.Load())
	writeCounter(&buf, "pipeline_runs_failed_total", "Total pipeline runs failed", runsFailedTotal.Load())
	writeCounter(&buf, "pipeline_step_memoized_total", "Total pipeline steps served from the run ledger", stepMemoizedTotal.Load())
	writeCounter(&buf, "webhook_deliveries_total", "Total webhook deliveries", webhookDeliveriesTotal.Load())
	writeCounter(&buf, "webhook_failures_total", "Total abandoned webhook deliveries", webhookFailuresTotal.Load())
	writeCounter(&buf, "emails_sent_total", "Total completion emails sent", emailsSentTotal.Load())
	writeCounter(&buf, "emails_failed_total", "Total completion emails abandoned", emailsFailedTotal.Load())
	writeCounter(&buf, "worker_messages_received_total", "Total queue messages received", workerMessagesReceivedTotal.Load())
	writeCounter(&buf, "worker_messages_completed_total", "Total queue messages processed", workerMessagesCompletedTotal.Load())
	writeCounter(&buf, "worker_messages_failed_total", "Total queue messages left for redelivery", workerMessagesFailedTotal.Load())
	writeCounter(&buf, "worker_messages_unrecoverable_total", "Total queue messages deleted as unrecoverable", workerMessagesUnrecoverableTotal.Load())
	writeHistogram(&buf, "pipeline_run_duration_ms", "Pipeline run duration in milliseconds", runDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed time since start in milliseconds.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
