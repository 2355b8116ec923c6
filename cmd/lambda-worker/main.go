package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"resume-pdf-api/internal/bootstrap"
	"resume-pdf-api/internal/shared/config"
	"resume-pdf-api/internal/shared/metrics"
	"resume-pdf-api/internal/shared/telemetry"
	"resume-pdf-api/internal/workerproc"
)

const notifyFlushTimeout = 20 * time.Second

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	telemetry.SetLevel(cfg.LogLevel)
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncWorkerMessageReceived()
		err := workerproc.HandleMessage(ctx, bootstrap.RunnerOf(app), record.Body)
		switch {
		case err == nil:
			metrics.IncWorkerMessageCompleted()
		case workerproc.Unrecoverable(err):
			metrics.IncWorkerMessageUnrecoverable()
			telemetry.Error("worker.message.unrecoverable", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
		default:
			metrics.IncWorkerMessageFailed()
			telemetry.Error("worker.message.failed", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	// The sandbox may freeze once the handler returns; deliver notifications first.
	flushCtx, cancel := context.WithTimeout(ctx, notifyFlushTimeout)
	defer cancel()
	if err := app.Notifier.Flush(flushCtx); err != nil {
		telemetry.Warn("worker.notify_flush_incomplete", map[string]any{"error": err.Error()})
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	lambda.Start(handler)
}
