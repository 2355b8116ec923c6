package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resume-pdf-api/internal/jobs"
	"resume-pdf-api/internal/pipeline"
	"resume-pdf-api/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeRunner struct {
	err error
}

func (f fakeRunner) Run(ctx context.Context, jobID, tenantID string) error {
	return f.err
}

func sqsMessage(t *testing.T, id string, body string) sqstypes.Message {
	t.Helper()
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func runMessage(t *testing.T, jobID, tenantID string) string {
	t.Helper()
	b, err := queue.EncodeMessage(queue.Message{JobID: jobID, TenantID: tenantID, RequestID: "req-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(b)
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	handleMessage(context.Background(), client, "queue", fakeRunner{}, sqsMessage(t, "m1", runMessage(t, "job-1", "tenant-1")))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	handleMessage(context.Background(), client, "queue", fakeRunner{err: errors.New("db down")}, sqsMessage(t, "m2", runMessage(t, "job-2", "tenant-1")))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesUnrecoverable(t *testing.T) {
	cases := map[string]struct {
		body   string
		runErr error
	}{
		"invalid json":  {body: "{bad-json"},
		"missing id":    {body: runMessage(t, "", "tenant-1")},
		"unknown job":   {body: runMessage(t, "job-x", "tenant-1"), runErr: &pipeline.NotFoundError{Err: jobs.ErrNotFound}},
		"empty payload": {body: ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client := &fakeSQS{}
			handleMessage(context.Background(), client, "queue", fakeRunner{err: tc.runErr}, sqsMessage(t, "m3", tc.body))
			if len(client.deleted) != 1 {
				t.Fatalf("expected delete, got %d", len(client.deleted))
			}
		})
	}
}
