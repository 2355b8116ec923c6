package workerproc

import (
	"context"
	"errors"
	"testing"

	"resume-pdf-api/internal/jobs"
	"resume-pdf-api/internal/pipeline"
	"resume-pdf-api/internal/queue"
)

type fakeRunner struct {
	err      error
	jobID    string
	tenantID string
	reqID    string
}

func (f *fakeRunner) Run(ctx context.Context, jobID, tenantID string) error {
	f.jobID, f.tenantID = jobID, tenantID
	f.reqID = pipeline.RequestIDFromContext(ctx)
	return f.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	b, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(b)
}

func TestHandleMessageRunsJob(t *testing.T) {
	r := &fakeRunner{}
	body := encode(t, queue.Message{JobID: "job-1", TenantID: "tenant-1", RequestID: "req-1"})

	if err := HandleMessage(context.Background(), r, body); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if r.jobID != "job-1" || r.tenantID != "tenant-1" || r.reqID != "req-1" {
		t.Fatalf("unexpected run args: %+v", r)
	}
}

func TestHandleMessageErrors(t *testing.T) {
	cases := []struct {
		name          string
		body          string
		runErr        error
		unrecoverable bool
	}{
		{"empty", "  ", nil, true},
		{"bad json", "{bad", nil, true},
		{"missing job", encode(t, queue.Message{TenantID: "t"}), nil, true},
		{"missing tenant", encode(t, queue.Message{JobID: "j"}), nil, true},
		{"unknown job", encode(t, queue.Message{JobID: "j", TenantID: "t"}), &pipeline.NotFoundError{Err: jobs.ErrNotFound}, true},
		{"run error", encode(t, queue.Message{JobID: "j", TenantID: "t"}), errors.New("db down"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := HandleMessage(context.Background(), &fakeRunner{err: tc.runErr}, tc.body)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := Unrecoverable(err); got != tc.unrecoverable {
				t.Fatalf("Unrecoverable(%v) = %v, want %v", err, got, tc.unrecoverable)
			}
		})
	}
}

func TestComputeMeta(t *testing.T) {
	if m := ComputeMeta(""); m.BodyLen != 0 || m.BodySHA != "" {
		t.Fatalf("empty meta = %+v", m)
	}
	if m := ComputeMeta("abc"); m.BodyLen != 3 || len(m.BodySHA) != 64 {
		t.Fatalf("meta = %+v", m)
	}
}
