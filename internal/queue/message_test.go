package queue

import (
	"testing"
	"time"
)

func TestNewMessageEncodesWireNames(t *testing.T) {
	msg := NewMessage("job-123", "tenant-9", "request-456", time.Date(2026, 1, 30, 22, 0, 0, 0, time.FixedZone("x", 3600)))
	if msg.EnqueuedAt != "2026-01-30T21:00:00Z" || msg.Version != MessageVersion {
		t.Fatalf("unexpected message %+v", msg)
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	want := `{"jobId":"job-123","tenantId":"tenant-9","requestId":"request-456","enqueuedAt":"2026-01-30T21:00:00Z","version":1}`
	if string(payload) != want {
		t.Fatalf("unexpected payload %s", payload)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got != msg {
		t.Fatalf("decode mismatch: got %+v want %+v", got, msg)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}
