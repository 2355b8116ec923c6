package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current run message schema version.
const MessageVersion = 1

// Message asks a worker to run (or resume) the generation pipeline for one job.
type Message struct {
	JobID      string `json:"jobId"`
	TenantID   string `json:"tenantId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage builds a run message stamped with the current time.
func NewMessage(jobID, tenantID, requestID string, now time.Time) Message {
	return Message{
		JobID:      jobID,
		TenantID:   tenantID,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
