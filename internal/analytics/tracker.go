package analytics

import (
	"context"
	"sync"
	"time"

	"resume-pdf-api/internal/shared/telemetry"
)

// Store persists analytics events.
type Store interface {
	Insert(ctx context.Context, e Event) error
}

// Tracker records events best-effort: a failed insert is logged and dropped.
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker constructs a Tracker. A nil store makes Track a no-op.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Track records e. It never returns an error to the caller.
func (t *Tracker) Track(ctx context.Context, e Event) {
	if t == nil || t.store == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now().UTC()
	}
	if err := t.store.Insert(ctx, e); err != nil {
		telemetry.Warn("analytics.track_failed", map[string]any{
			"event":     e.Name,
			"tenant_id": e.TenantID,
			"job_id":    e.JobID,
			"error":     err,
		})
		return
	}
	telemetry.Debug("analytics.tracked", map[string]any{"event": e.Name, "tenant_id": e.TenantID})
}

// MemoryStore keeps events in memory.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the recorded events, optionally filtered by name.
func (s *MemoryStore) Events(name string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if name == "" || e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
