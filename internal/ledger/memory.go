package ledger

import (
	"context"
	"sync"
)

// MemoryLedger keeps step outputs in process memory.
type MemoryLedger struct {
	mu    sync.RWMutex
	steps map[string]map[string][]byte
}

// NewMemoryLedger constructs a MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{steps: make(map[string]map[string][]byte)}
}

func (l *MemoryLedger) Get(ctx context.Context, runID, step string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out, ok := l.steps[runID][step]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), out...), true, nil
}

func (l *MemoryLedger) Put(ctx context.Context, runID, step string, output []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	run, ok := l.steps[runID]
	if !ok {
		run = make(map[string][]byte)
		l.steps[runID] = run
	}
	if _, exists := run[step]; exists {
		return nil
	}
	run[step] = append([]byte(nil), output...)
	return nil
}

var _ Ledger = (*MemoryLedger)(nil)
