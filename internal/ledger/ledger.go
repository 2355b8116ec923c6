// Package ledger memoizes pipeline step outputs keyed by run and step name,
// so a re-dispatched run resumes after its last completed step.
package ledger

import "context"

// Ledger stores step outputs. Put keeps the first output written for a
// (runID, step) pair; later writes for the same pair are ignored.
type Ledger interface {
	Get(ctx context.Context, runID, step string) (output []byte, ok bool, err error)
	Put(ctx context.Context, runID, step string, output []byte) error
}
