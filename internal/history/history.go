// Package history keeps an audit ledger of reconciliation runs: when each
// ran, what it counted, and where the report artifact landed. It never stores
// records, pairs, or verdicts; reconciliation state lives only in the report.
package history

import (
	"context"
	"time"

	"github.com/sells-group/traceability-cli/internal/model"
)

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Run is one ledger row.
type Run struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Status      Status     `json:"status"`
	Total       int        `json:"total"`
	Linked      int        `json:"linked"`
	Unlinked    int        `json:"unlinked"`
	Perfect     int        `json:"perfect"`
	Suggestions int        `json:"suggestions"`
	Artifact    string     `json:"artifact,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Duration returns how long the run took, zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store defines the run ledger operations.
type Store interface {
	// Record inserts a new running row and returns it.
	Record(ctx context.Context) (*Run, error)
	// Finish finalizes a run: failed when runErr is non-nil, complete
	// otherwise, with the summary counts and artifact path filled in.
	Finish(ctx context.Context, runID string, summary model.Summary, artifact string, runErr error) error
	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
