package history

import (
	"time"

	"github.com/google/uuid"
)

// Run is the stored summary of one synchronization run.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Source     string
	Target     string
	DryRun     bool
	Added      int
	Updated    int
	Removed    int
	Failed     int
	// Error is set when the run aborted before applying its plan.
	Error    string
	Failures []Failure
}

func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failure records one operation that could not be applied.
type Failure struct {
	Kind    string
	EventID string
	Summary string
	Error   string
}
