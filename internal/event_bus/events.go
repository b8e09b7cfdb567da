package event_bus

import "time"

const (
	RunStartedType       EventType = "sync.run.started"
	PlanComputedType     EventType = "sync.plan.computed"
	OperationAppliedType EventType = "sync.operation.applied"
	RunFinishedType      EventType = "sync.run.finished"
)

type RunStarted struct {
	RunID     string
	Source    string
	Target    string
	StartedAt time.Time
}

type PlanComputed struct {
	RunID   string
	Adds    int
	Updates int
	Removes int
	DryRun  bool
}

// OperationApplied reports the outcome of one remote call. Err is nil on
// success.
type OperationApplied struct {
	Calendar  string
	Kind      string
	EventID   string
	Summary   string
	SourceUID string
	Err       error
}

type RunFinished struct {
	RunID      string
	FinishedAt time.Time
	// Err is set when the run stopped before the plan was applied.
	Err error
}
