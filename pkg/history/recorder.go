package history

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/klokku/calsync/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// Recorder builds a Run out of the events published during a sync and stores
// it once the run finishes. Runs are expected to be sequential.
type Recorder struct {
	repo Repository

	mu      sync.Mutex
	current *Run

	unsubscribe []func()
}

func NewRecorder(repo Repository, bus *event_bus.EventBus) *Recorder {
	r := &Recorder{repo: repo}
	r.unsubscribe = []func(){
		event_bus.SubscribeTyped(bus, event_bus.RunStartedType, r.onRunStarted),
		event_bus.SubscribeTyped(bus, event_bus.PlanComputedType, r.onPlanComputed),
		event_bus.SubscribeTyped(bus, event_bus.OperationAppliedType, r.onOperationApplied),
		event_bus.SubscribeTyped(bus, event_bus.RunFinishedType, r.onRunFinished),
	}
	return r
}

// Close detaches the recorder from the bus.
func (r *Recorder) Close() {
	for _, u := range r.unsubscribe {
		u()
	}
}

func (r *Recorder) onRunStarted(e event_bus.EventT[event_bus.RunStarted]) error {
	id, err := uuid.Parse(e.Data.RunID)
	if err != nil {
		log.Warnf("Run id %q is not a UUID, recording under a new one", e.Data.RunID)
		id = uuid.New()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		log.Warnf("Run %s never finished, dropping it from history", r.current.ID)
	}
	r.current = &Run{
		ID:        id,
		StartedAt: e.Data.StartedAt,
		Source:    e.Data.Source,
		Target:    e.Data.Target,
	}
	return nil
}

func (r *Recorder) onPlanComputed(e event_bus.EventT[event_bus.PlanComputed]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.DryRun = e.Data.DryRun
	}
	return nil
}

func (r *Recorder) onOperationApplied(e event_bus.EventT[event_bus.OperationApplied]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	op := e.Data
	if op.Err != nil {
		r.current.Failed++
		r.current.Failures = append(r.current.Failures, Failure{
			Kind:    op.Kind,
			EventID: op.EventID,
			Summary: op.Summary,
			Error:   op.Err.Error(),
		})
		return nil
	}
	switch op.Kind {
	case "add":
		r.current.Added++
	case "update":
		r.current.Updated++
	case "remove":
		r.current.Removed++
	}
	return nil
}

func (r *Recorder) onRunFinished(e event_bus.EventT[event_bus.RunFinished]) error {
	r.mu.Lock()
	run := r.current
	r.current = nil
	r.mu.Unlock()
	if run == nil {
		return errors.New("run finished without having started")
	}

	run.FinishedAt = e.Data.FinishedAt
	if e.Data.Err != nil {
		run.Error = e.Data.Err.Error()
	}
	if err := r.repo.StoreRun(e.Context(), *run); err != nil {
		return err
	}
	log.Debugf("Recorded run %s", run.ID)
	return nil
}
