package reconcile

import (
	"context"
	"errors"

	"github.com/klokku/calsync/internal/event_bus"
	"github.com/klokku/calsync/pkg/calendar"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// Outcome is the result of one operation. Created is set for successful adds.
type Outcome struct {
	Operation Operation
	Created   calendar.Event
	Err       error
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Result lists the outcomes of an applied plan in plan order.
type Result struct {
	Outcomes []Outcome
}

// Count returns how many operations of the given kind were applied
// successfully.
func (r Result) Count(kind OperationKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Operation.Kind == kind && !o.Failed() {
			n++
		}
	}
	return n
}

func (r Result) Failures() []Outcome {
	var failures []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failures = append(failures, o)
		}
	}
	return failures
}

// Err joins the error of every failed operation, nil when all succeeded.
func (r Result) Err() error {
	var errs []error
	for _, o := range r.Failures() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

type Executor struct {
	gateway     calendar.Gateway
	bus         *event_bus.EventBus
	concurrency int
}

func NewExecutor(gateway calendar.Gateway, bus *event_bus.EventBus, concurrency int) *Executor {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Executor{gateway: gateway, bus: bus, concurrency: concurrency}
}

// Apply performs every operation of the plan against the target calendar.
// Operations are independent: a failing one is recorded and the others are
// still attempted.
func (x *Executor) Apply(ctx context.Context, target calendar.Calendar, plan Plan) Result {
	ops := plan.Operations()
	outcomes := make([]Outcome, len(ops))

	var g errgroup.Group
	g.SetLimit(x.concurrency)
	for i, op := range ops {
		g.Go(func() error {
			outcomes[i] = x.apply(ctx, target, op)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Outcomes: outcomes}
	x.publish(ctx, target, result)
	return result
}

func (x *Executor) apply(ctx context.Context, target calendar.Calendar, op Operation) Outcome {
	outcome := Outcome{Operation: op}
	switch op.Kind {
	case OpAdd:
		outcome.Created, outcome.Err = x.gateway.CreateEvent(ctx, target, op.Event)
	case OpUpdate:
		outcome.Err = x.gateway.UpdateEvent(ctx, target, op.Event)
	case OpRemove:
		outcome.Err = x.gateway.DeleteEvent(ctx, target, op.Event)
	}
	if outcome.Err != nil {
		log.Errorf("Failed to %s event %q in calendar %s: %v", op.Kind, op.Event.Summary, target.Summary, outcome.Err)
	} else {
		log.Debugf("Event %q: %s done", op.Event.Summary, op.Kind)
	}
	return outcome
}

func (x *Executor) publish(ctx context.Context, target calendar.Calendar, result Result) {
	if x.bus == nil {
		return
	}
	for _, o := range result.Outcomes {
		id := o.Operation.Event.ID
		if o.Operation.Kind == OpAdd {
			id = o.Created.ID
		}
		sourceUID, _ := o.Operation.Event.SourceUID()
		err := x.bus.Publish(event_bus.NewEvent(ctx, event_bus.OperationAppliedType, event_bus.OperationApplied{
			Calendar:  target.Summary,
			Kind:      o.Operation.Kind.String(),
			EventID:   id,
			Summary:   o.Operation.Event.Summary,
			SourceUID: sourceUID,
			Err:       o.Err,
		}))
		if err != nil {
			log.Warnf("Outcome subscriber failed: %v", err)
		}
	}
}
