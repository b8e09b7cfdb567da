package reconcile

import (
	"slices"

	"github.com/klokku/calsync/pkg/calendar"
)

// OperationKind tells which remote call an Operation makes.
type OperationKind int

const (
	OpAdd OperationKind = iota
	OpUpdate
	OpRemove
)

func (k OperationKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// Operation is one remote call of a plan. Event is the event to create for
// OpAdd, the existing target event for OpRemove and the desired content
// addressed at the target resource for OpUpdate.
type Operation struct {
	Kind  OperationKind
	Event calendar.Event
}

// Plan holds the disjoint add, update and remove groups of one run. It is
// not modified once built; accessors return copies.
type Plan struct {
	add    []calendar.Event
	update []Update
	remove []calendar.Event
}

// NewPlan copies the given groups into a new Plan.
func NewPlan(add []calendar.Event, update []Update, remove []calendar.Event) Plan {
	return Plan{
		add:    slices.Clone(add),
		update: slices.Clone(update),
		remove: slices.Clone(remove),
	}
}

func (p Plan) Adds() []calendar.Event {
	return cloneEvents(p.add)
}

func (p Plan) Updates() []Update {
	updates := make([]Update, len(p.update))
	for i, u := range p.update {
		updates[i] = Update{TargetID: u.TargetID, TargetRevision: u.TargetRevision, Desired: u.Desired.Clone()}
	}
	return updates
}

func (p Plan) Removes() []calendar.Event {
	return cloneEvents(p.remove)
}

func (p Plan) IsEmpty() bool {
	return len(p.add) == 0 && len(p.update) == 0 && len(p.remove) == 0
}

func (p Plan) Len() int {
	return len(p.add) + len(p.update) + len(p.remove)
}

// Operations flattens the plan in add, update, remove order.
func (p Plan) Operations() []Operation {
	ops := make([]Operation, 0, p.Len())
	for _, e := range p.add {
		ops = append(ops, Operation{Kind: OpAdd, Event: e.Clone()})
	}
	for _, u := range p.update {
		ops = append(ops, Operation{Kind: OpUpdate, Event: u.Event()})
	}
	for _, e := range p.remove {
		ops = append(ops, Operation{Kind: OpRemove, Event: e.Clone()})
	}
	return ops
}

func cloneEvents(events []calendar.Event) []calendar.Event {
	cloned := make([]calendar.Event, len(events))
	for i, e := range events {
		cloned[i] = e.Clone()
	}
	return cloned
}
