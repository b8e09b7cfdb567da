package reconcile

import (
	"fmt"
	"io"

	"github.com/klokku/calsync/pkg/calendar"
)

var planMarks = map[OperationKind]string{
	OpAdd:    "+",
	OpUpdate: "~",
	OpRemove: "-",
}

// RenderPlan writes the counts of the plan followed by one line per
// operation.
func RenderPlan(w io.Writer, plan Plan) error {
	if _, err := fmt.Fprintf(w, "Events to add = %d, to update = %d, to delete = %d\n",
		len(plan.add), len(plan.update), len(plan.remove)); err != nil {
		return err
	}
	for _, op := range plan.Operations() {
		if _, err := fmt.Fprintf(w, "  %s %s (%s)%s\n",
			planMarks[op.Kind], op.Event.Summary, formatTime(op.Event.Start), formatID(op.Event.ID)); err != nil {
			return err
		}
	}
	return nil
}

// RenderResult writes one line per applied operation and a closing total.
func RenderResult(w io.Writer, result Result) error {
	for _, o := range result.Outcomes {
		status := "OK"
		detail := ""
		if o.Failed() {
			status = "FAILED"
			detail = ": " + o.Err.Error()
		}
		if _, err := fmt.Fprintf(w, "%-6s %-6s %s%s\n", status, o.Operation.Kind, o.Operation.Event.Summary, detail); err != nil {
			return err
		}
	}
	failed := len(result.Failures())
	_, err := fmt.Fprintf(w, "Applied %d of %d operations, %d failed\n",
		len(result.Outcomes)-failed, len(result.Outcomes), failed)
	return err
}

func formatTime(t calendar.EventTime) string {
	if t.DateTime != "" {
		return t.DateTime
	}
	if t.Date != "" {
		return t.Date
	}
	return "no start"
}

func formatID(id string) string {
	if id == "" {
		return ""
	}
	return " id " + id
}
