package reconcile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klokku/calsync/pkg/calendar"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func reportPlan() Plan {
	return NewPlan(
		[]calendar.Event{withUID(calendar.Event{Summary: "[sync] Standup", Start: t1, End: t2}, "A")},
		[]Update{{
			TargetID:       "T1",
			TargetRevision: 2,
			Desired:        withUID(calendar.Event{Summary: "[sync] Retro", Start: calendar.EventTime{Date: "2026-01-06"}}, "B"),
		}},
		[]calendar.Event{withUID(calendar.Event{ID: "T99", Summary: "[sync] Gone", Start: t0}, "Z")},
	)
}

func TestRenderPlan(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPlan(&buf, reportPlan()))
	newGolden(t).Assert(t, "plan", buf.Bytes())
}

func TestRenderPlan_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPlan(&buf, Plan{}))
	newGolden(t).Assert(t, "plan_empty", buf.Bytes())
}

func TestRenderResult(t *testing.T) {
	ops := reportPlan().Operations()
	result := Result{Outcomes: []Outcome{
		{Operation: ops[0], Created: calendar.Event{ID: "N1"}},
		{Operation: ops[1], Err: &calendar.GatewayError{
			Op: "update", Calendar: "Target", EventID: "T1", Summary: "[sync] Retro", Err: calendar.ErrStaleRevision,
		}},
		{Operation: ops[2]},
		{Operation: Operation{Kind: OpRemove, Event: calendar.Event{ID: "T7", Summary: "[sync] Other"}}, Err: errors.New("backend error")},
	}}

	var buf bytes.Buffer
	require.NoError(t, RenderResult(&buf, result))
	newGolden(t).Assert(t, "result", buf.Bytes())
}
