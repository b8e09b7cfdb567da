package reconcile

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/klokku/calsync/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = calendar.EventTime{DateTime: "2026-01-05T08:45:00Z"}
	t1 = calendar.EventTime{DateTime: "2026-01-05T09:00:00Z"}
	t2 = calendar.EventTime{DateTime: "2026-01-05T09:15:00Z"}
)

func withUID(e calendar.Event, uid string) calendar.Event {
	if uid != "" {
		e.Provenance = map[string]string{calendar.OrigSourceUIDKey: uid}
	}
	return e
}

func newTestReconciler(t *testing.T, pattern string) *Reconciler {
	t.Helper()
	r, err := NewReconciler(Options{Prefix: "[sync]", ExclusionPattern: pattern})
	require.NoError(t, err)
	return r
}

func TestReconcile_Add(t *testing.T) {
	r := newTestReconciler(t, "")
	source := []calendar.Event{{ICalUID: "A", Summary: "Standup", Start: t1, End: t2, Visibility: calendar.VisibilityDefault}}

	plan := r.Reconcile(source, nil)

	require.Len(t, plan.Adds(), 1)
	added := plan.Adds()[0]
	assert.Equal(t, "[sync] Standup", added.Summary)
	assert.Equal(t, map[string]string{calendar.OrigSourceUIDKey: "A"}, added.Provenance)
	assert.Empty(t, added.ID)
	assert.Empty(t, plan.Updates())
	assert.Empty(t, plan.Removes())
}

func TestReconcile_DeleteStale(t *testing.T) {
	r := newTestReconciler(t, "")
	stale := withUID(calendar.Event{ID: "T99", Summary: "[sync] Standup"}, "A")

	plan := r.Reconcile(nil, []calendar.Event{stale})

	assert.Empty(t, plan.Adds())
	assert.Empty(t, plan.Updates())
	assert.Equal(t, []calendar.Event{stale}, plan.Removes())
}

func TestReconcile_NoOp(t *testing.T) {
	r := newTestReconciler(t, "")
	source := []calendar.Event{{ICalUID: "A", Summary: "Standup", Start: t1, End: t2}}
	target := []calendar.Event{withUID(calendar.Event{
		ID:          "T1",
		Summary:     "[sync] Standup",
		Description: DefaultDescription,
		Start:       t1,
		End:         t2,
	}, "A")}

	plan := r.Reconcile(source, target)

	assert.True(t, plan.IsEmpty())
}

func TestReconcile_Update(t *testing.T) {
	r := newTestReconciler(t, "")
	source := []calendar.Event{{ICalUID: "A", Summary: "Standup", Start: t1, End: t2}}
	target := []calendar.Event{withUID(calendar.Event{
		ID:          "T1",
		Summary:     "[sync] Standup",
		Description: DefaultDescription,
		Start:       t0,
		End:         t2,
		Revision:    4,
	}, "A")}

	plan := r.Reconcile(source, target)

	assert.Empty(t, plan.Adds())
	assert.Empty(t, plan.Removes())
	require.Len(t, plan.Updates(), 1)
	e := plan.Updates()[0].Event()
	assert.Equal(t, "[sync] Standup", e.Summary)
	assert.Equal(t, t1, e.Start)
	assert.Equal(t, t2, e.End)
	assert.Equal(t, "T1", e.ID)
	assert.Equal(t, int64(4), e.Revision)
}

func TestReconcile_EdgeCases(t *testing.T) {
	r := newTestReconciler(t, "(?i)lunch")
	owned := withUID(calendar.Event{ID: "T1", Summary: "[sync] Standup"}, "A")
	foreign := calendar.Event{ID: "T2", Summary: "Dentist"}

	t.Run("empty source removes every owned event and leaves foreign ones", func(t *testing.T) {
		plan := r.Reconcile(nil, []calendar.Event{owned, foreign})
		assert.Empty(t, plan.Adds())
		assert.Empty(t, plan.Updates())
		assert.Equal(t, []calendar.Event{owned}, plan.Removes())
	})

	t.Run("empty target adds every eligible event", func(t *testing.T) {
		source := []calendar.Event{
			{ICalUID: "A", Summary: "Standup"},
			{ICalUID: "B", Summary: "Retro"},
			{ICalUID: "C", Summary: "Team lunch"},
			{ICalUID: "D", Summary: "Doctor", Visibility: calendar.VisibilityPrivate},
		}
		plan := r.Reconcile(source, nil)
		assert.Empty(t, plan.Removes())
		assert.Empty(t, plan.Updates())
		require.Len(t, plan.Adds(), 2)
		assert.Equal(t, "[sync] Standup", plan.Adds()[0].Summary)
		assert.Equal(t, "[sync] Retro", plan.Adds()[1].Summary)
	})

	t.Run("excluded event never projected is invisible", func(t *testing.T) {
		plan := r.Reconcile([]calendar.Event{{ICalUID: "C", Summary: "Team lunch"}}, []calendar.Event{foreign})
		assert.True(t, plan.IsEmpty())
	})

	t.Run("previously synced, now filtered out is removed", func(t *testing.T) {
		synced := withUID(calendar.Event{ID: "T3", Summary: "[sync] Lunch with Bob", Description: DefaultDescription}, "L")
		source := []calendar.Event{{ICalUID: "L", Summary: "Lunch with Bob"}}

		plan := r.Reconcile(source, []calendar.Event{synced})

		assert.Empty(t, plan.Adds())
		assert.Empty(t, plan.Updates())
		assert.Equal(t, []calendar.Event{synced}, plan.Removes())
	})

	t.Run("previously synced, now private is removed", func(t *testing.T) {
		synced := withUID(calendar.Event{ID: "T4", Summary: "[sync] Doctor", Description: DefaultDescription}, "D")
		source := []calendar.Event{{ICalUID: "D", Summary: "Doctor", Visibility: calendar.VisibilityPrivate}}

		plan := r.Reconcile(source, []calendar.Event{synced})

		assert.Equal(t, []calendar.Event{synced}, plan.Removes())
	})

	t.Run("owned event without marker is removed", func(t *testing.T) {
		unmarked := calendar.Event{ID: "T5", Summary: "[sync] copied by hand"}
		plan := r.Reconcile(nil, []calendar.Event{unmarked})
		assert.Equal(t, []calendar.Event{unmarked}, plan.Removes())
	})
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	r := newTestReconciler(t, "")
	source := []calendar.Event{{ID: "S1", ICalUID: "A", Summary: "Standup", Start: t1, End: t2}}
	target := []calendar.Event{withUID(calendar.Event{ID: "T1", Summary: "[sync] Standup", Start: t0, End: t2, Revision: 2}, "A")}

	plan := r.Reconcile(source, target)
	require.Len(t, plan.Updates(), 1)

	assert.Equal(t, "S1", source[0].ID)
	assert.Equal(t, "Standup", source[0].Summary)
	assert.Nil(t, source[0].Provenance)
	assert.Equal(t, t0, target[0].Start)

	// the plan hands out copies
	updates := plan.Updates()
	updates[0].Desired.Summary = "tampered"
	assert.Equal(t, "[sync] Standup", plan.Updates()[0].Desired.Summary)
}

func TestReconcile_Idempotence(t *testing.T) {
	ctx := context.Background()
	targetCal := calendar.Calendar{ID: "target", Summary: "Target"}
	gateway := calendar.NewStubGateway(targetCal)
	gateway.Seed(targetCal, calendar.Event{Summary: "Dentist"})
	gateway.Seed(targetCal, withUID(calendar.Event{Summary: "[sync] Gone"}, "Z"))
	gateway.Seed(targetCal, withUID(calendar.Event{Summary: "[sync] Old title", Description: DefaultDescription, Start: t1, End: t2}, "B"))

	r := newTestReconciler(t, "lunch")
	source := []calendar.Event{
		{ICalUID: "A", Summary: "Standup", Start: t1, End: t2},
		{ICalUID: "B", Summary: "Retro", Start: t1, End: t2},
		{ICalUID: "C", Summary: "lunch", Start: t1, End: t2},
	}

	first := r.Reconcile(source, gateway.Events(targetCal))
	assert.Len(t, first.Adds(), 1)
	assert.Len(t, first.Updates(), 1)
	assert.Len(t, first.Removes(), 1)

	result := NewExecutor(gateway, nil, 2).Apply(ctx, targetCal, first)
	require.NoError(t, result.Err())

	second := r.Reconcile(source, gateway.Events(targetCal))
	assert.True(t, second.IsEmpty(), "second run must be a no-op, got %d operations", second.Len())

	summaries := make([]string, 0)
	for _, e := range gateway.Events(targetCal) {
		summaries = append(summaries, e.Summary)
	}
	assert.ElementsMatch(t, []string{"Dentist", "[sync] Retro", "[sync] Standup"}, summaries)
}

func TestReconcile_RepeatedRunsSettle(t *testing.T) {
	testCases := []struct {
		name      string
		source    []calendar.Event
		wantTitle []string
	}{
		{
			name: "recurring master and modified instance share an iCalUID",
			source: []calendar.Event{
				{ID: "R", ICalUID: "R", Summary: "Weekly", Start: t1, End: t2, Recurrence: []string{"RRULE:FREQ=WEEKLY"}},
				{ID: "R_1", ICalUID: "R", Summary: "Weekly (moved)", Start: t0, End: t2},
			},
			wantTitle: []string{"[sync] Weekly"},
		},
		{
			name: "event without iCalUID is never mirrored",
			source: []calendar.Event{
				{ID: "S1", Summary: "Orphan", Start: t1, End: t2},
				{ID: "S2", ICalUID: "A", Summary: "Standup", Start: t1, End: t2},
			},
			wantTitle: []string{"[sync] Standup"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			targetCal := calendar.Calendar{ID: "target", Summary: "Target"}
			gateway := calendar.NewStubGateway(targetCal)
			r := newTestReconciler(t, "")
			executor := NewExecutor(gateway, nil, 2)

			first := r.Reconcile(tc.source, gateway.Events(targetCal))
			require.NoError(t, executor.Apply(ctx, targetCal, first).Err())

			for run := 2; run <= 4; run++ {
				plan := r.Reconcile(tc.source, gateway.Events(targetCal))
				assert.True(t, plan.IsEmpty(), "run %d: %d operations", run, plan.Len())
				require.NoError(t, executor.Apply(ctx, targetCal, plan).Err())
			}

			summaries := make([]string, 0)
			for _, e := range gateway.Events(targetCal) {
				summaries = append(summaries, e.Summary)
			}
			assert.Equal(t, tc.wantTitle, summaries)
		})
	}
}

func TestReconcile_DuplicateOwnedCopiesAreKept(t *testing.T) {
	r := newTestReconciler(t, "")
	source := []calendar.Event{{ICalUID: "A", Summary: "Standup", Start: t1, End: t2}}
	first := withUID(calendar.Event{ID: "T1", Summary: "[sync] Standup", Description: DefaultDescription, Start: t1, End: t2}, "A")
	second := withUID(calendar.Event{ID: "T2", Summary: "[sync] Standup", Description: DefaultDescription, Start: t0, End: t2}, "A")

	plan := r.Reconcile(source, []calendar.Event{first, second})

	assert.True(t, plan.IsEmpty())
}

func TestReconcile_Disjointness(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	r := newTestReconciler(t, "skip")
	times := []calendar.EventTime{t0, t1, t2}

	for round := 0; round < 50; round++ {
		var source, target []calendar.Event
		sourceLen, targetLen := rnd.Intn(12), rnd.Intn(12)
		for i := 0; i < sourceLen; i++ {
			uid := fmt.Sprintf("U%d", rnd.Intn(8))
			summary := []string{"Standup", "Retro", "skip me"}[rnd.Intn(3)]
			visibility := []calendar.Visibility{calendar.VisibilityDefault, calendar.VisibilityPrivate}[rnd.Intn(2)]
			source = append(source, calendar.Event{ICalUID: uid, Summary: summary, Start: times[rnd.Intn(3)], End: t2, Visibility: visibility})
		}
		for i := 0; i < targetLen; i++ {
			uid := fmt.Sprintf("U%d", rnd.Intn(8))
			summary := []string{"[sync] Standup", "[sync] Retro", "Foreign"}[rnd.Intn(3)]
			target = append(target, withUID(calendar.Event{ID: fmt.Sprintf("T%d", i), Summary: summary, Description: DefaultDescription, Start: times[rnd.Intn(3)], End: t2}, uid))
		}

		plan := r.Reconcile(source, target)

		addKeys := map[string]bool{}
		for _, e := range plan.Adds() {
			uid, ok := e.SourceUID()
			require.True(t, ok)
			addKeys[uid] = true
		}
		for _, u := range plan.Updates() {
			uid, _ := u.Desired.SourceUID()
			assert.False(t, addKeys[uid], "round %d: %s both added and updated", round, uid)
			assert.NotEmpty(t, u.TargetID)
		}
		for _, e := range plan.Removes() {
			assert.NotEmpty(t, e.ID, "removed events come from the target")
			assert.Contains(t, e.Summary, "[sync]")
			if uid, ok := e.SourceUID(); ok {
				assert.False(t, addKeys[uid], "round %d: %s both added and removed", round, uid)
			}
		}
	}
}

func TestNewReconciler_RequiresPrefix(t *testing.T) {
	_, err := NewReconciler(Options{})
	assert.Error(t, err)
}
