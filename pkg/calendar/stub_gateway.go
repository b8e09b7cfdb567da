package calendar

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// StubGateway is an in-memory Gateway. It assigns ids and revisions the way
// the remote service does and rejects updates based on a stale revision.
type StubGateway struct {
	mu        sync.Mutex
	calendars []Calendar
	data      map[string]map[string]Event
	order     map[string][]string
	failures  map[string]error
	Calls     []string
}

func NewStubGateway(calendars ...Calendar) *StubGateway {
	g := &StubGateway{
		data:     map[string]map[string]Event{},
		order:    map[string][]string{},
		failures: map[string]error{},
	}
	for _, c := range calendars {
		g.AddCalendar(c)
	}
	return g
}

func (g *StubGateway) AddCalendar(c Calendar) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calendars = append(g.calendars, c)
	if g.data[c.ID] == nil {
		g.data[c.ID] = map[string]Event{}
	}
}

// Seed stores the event as is, keeping its id when set.
func (g *StubGateway) Seed(cal Calendar, event Event) Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	g.store(cal.ID, event)
	return event
}

// FailOn makes the given operation ("create", "update", "delete") fail for
// events with the given summary.
func (g *StubGateway) FailOn(op string, summary string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op+"|"+summary] = err
}

// Events returns a snapshot of the calendar in insertion order.
func (g *StubGateway) Events(cal Calendar) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	events := make([]Event, 0, len(g.order[cal.ID]))
	for _, id := range g.order[cal.ID] {
		events = append(events, g.data[cal.ID][id].Clone())
	}
	return events
}

func (g *StubGateway) FindCalendarByName(ctx context.Context, name string) (Calendar, error) {
	calendars, err := g.ListCalendars(ctx)
	if err != nil {
		return Calendar{}, err
	}
	return MatchCalendarByName(calendars, name)
}

func (g *StubGateway) ListCalendars(_ context.Context) ([]Calendar, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	calendars := append([]Calendar(nil), g.calendars...)
	sort.Slice(calendars, func(i, j int) bool {
		return calendars[i].Summary < calendars[j].Summary
	})
	return calendars, nil
}

func (g *StubGateway) ListUpcomingEvents(_ context.Context, cal Calendar) ([]Event, error) {
	g.mu.Lock()
	g.Calls = append(g.Calls, "list "+cal.Summary)
	_, ok := g.data[cal.ID]
	g.mu.Unlock()
	if !ok {
		return nil, &GatewayError{Op: "list", Calendar: cal.Summary, Err: ErrEventNotFound}
	}
	return g.Events(cal), nil
}

func (g *StubGateway) CreateEvent(_ context.Context, cal Calendar, event Event) (Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "create "+event.Summary)
	if err := g.failure("create", cal, event); err != nil {
		return Event{}, err
	}
	event = event.Clone()
	event.ID = uuid.NewString()
	event.ICalUID = event.ID + "@stub"
	event.Revision = 0
	g.store(cal.ID, event)
	return event.Clone(), nil
}

func (g *StubGateway) UpdateEvent(_ context.Context, cal Calendar, event Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "update "+event.Summary)
	if err := g.failure("update", cal, event); err != nil {
		return err
	}
	if event.ID == "" {
		return &GatewayError{Op: "update", Calendar: cal.Summary, Summary: event.Summary, Err: ErrMissingEventID}
	}
	stored, ok := g.data[cal.ID][event.ID]
	if !ok {
		return &GatewayError{Op: "update", Calendar: cal.Summary, EventID: event.ID, Summary: event.Summary, Err: ErrEventNotFound}
	}
	if event.Revision < stored.Revision {
		return &GatewayError{Op: "update", Calendar: cal.Summary, EventID: event.ID, Summary: event.Summary, Err: ErrStaleRevision}
	}
	event = event.Clone()
	event.ICalUID = stored.ICalUID
	event.Revision = stored.Revision + 1
	g.store(cal.ID, event)
	return nil
}

func (g *StubGateway) DeleteEvent(_ context.Context, cal Calendar, event Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "delete "+event.Summary)
	if err := g.failure("delete", cal, event); err != nil {
		return err
	}
	if event.ID == "" {
		return &GatewayError{Op: "delete", Calendar: cal.Summary, Summary: event.Summary, Err: ErrMissingEventID}
	}
	if _, ok := g.data[cal.ID][event.ID]; !ok {
		return &GatewayError{Op: "delete", Calendar: cal.Summary, EventID: event.ID, Summary: event.Summary, Err: ErrEventNotFound}
	}
	delete(g.data[cal.ID], event.ID)
	ids := g.order[cal.ID]
	for i, id := range ids {
		if id == event.ID {
			g.order[cal.ID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (g *StubGateway) store(calendarID string, event Event) {
	if g.data[calendarID] == nil {
		g.data[calendarID] = map[string]Event{}
	}
	if _, exists := g.data[calendarID][event.ID]; !exists {
		g.order[calendarID] = append(g.order[calendarID], event.ID)
	}
	g.data[calendarID][event.ID] = event
}

func (g *StubGateway) failure(op string, cal Calendar, event Event) error {
	err, ok := g.failures[op+"|"+event.Summary]
	if !ok {
		return nil
	}
	if err == nil {
		err = errors.New("stub failure")
	}
	return &GatewayError{Op: op, Calendar: cal.Summary, EventID: event.ID, Summary: event.Summary, Err: err}
}
