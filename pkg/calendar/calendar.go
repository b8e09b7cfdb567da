package calendar

import "context"

type Calendar struct {
	ID      string
	Summary string
}

// Gateway is the remote calendar service the sync engine talks to.
type Gateway interface {
	// FindCalendarByName returns the only calendar whose summary equals name.
	// It fails with *AmbiguousCalendarError on zero or several matches.
	FindCalendarByName(ctx context.Context, name string) (Calendar, error)
	// ListCalendars returns every calendar visible to the authorized user.
	ListCalendars(ctx context.Context) ([]Calendar, error)
	// ListUpcomingEvents returns all events of the calendar from now on.
	ListUpcomingEvents(ctx context.Context, cal Calendar) ([]Event, error)
	CreateEvent(ctx context.Context, cal Calendar, event Event) (Event, error)
	UpdateEvent(ctx context.Context, cal Calendar, event Event) error
	DeleteEvent(ctx context.Context, cal Calendar, event Event) error
}

// MatchCalendarByName picks the single calendar named name, used by gateways
// that list calendars first and filter locally.
func MatchCalendarByName(calendars []Calendar, name string) (Calendar, error) {
	var found []Calendar
	for _, c := range calendars {
		if c.Summary == name {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return Calendar{}, &AmbiguousCalendarError{Name: name, Matches: len(found)}
	}
	return found[0], nil
}
