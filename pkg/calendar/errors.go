package calendar

import (
	"errors"
	"fmt"
)

var (
	ErrStaleRevision  = errors.New("event revision is stale")
	ErrMissingEventID = errors.New("event id is required")
	ErrEventNotFound  = errors.New("event not found")
)

// GatewayError is returned when the remote service fails on a specific
// operation. It carries the calendar and event the operation was about.
type GatewayError struct {
	Op       string
	Calendar string
	EventID  string
	Summary  string
	Err      error
}

func (e *GatewayError) Error() string {
	if e.EventID == "" && e.Summary == "" {
		return fmt.Sprintf("%s on calendar %q: %v", e.Op, e.Calendar, e.Err)
	}
	return fmt.Sprintf("%s event %q (id %q) on calendar %q: %v", e.Op, e.Summary, e.EventID, e.Calendar, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// AmbiguousCalendarError reports a calendar name that resolves to zero or to
// more than one calendar.
type AmbiguousCalendarError struct {
	Name    string
	Matches int
}

func (e *AmbiguousCalendarError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("no calendar named %q", e.Name)
	}
	return fmt.Sprintf("calendar name %q is ambiguous: %d calendars match", e.Name, e.Matches)
}
