package calendar

// OrigSourceUIDKey is the shared extended property holding the calendar-wide
// unique identifier of the source event a target event was projected from.
const OrigSourceUIDKey = "origSourceUID"

type Visibility string

const (
	VisibilityDefault      Visibility = "default"
	VisibilityPrivate      Visibility = "private"
	VisibilityPublic       Visibility = "public"
	VisibilityConfidential Visibility = "confidential"
)

// EventTime is an opaque date or date-time as returned by the remote service.
// Values are only compared for equality, never parsed.
type EventTime struct {
	Date     string
	DateTime string
	TimeZone string
}

type Event struct {
	// ID is assigned by the remote service and scoped to one calendar. Empty
	// for events that were not created yet.
	ID string
	// ICalUID is the calendar-wide unique identifier of the event.
	ICalUID     string
	Summary     string
	Description string
	Start       EventTime
	End         EventTime
	Visibility  Visibility
	// Revision is the remote sequence number. It has to be sent back unchanged
	// on update so that the service can reject stale writes.
	Revision   int64
	Provenance map[string]string
	Recurrence []string
}

// SourceUID returns the origSourceUID provenance marker of the event.
func (e Event) SourceUID() (string, bool) {
	uid, ok := e.Provenance[OrigSourceUIDKey]
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

// Clone returns a deep copy of the event, so that maps and slices are not
// shared with the original.
func (e Event) Clone() Event {
	c := e
	if e.Provenance != nil {
		c.Provenance = make(map[string]string, len(e.Provenance))
		for k, v := range e.Provenance {
			c.Provenance[k] = v
		}
	}
	if e.Recurrence != nil {
		c.Recurrence = append([]string(nil), e.Recurrence...)
	}
	return c
}
