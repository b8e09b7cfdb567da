package reconcile

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/klokku/calsync/pkg/calendar"
)

// KeyFunc derives the equivalence key of an event. Events are the same
// logical event iff both keys are present and equal.
type KeyFunc func(calendar.Event) (string, bool)

// ProvenanceKey matches events by their origSourceUID marker.
func ProvenanceKey(event calendar.Event) (string, bool) {
	return event.SourceUID()
}

// ContentHashKey matches events by summary and time span. It needs no
// provenance marker, at the price of treating a moved event as a new one.
func ContentHashKey(event calendar.Event) (string, bool) {
	if event.Summary == "" {
		return "", false
	}
	h := sha256.New()
	for _, part := range []string{
		event.Summary,
		event.Start.Date, event.Start.DateTime, event.Start.TimeZone,
		event.End.Date, event.End.DateTime, event.End.TimeZone,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), true
}

// Matcher pairs events that stand for the same logical event.
type Matcher struct {
	key KeyFunc
}

// NewMatcher matches on key, or on ProvenanceKey when key is nil.
func NewMatcher(key KeyFunc) *Matcher {
	if key == nil {
		key = ProvenanceKey
	}
	return &Matcher{key: key}
}

// Key returns the equivalence key of event.
func (m *Matcher) Key(event calendar.Event) (string, bool) {
	return m.key(event)
}

// Find returns the first event equivalent to candidate.
func (m *Matcher) Find(events []calendar.Event, candidate calendar.Event) (calendar.Event, bool) {
	key, ok := m.key(candidate)
	if !ok {
		return calendar.Event{}, false
	}
	for _, e := range events {
		if k, ok := m.key(e); ok && k == key {
			return e, true
		}
	}
	return calendar.Event{}, false
}

// Index is a lookup table over a set of events. On duplicate keys the first
// event wins, which gives the same answer as Find.
type Index struct {
	key    KeyFunc
	events map[string]calendar.Event
}

// Index builds a lookup table over events.
func (m *Matcher) Index(events []calendar.Event) *Index {
	idx := &Index{key: m.key, events: make(map[string]calendar.Event, len(events))}
	for _, e := range events {
		k, ok := m.key(e)
		if !ok {
			continue
		}
		if _, exists := idx.events[k]; !exists {
			idx.events[k] = e
		}
	}
	return idx
}

// Find returns the indexed event equivalent to candidate.
func (i *Index) Find(candidate calendar.Event) (calendar.Event, bool) {
	k, ok := i.key(candidate)
	if !ok {
		return calendar.Event{}, false
	}
	e, ok := i.events[k]
	return e, ok
}
