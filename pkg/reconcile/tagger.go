package reconcile

import "github.com/klokku/calsync/pkg/calendar"

// DefaultDescription replaces the description of projected events unless
// another one is configured.
const DefaultDescription = "see details in original event"

// Tagger projects source events into their target form.
type Tagger struct {
	prefix      string
	description string
}

// NewTagger falls back to DefaultDescription for an empty description.
func NewTagger(prefix string, description string) *Tagger {
	if description == "" {
		description = DefaultDescription
	}
	return &Tagger{prefix: prefix, description: description}
}

// Project returns the form the source event takes in the target calendar.
// The source event is left untouched.
func (t *Tagger) Project(source calendar.Event) calendar.Event {
	var recurrence []string
	if source.Recurrence != nil {
		recurrence = append([]string(nil), source.Recurrence...)
	}
	return calendar.Event{
		Summary:     t.prefix + " " + source.Summary,
		Description: t.description,
		Start:       source.Start,
		End:         source.End,
		Visibility:  source.Visibility,
		Recurrence:  recurrence,
		Provenance: map[string]string{
			calendar.OrigSourceUIDKey: source.ICalUID,
		},
	}
}
