package reconcile

import "github.com/klokku/calsync/pkg/calendar"

// Update replaces an existing target event in place with the desired content.
type Update struct {
	TargetID       string
	TargetRevision int64
	Desired        calendar.Event
}

// Event is the desired content addressed at the existing target resource.
func (u Update) Event() calendar.Event {
	e := u.Desired.Clone()
	e.ID = u.TargetID
	e.Revision = u.TargetRevision
	return e
}

// DetectChange compares the payload of a projected candidate with its
// existing target copy. Only summary, description, start and end count;
// provenance and revision are bookkeeping.
func DetectChange(existing calendar.Event, candidate calendar.Event) (Update, bool) {
	if existing.Summary == candidate.Summary &&
		existing.Description == candidate.Description &&
		existing.Start == candidate.Start &&
		existing.End == candidate.End {
		return Update{}, false
	}
	return Update{
		TargetID:       existing.ID,
		TargetRevision: existing.Revision,
		Desired:        candidate.Clone(),
	}, true
}
