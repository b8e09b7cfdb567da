package reconcile

import (
	"errors"

	"github.com/klokku/calsync/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

// Options configures a Reconciler.
type Options struct {
	// Prefix tags projected summaries and identifies owned target events.
	Prefix string
	// ExclusionPattern is a regular expression matched against source
	// summaries; matching events are not projected.
	ExclusionPattern string
	// Description replaces the description of projected events.
	Description string
	// Key overrides the equivalence key, ProvenanceKey by default.
	Key KeyFunc
}

// Reconciler turns a source and a target snapshot into a Plan.
type Reconciler struct {
	filter  *Filter
	tagger  *Tagger
	matcher *Matcher
}

// NewReconciler validates opts and compiles the exclusion pattern.
func NewReconciler(opts Options) (*Reconciler, error) {
	if opts.Prefix == "" {
		return nil, errors.New("prefix marker is required")
	}
	filter, err := NewFilter(opts.Prefix, opts.ExclusionPattern)
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		filter:  filter,
		tagger:  NewTagger(opts.Prefix, opts.Description),
		matcher: NewMatcher(opts.Key),
	}, nil
}

// Reconcile computes what has to change in the target so that its owned
// events become the projection of the eligible source events.
func (r *Reconciler) Reconcile(source []calendar.Event, target []calendar.Event) Plan {
	projected := make([]calendar.Event, 0, len(source))
	seen := make(map[string]bool, len(source))
	for _, e := range source {
		if !r.filter.IsEligible(e) {
			continue
		}
		candidate := r.tagger.Project(e)
		key, ok := r.matcher.Key(candidate)
		if !ok {
			log.Debugf("Skipping source event %q (%s): no match key", e.Summary, e.ID)
			continue
		}
		// recurring masters and their modified instances share an iCalUID,
		// only the first one is mirrored
		if seen[key] {
			log.Debugf("Skipping source event %q (%s): duplicate match key", e.Summary, e.ID)
			continue
		}
		seen[key] = true
		projected = append(projected, candidate)
	}
	owned := make([]calendar.Event, 0, len(target))
	for _, e := range target {
		if r.filter.BelongsToProjection(e) {
			owned = append(owned, e)
		}
	}
	log.Debugf("Reconciling %d eligible of %d source events against %d owned of %d target events",
		len(projected), len(source), len(owned), len(target))

	ownedIndex := r.matcher.Index(owned)
	projectedIndex := r.matcher.Index(projected)

	var add []calendar.Event
	var update []Update
	for _, candidate := range projected {
		existing, found := ownedIndex.Find(candidate)
		if !found {
			add = append(add, candidate)
			continue
		}
		if u, changed := DetectChange(existing, candidate); changed {
			update = append(update, u)
		}
	}

	var remove []calendar.Event
	for _, e := range owned {
		if _, found := projectedIndex.Find(e); !found {
			remove = append(remove, e)
		}
	}

	return NewPlan(add, update, remove)
}
