package reconcile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/klokku/calsync/pkg/calendar"
)

// Filter decides which source events are projected and which target events
// were produced by this sync job.
type Filter struct {
	prefix    string
	exclusion *regexp.Regexp
}

// NewFilter compiles the exclusion pattern. An empty pattern excludes nothing.
func NewFilter(prefix string, exclusionPattern string) (*Filter, error) {
	f := &Filter{prefix: prefix}
	if exclusionPattern != "" {
		re, err := regexp.Compile(exclusionPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclusion pattern %q: %w", exclusionPattern, err)
		}
		f.exclusion = re
	}
	return f, nil
}

// IsEligible reports whether a source event may appear in the target: it is
// not private and its summary does not match the exclusion pattern anywhere.
func (f *Filter) IsEligible(event calendar.Event) bool {
	if event.Visibility == calendar.VisibilityPrivate {
		return false
	}
	if f.exclusion != nil && f.exclusion.MatchString(event.Summary) {
		return false
	}
	return true
}

// BelongsToProjection reports whether a target event carries the prefix
// marker. Events a user created directly in the target never do.
func (f *Filter) BelongsToProjection(event calendar.Event) bool {
	return strings.Contains(event.Summary, f.prefix)
}
