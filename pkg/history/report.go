package history

import (
	"fmt"
	"io"
	"time"
)

// RenderRuns writes one line per run followed by its failures.
func RenderRuns(w io.Writer, runs []Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}
	for _, run := range runs {
		mode := ""
		if run.DryRun {
			mode = " (dry run)"
		}
		if _, err := fmt.Fprintf(w, "%s %s -> %s%s: +%d ~%d -%d, %d failed in %s\n",
			run.StartedAt.UTC().Format(time.RFC3339), run.Source, run.Target, mode,
			run.Added, run.Updated, run.Removed, run.Failed, run.Duration().Round(time.Millisecond)); err != nil {
			return err
		}
		if run.Error != "" {
			if _, err := fmt.Fprintf(w, "    aborted: %s\n", run.Error); err != nil {
				return err
			}
		}
		for _, f := range run.Failures {
			if _, err := fmt.Fprintf(w, "    %s %s: %s\n", f.Kind, f.Summary, f.Error); err != nil {
				return err
			}
		}
	}
	return nil
}
