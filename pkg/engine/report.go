package engine

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Process exit codes. Planning errors mean nothing was touched; execution
// failures mean partial state was applied and is recorded in the report, so
// a re-run resumes where the failure happened.
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitPlanningFailed  = 2
)

// ExitCode derives the process exit status from the report.
func (r *RunReport) ExitCode() int {
	if r.Status == RunSuccess {
		return ExitSuccess
	}
	return ExitExecutionFailed
}

// Render writes the deterministic textual summary: one line per resource in
// plan order, then the outcome tally. For every declared resource the line
// answers exactly one of: already satisfied, changed, failed with reason,
// or skipped because of an upstream failure.
func (r *RunReport) Render(w io.Writer) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	for _, res := range r.Results {
		outcome := string(res.Outcome.Kind)
		if res.Outcome.Kind == OutcomeApplied && r.DryRun {
			outcome = "would apply"
		}
		if res.Outcome.Tolerated {
			outcome += " (tolerated)"
		}

		detail := res.Outcome.Reason
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			res.ResourceID, outcome, res.Duration.Round(durationPrecision), detail)
	}
	tw.Flush()

	s := r.Summarize()
	fmt.Fprintf(w, "\n%s: %d unchanged, %d applied, %d failed, %d skipped\n",
		r.Status, s.Unchanged, s.Applied, s.Failed, s.Skipped)
}

const durationPrecision = 1e6 // milliseconds
