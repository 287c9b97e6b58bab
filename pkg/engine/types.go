package engine

import (
	"context"
	"time"
)

// Resource is a named, typed unit of desired state. Implementations live in
// pkg/resources; the engine only sees this contract.
//
// Check must be a read-only probe of the backing system: it never mutates
// anything, which is what makes dry-run a safe variant of a real run.
// Apply performs the minimal action to converge observed state to declared
// state and must itself be idempotent: calling it when already converged
// succeeds without side effects, independent of the engine skipping it.
type Resource interface {
	// ID is the unique stable identity of the resource within a run.
	ID() string

	// Kind is the resource kind name (package, file, service, ...).
	Kind() string

	// DependsOn lists the IDs of resources that must reach a terminal
	// success state before this one is attempted.
	DependsOn() []string

	// Identity names the external thing this resource mutates (a file
	// path, a package name, a unit name). Two resources sharing an
	// identity are never applied concurrently.
	Identity() string

	// Check probes the collaborator and reports whether observed state
	// already matches declared state. A collaborator that cannot be
	// reached is an error of kind ErrProbeUnavailable, not "diverged".
	Check(ctx context.Context) (Observation, error)

	// Apply converges the external state to the declared state.
	Apply(ctx context.Context) error
}

// Observation is the result of a convergence probe.
type Observation struct {
	// Converged reports whether observed state matches declared state.
	Converged bool

	// Pending describes the action Apply would take when not converged,
	// e.g. "install docker.io" or "write /etc/app.conf". Used verbatim
	// by dry-run and plan output.
	Pending string
}

// Tolerant is implemented by resource kinds whose failures may be declared
// tolerable (the command kind's bestEffort flag). A tolerated failure is
// recorded in the report but does not cascade skips or fail the run.
type Tolerant interface {
	BestEffort() bool
}

// OutcomeKind enumerates the terminal per-resource results.
type OutcomeKind string

const (
	// OutcomeUnchanged means the idempotency check reported the observed
	// state already matched the declared state.
	OutcomeUnchanged OutcomeKind = "unchanged"

	// OutcomeApplied means Apply ran and converged the resource.
	OutcomeApplied OutcomeKind = "applied"

	// OutcomeFailed means Check or Apply failed; Reason carries why.
	OutcomeFailed OutcomeKind = "failed"

	// OutcomeSkipped means the resource was never attempted; Reason
	// carries the cause (a failed dependency id, or run cancellation).
	OutcomeSkipped OutcomeKind = "skipped"
)

// Outcome is the terminal result of one resource within a run.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// Reason is the failure reason or skip cause; empty for
	// unchanged/applied outcomes outside dry-run.
	Reason string `json:"reason,omitempty"`

	// Tolerated marks a failure on a best-effort resource. It stays
	// visible in the report but does not affect dependents or the
	// overall run status.
	Tolerated bool `json:"tolerated,omitempty"`
}

// ok reports whether the outcome counts as success for dependents and for
// the overall status reduction.
func (o Outcome) ok() bool {
	switch o.Kind {
	case OutcomeUnchanged, OutcomeApplied:
		return true
	case OutcomeFailed:
		return o.Tolerated
	default:
		return false
	}
}

// StepResult is one line of the run report.
type StepResult struct {
	// ResourceID is the resource this result belongs to.
	ResourceID string `json:"resource_id"`

	// ResourceKind is the resource kind, for rendering and metrics.
	ResourceKind string `json:"resource_kind"`

	// Outcome is the terminal result.
	Outcome Outcome `json:"outcome"`

	// Duration is the elapsed wall time for check+apply. Zero for
	// skipped resources, which are never invoked.
	Duration time.Duration `json:"duration"`

	// Err is the classified error for failed outcomes.
	Err *EngineError `json:"error,omitempty"`
}

// RunStatus is the overall result of a run, reduced from the step results.
type RunStatus string

const (
	// RunSuccess means every resource converged (unchanged or applied);
	// tolerated best-effort failures do not break success.
	RunSuccess RunStatus = "success"

	// RunFailed means at least one resource failed (untolerated) or was
	// skipped because of an upstream failure.
	RunFailed RunStatus = "failed"

	// RunCancelled means the run-wide cancellation signal fired before
	// the plan completed.
	RunCancelled RunStatus = "cancelled"
)

// RunReport is the ordered record of a run: one StepResult per plan step, in
// plan order regardless of execution concurrency, plus the reduced status.
type RunReport struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// PlanID identifies the plan that was executed.
	PlanID string `json:"plan_id"`

	// DryRun marks a report produced without mutating anything.
	DryRun bool `json:"dry_run"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration"`

	// Results holds one entry per plan step, in plan order.
	Results []StepResult `json:"results"`

	// Status is the overall run status.
	Status RunStatus `json:"status"`
}

// Summary counts outcomes by kind.
type Summary struct {
	Total     int `json:"total"`
	Unchanged int `json:"unchanged"`
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Summarize tallies the report's outcomes.
func (r *RunReport) Summarize() Summary {
	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Outcome.Kind {
		case OutcomeUnchanged:
			s.Unchanged++
		case OutcomeApplied:
			s.Applied++
		case OutcomeFailed:
			s.Failed++
		case OutcomeSkipped:
			s.Skipped++
		}
	}
	return s
}
