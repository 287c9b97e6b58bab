package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provisor/provisor/pkg/telemetry"
)

// Policy is the run-wide failure policy.
type Policy int

const (
	// FailFast skips everything not yet started once a resource fails.
	FailFast Policy = iota

	// ContinueOnError skips only the failed resource's dependency
	// subtree; independent branches keep going.
	ContinueOnError
)

// Options configures an Executor.
type Options struct {
	// Policy is the failure policy. Defaults to FailFast.
	Policy Policy

	// DryRun replaces every Apply with a no-op that records the action
	// the resource would take. Checks still run; nothing is mutated.
	DryRun bool

	// Parallelism bounds concurrent resource execution. Values <= 1
	// select the sequential baseline.
	Parallelism int

	// ResourceTimeout bounds each Check and Apply call. Zero disables
	// the deadline. Exceeding it is recorded as a Timeout failure.
	ResourceTimeout time.Duration

	// Logger receives per-step structured logs. Optional.
	Logger *telemetry.Logger

	// Metrics receives per-step and per-run observations. Optional.
	Metrics *telemetry.Metrics
}

// Executor applies an ordered Plan and produces a RunReport. It holds no
// state between runs; all memory of prior convergence lives in the external
// systems the resources probe.
type Executor struct {
	opts Options
	log  *telemetry.Logger
}

// NewExecutor creates an executor with the given options.
func NewExecutor(opts Options) *Executor {
	log := opts.Logger
	if log == nil {
		log = telemetry.Nop()
	}
	return &Executor{opts: opts, log: log.Component("executor")}
}

// skip causes surfaced in reports.
const (
	causeCancelled = "run cancelled"
)

// Execute runs the plan to completion and returns the report. Report slots
// follow plan order regardless of execution concurrency. Execute never
// returns an error: every per-resource failure is recorded in the report,
// which is what makes a partial run safe to re-run.
func (e *Executor) Execute(ctx context.Context, plan *Plan) *RunReport {
	report := &RunReport{
		RunID:     uuid.New().String(),
		PlanID:    plan.ID,
		DryRun:    e.opts.DryRun,
		StartedAt: time.Now(),
		Results:   make([]StepResult, len(plan.Steps)),
	}

	log := e.log.WithRunID(report.RunID)
	log.Info().
		Int("steps", len(plan.Steps)).
		Bool("dry_run", e.opts.DryRun).
		Int("parallelism", e.opts.Parallelism).
		Msg("run started")

	st := newRunState()
	if e.opts.Parallelism > 1 {
		e.executeLevels(ctx, plan, st, report)
	} else {
		for i, r := range plan.Steps {
			report.Results[i] = e.dispatch(ctx, r, st)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	report.Status = reduceStatus(report)
	e.opts.Metrics.ObserveRun(string(report.Status), report.Duration)

	log.Info().
		Str("status", string(report.Status)).
		Dur("duration", report.Duration).
		Msg("run finished")

	return report
}

// executeLevels runs independent steps of each topological level
// concurrently. Dependencies always sit in earlier levels, so outcome
// lookups within a level are race-free; two steps sharing a target identity
// are serialized by a keyed lock.
func (e *Executor) executeLevels(ctx context.Context, plan *Plan, st *runState, report *RunReport) {
	sem := make(chan struct{}, e.opts.Parallelism)
	locks := newIdentityLocks()

	for _, level := range plan.Levels() {
		var wg sync.WaitGroup
		for _, idx := range level {
			wg.Add(1)
			go func(i int, r Resource) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				if cause, skip := st.skipCause(ctx, r, e.opts.Policy); skip {
					report.Results[i] = e.recordSkip(r, cause, st)
					return
				}

				unlock := locks.lock(r.Identity())
				res := e.runStep(ctx, r)
				unlock()

				st.finish(r.ID(), res.Outcome, e.opts.Policy)
				report.Results[i] = res
			}(idx, plan.Steps[idx])
		}
		wg.Wait()
	}
}

// dispatch executes one step of the sequential baseline.
func (e *Executor) dispatch(ctx context.Context, r Resource, st *runState) StepResult {
	if cause, skip := st.skipCause(ctx, r, e.opts.Policy); skip {
		return e.recordSkip(r, cause, st)
	}

	res := e.runStep(ctx, r)
	st.finish(r.ID(), res.Outcome, e.opts.Policy)
	return res
}

// recordSkip records a skipped step without invoking the resource.
func (e *Executor) recordSkip(r Resource, cause string, st *runState) StepResult {
	res := StepResult{
		ResourceID:   r.ID(),
		ResourceKind: r.Kind(),
		Outcome:      Outcome{Kind: OutcomeSkipped, Reason: cause},
	}
	st.finish(r.ID(), res.Outcome, e.opts.Policy)

	e.log.WithResourceID(r.ID()).Warn().
		Str("cause", cause).
		Msg("resource skipped")

	e.opts.Metrics.ObserveStep(r.Kind(), string(OutcomeSkipped), 0)
	return res
}

// runStep performs the check-then-apply cycle for a single resource.
// Mutation is confined to the Apply call: the check path never touches
// external state, which is what keeps dry-run honest.
func (e *Executor) runStep(ctx context.Context, r Resource) StepResult {
	start := time.Now()
	log := e.log.WithResourceID(r.ID())
	res := StepResult{ResourceID: r.ID(), ResourceKind: r.Kind()}

	checkCtx, cancel := e.stepContext(ctx, false)
	obs, err := r.Check(checkCtx)
	checkCtxErr := checkCtx.Err()
	cancel()

	switch {
	case err != nil:
		res.Err = classify(err, checkCtxErr, ErrProbeUnavailable).WithResource(r.ID())
		res.Outcome = failureOutcome(r, res.Err)
		log.Error().Err(res.Err).Msg("check failed")

	case obs.Converged:
		res.Outcome = Outcome{Kind: OutcomeUnchanged}
		log.Debug().Msg("already converged")

	case e.opts.DryRun:
		res.Outcome = Outcome{Kind: OutcomeApplied, Reason: obs.Pending}
		log.Info().Str("pending", obs.Pending).Msg("would apply")

	default:
		// A mid-flight apply is allowed to finish on cancellation:
		// package installs and file renames are not safely
		// interruptible. The deadline still holds.
		applyCtx, cancel := e.stepContext(ctx, true)
		applyErr := r.Apply(applyCtx)
		applyCtxErr := applyCtx.Err()
		cancel()

		if applyErr != nil {
			res.Err = classify(applyErr, applyCtxErr, ErrApplyFailure).WithResource(r.ID())
			res.Outcome = failureOutcome(r, res.Err)
			log.Error().Err(res.Err).Msg("apply failed")
		} else {
			res.Outcome = Outcome{Kind: OutcomeApplied}
			log.Info().Str("action", obs.Pending).Msg("applied")
		}
	}

	res.Duration = time.Since(start)
	e.opts.Metrics.ObserveStep(r.Kind(), string(res.Outcome.Kind), res.Duration)
	return res
}

// stepContext derives the per-call context. detach severs the run-wide
// cancellation signal (used for Apply) while keeping the timeout.
func (e *Executor) stepContext(ctx context.Context, detach bool) (context.Context, context.CancelFunc) {
	base := ctx
	if detach {
		base = context.WithoutCancel(ctx)
	}
	if e.opts.ResourceTimeout > 0 {
		return context.WithTimeout(base, e.opts.ResourceTimeout)
	}
	return context.WithCancel(base)
}

// classify maps an error to its engine kind: deadline expiry is always a
// Timeout, anything unclassified gets the provided default. ctxErr is the
// step context's state after the call returned; exec-backed resources
// surface a kill as their own process error rather than propagating the
// context error, so the context is consulted too.
func classify(err, ctxErr error, def ErrorKind) *EngineError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctxErr, context.DeadlineExceeded) {
		return NewError(ErrTimeout, "deadline exceeded", err)
	}
	return AsEngineError(err, def)
}

// failureOutcome builds the Failed outcome, honoring best-effort tolerance.
func failureOutcome(r Resource, err *EngineError) Outcome {
	o := Outcome{Kind: OutcomeFailed, Reason: err.Error()}
	if t, ok := r.(Tolerant); ok && t.BestEffort() {
		o.Tolerated = true
	}
	return o
}

// reduceStatus derives the overall run status from the step results.
func reduceStatus(report *RunReport) RunStatus {
	cancelled := false
	failed := false
	for _, res := range report.Results {
		if res.Outcome.ok() {
			continue
		}
		failed = true
		if res.Outcome.Kind == OutcomeSkipped && res.Outcome.Reason == causeCancelled {
			cancelled = true
		}
	}
	switch {
	case cancelled:
		return RunCancelled
	case failed:
		return RunFailed
	default:
		return RunSuccess
	}
}

// runState tracks per-resource outcomes during execution. The outcome map
// is the only shared mutable state; a single mutex serializes it when
// concurrent levels are enabled.
type runState struct {
	mu        sync.Mutex
	outcomes  map[string]Outcome
	abortedBy string
}

func newRunState() *runState {
	return &runState{outcomes: make(map[string]Outcome)}
}

// finish records a terminal outcome and, under FailFast, latches the first
// untolerated failure as the run abort cause.
func (s *runState) finish(id string, o Outcome, policy Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[id] = o
	if policy == FailFast && o.Kind == OutcomeFailed && !o.Tolerated && s.abortedBy == "" {
		s.abortedBy = id
	}
}

// skipCause decides whether a resource must be skipped before invocation,
// returning the user-visible cause. Dependency causes win over the run-wide
// abort so a dependent is always attributed to its own failed upstream.
func (s *runState) skipCause(ctx context.Context, r Resource, policy Policy) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dep := range r.DependsOn() {
		if o, ok := s.outcomes[dep]; ok && !o.ok() {
			switch o.Kind {
			case OutcomeFailed:
				return fmt.Sprintf("dependency failed: %s", dep), true
			case OutcomeSkipped:
				return fmt.Sprintf("dependency skipped: %s", dep), true
			}
		}
	}

	if ctx.Err() != nil {
		return causeCancelled, true
	}

	if policy == FailFast && s.abortedBy != "" {
		return fmt.Sprintf("run aborted: %s failed", s.abortedBy), true
	}

	return "", false
}

// identityLocks serializes steps that mutate the same external identity.
type identityLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{m: make(map[string]*sync.Mutex)}
}

func (l *identityLocks) lock(key string) func() {
	l.mu.Lock()
	mu, ok := l.m[key]
	if !ok {
		mu = &sync.Mutex{}
		l.m[key] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
