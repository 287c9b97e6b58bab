package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an engine error so the operator knows which
// corrective action applies (fix connectivity, fix the manifest, re-run).
type ErrorKind string

const (
	// ErrProbeUnavailable indicates a collaborator could not be reached
	// during a Check. Distinct from "not yet converged": the observed
	// state is unknown, not divergent.
	ErrProbeUnavailable ErrorKind = "probe_unavailable"

	// ErrApplyFailure indicates a collaborator rejected or failed the
	// mutating action.
	ErrApplyFailure ErrorKind = "apply_failure"

	// ErrTimeout indicates a Check or Apply exceeded its deadline.
	ErrTimeout ErrorKind = "timeout"

	// ErrCycleDetected indicates the declared graph contains a cycle.
	// Planning-time: nothing has been mutated.
	ErrCycleDetected ErrorKind = "cycle_detected"

	// ErrUnknownDependency indicates a dependsOn entry names a resource
	// not present in the graph. Planning-time: nothing has been mutated.
	ErrUnknownDependency ErrorKind = "unknown_dependency"

	// ErrIO indicates a local filesystem operation failed, e.g. the
	// atomic rename of a staged file.
	ErrIO ErrorKind = "io"

	// ErrValidation indicates a malformed graph or resource declaration.
	ErrValidation ErrorKind = "validation"

	// ErrCancelled indicates the run-wide cancellation signal fired
	// before the resource was attempted.
	ErrCancelled ErrorKind = "cancelled"
)

// IsPlanning reports whether the kind is a planning-time error, meaning the
// run aborted before any external state was touched.
func (k ErrorKind) IsPlanning() bool {
	return k == ErrCycleDetected || k == ErrUnknownDependency || k == ErrValidation
}

// EngineError is the single error type crossing the engine's boundaries.
// It carries the kind taxonomy, the resource it is attributed to, and the
// wrapped cause.
type EngineError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Resource is the resource ID the error is attributed to, if any.
	Resource string `json:"resource,omitempty"`

	// Cycle is the witness cycle for ErrCycleDetected, in edge order.
	Cycle []string `json:"cycle,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if e.Resource != "" {
		fmt.Fprintf(&b, " (resource=%s)", e.Resource)
	}
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Cycle, " -> "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches engine errors by kind, so callers can write
// errors.Is(err, &EngineError{Kind: ErrTimeout}).
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates an engine error of the given kind.
func NewError(kind ErrorKind, message string, err error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Err: err}
}

// WithResource attributes the error to a resource.
func (e *EngineError) WithResource(id string) *EngineError {
	e.Resource = id
	return e
}

// KindOf extracts the error kind from an error chain.
// Unclassified errors report ErrApplyFailure, the catch-all for
// collaborator failures.
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrApplyFailure
}

// AsEngineError coerces any error into an *EngineError, wrapping
// unclassified errors with the given default kind.
func AsEngineError(err error, kind ErrorKind) *EngineError {
	if err == nil {
		return nil
	}
	var e *EngineError
	if errors.As(err, &e) {
		return e
	}
	return NewError(kind, err.Error(), err)
}
