// Package engine implements the core of the provisioning workflow:
// a declared resource graph is validated and topologically ordered into an
// immutable Plan, the Plan is executed resource-by-resource against the
// host (each resource consulting its own idempotency check before acting),
// and the outcomes are reduced into a RunReport.
//
// The engine persists nothing between invocations. All memory of prior
// convergence lives in the external systems the resources probe, which is
// why re-running after a partial failure is the repair mechanism: every
// already-converged resource reports Unchanged and only the remainder is
// applied.
package engine
