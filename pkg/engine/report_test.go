package engine

import (
	"strings"
	"testing"
	"time"
)

func sampleReport() *RunReport {
	return &RunReport{
		RunID:  "run-1",
		PlanID: "plan-1",
		Status: RunFailed,
		Results: []StepResult{
			{ResourceID: "pkg", ResourceKind: "package",
				Outcome: Outcome{Kind: OutcomeUnchanged}, Duration: 12 * time.Millisecond},
			{ResourceID: "conf", ResourceKind: "file",
				Outcome: Outcome{Kind: OutcomeApplied}, Duration: 3 * time.Millisecond},
			{ResourceID: "svc", ResourceKind: "service",
				Outcome: Outcome{Kind: OutcomeFailed, Reason: "unit not found"}},
			{ResourceID: "stack", ResourceKind: "compose",
				Outcome: Outcome{Kind: OutcomeSkipped, Reason: "dependency failed: svc"}},
		},
	}
}

func TestRenderListsEveryResource(t *testing.T) {
	var sb strings.Builder
	sampleReport().Render(&sb)
	out := sb.String()

	for _, want := range []string{"pkg", "conf", "svc", "stack",
		"unchanged", "applied", "failed", "unit not found", "dependency failed: svc"} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "1 unchanged, 1 applied, 1 failed, 1 skipped") {
		t.Errorf("missing summary line:\n%s", out)
	}
}

func TestRenderDryRunSaysWouldApply(t *testing.T) {
	r := &RunReport{
		DryRun: true,
		Status: RunSuccess,
		Results: []StepResult{
			{ResourceID: "conf", Outcome: Outcome{Kind: OutcomeApplied, Reason: "write /etc/app.conf"}},
		},
	}

	var sb strings.Builder
	r.Render(&sb)

	if !strings.Contains(sb.String(), "would apply") {
		t.Errorf("dry-run output must say 'would apply':\n%s", sb.String())
	}
}

func TestRenderMarksToleratedFailures(t *testing.T) {
	r := &RunReport{
		Status: RunSuccess,
		Results: []StepResult{
			{ResourceID: "warmup", Outcome: Outcome{Kind: OutcomeFailed, Tolerated: true, Reason: "exit 3"}},
		},
	}

	var sb strings.Builder
	r.Render(&sb)

	if !strings.Contains(sb.String(), "(tolerated)") {
		t.Errorf("tolerated failure must be marked:\n%s", sb.String())
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   int
	}{
		{RunSuccess, ExitSuccess},
		{RunFailed, ExitExecutionFailed},
		{RunCancelled, ExitExecutionFailed},
	}

	for _, tt := range tests {
		r := &RunReport{Status: tt.status}
		if got := r.ExitCode(); got != tt.want {
			t.Errorf("status %s: expected exit %d, got %d", tt.status, tt.want, got)
		}
	}
}

func TestSummarize(t *testing.T) {
	s := sampleReport().Summarize()
	if s.Total != 4 || s.Unchanged != 1 || s.Applied != 1 || s.Failed != 1 || s.Skipped != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}
