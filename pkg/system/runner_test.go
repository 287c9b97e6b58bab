package system

import (
	"context"
	"strings"
	"testing"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestExecRunnerNonZeroExitIsNotAnError(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), []string{"sh", "-c", "exit 3"}, RunOptions{})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", res.ExitCode)
	}
}

func TestExecRunnerSpawnFailureIsAnError(t *testing.T) {
	r := NewExecRunner()

	if _, err := r.Run(context.Background(), []string{"/no/such/binary"}, RunOptions{}); err == nil {
		t.Error("expected error for unspawnable command")
	}
	if _, err := r.Run(context.Background(), nil, RunOptions{}); err == nil {
		t.Error("expected error for empty argv")
	}
}

func TestExecRunnerAppliesOptions(t *testing.T) {
	r := NewExecRunner()
	dir := t.TempDir()

	res, err := r.Run(context.Background(),
		[]string{"sh", "-c", "pwd; printf '%s' \"$PROVISOR_TEST\""},
		RunOptions{Dir: dir, Env: []string{"PROVISOR_TEST=wired"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Stdout, dir) {
		t.Errorf("working directory not applied: %q", res.Stdout)
	}
	if !strings.Contains(res.Stdout, "wired") {
		t.Errorf("environment not applied: %q", res.Stdout)
	}
}
