package system

import (
	"context"
	"fmt"
	"testing"
)

func TestSystemdStatusParsing(t *testing.T) {
	activeKey := fmt.Sprint([]string{"systemctl", "is-active", "nginx"})
	enabledKey := fmt.Sprint([]string{"systemctl", "is-enabled", "nginx"})

	tests := []struct {
		name        string
		active      RunResult
		enabled     RunResult
		wantState   UnitState
		wantEnabled bool
	}{
		{"running and enabled",
			RunResult{Stdout: "active\n"}, RunResult{Stdout: "enabled\n"},
			UnitRunning, true},
		{"stopped",
			RunResult{ExitCode: 3, Stdout: "inactive\n"}, RunResult{ExitCode: 1, Stdout: "disabled\n"},
			UnitStopped, false},
		{"failed counts as stopped",
			RunResult{ExitCode: 3, Stdout: "failed\n"}, RunResult{Stdout: "static\n"},
			UnitStopped, true},
		{"unknown unit",
			RunResult{ExitCode: 4, Stdout: "unknown\n"}, RunResult{ExitCode: 1, Stdout: ""},
			UnitUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner()
			runner.results[activeKey] = tt.active
			runner.results[enabledKey] = tt.enabled

			status, err := NewSystemd(runner).Status(context.Background(), "nginx")
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if status.State != tt.wantState {
				t.Errorf("state = %s, want %s", status.State, tt.wantState)
			}
			if status.Enabled != tt.wantEnabled {
				t.Errorf("enabled = %v, want %v", status.Enabled, tt.wantEnabled)
			}
		})
	}
}

func TestSystemdVerbFailure(t *testing.T) {
	runner := newScriptedRunner()
	key := fmt.Sprint([]string{"systemctl", "start", "ghost"})
	runner.results[key] = RunResult{ExitCode: 5, Stderr: "Unit ghost.service not found."}

	err := NewSystemd(runner).Start(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error for failing systemctl verb")
	}
}
