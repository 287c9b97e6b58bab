package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestDockerComposeIsUp(t *testing.T) {
	psKey := fmt.Sprint([]string{"docker", "compose", "ps", "--services", "--status", "running"})
	configKey := fmt.Sprint([]string{"docker", "compose", "config", "--services"})

	tests := []struct {
		name     string
		declared []string
		running  string
		config   string
		want     bool
	}{
		{"all declared running", []string{"web", "db"}, "web\ndb\n", "", true},
		{"one declared down", []string{"web", "db"}, "web\n", "", false},
		{"undeclared falls back to config", nil, "web\ndb\n", "web\ndb\n", true},
		{"undeclared with one down", nil, "web\n", "web\ndb\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner()
			runner.results[psKey] = RunResult{Stdout: tt.running}
			runner.results[configKey] = RunResult{Stdout: tt.config}

			up, err := NewDockerCompose(runner).IsUp(context.Background(), "/srv/app", tt.declared)
			if err != nil {
				t.Fatalf("IsUp: %v", err)
			}
			if up != tt.want {
				t.Errorf("up = %v, want %v", up, tt.want)
			}
		})
	}
}

func TestDockerComposeUpLoadsEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("APP_PORT=8080\n"), 0644); err != nil {
		t.Fatal(err)
	}

	recorded := &optionRecordingRunner{}
	if err := NewDockerCompose(recorded).Up(context.Background(), "/srv/app", envFile); err != nil {
		t.Fatalf("Up: %v", err)
	}

	if recorded.opts.Dir != "/srv/app" {
		t.Errorf("project dir not applied: %q", recorded.opts.Dir)
	}
	found := false
	for _, e := range recorded.opts.Env {
		if e == "APP_PORT=8080" {
			found = true
		}
	}
	if !found {
		t.Errorf("env file not loaded into environment: %v", recorded.opts.Env)
	}
}

func TestDockerComposeUpMissingEnvFile(t *testing.T) {
	err := NewDockerCompose(newScriptedRunner()).
		Up(context.Background(), "/srv/app", "/no/such/.env")
	if err == nil {
		t.Fatal("expected error for missing env file")
	}
}

type optionRecordingRunner struct {
	opts RunOptions
}

func (r *optionRecordingRunner) Run(ctx context.Context, argv []string, opts RunOptions) (RunResult, error) {
	r.opts = opts
	return RunResult{}, nil
}
