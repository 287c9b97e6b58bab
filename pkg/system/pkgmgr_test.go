package system

import (
	"context"
	"fmt"
	"testing"
)

// scriptedRunner replays canned results keyed by the joined argv.
type scriptedRunner struct {
	results map[string]RunResult
	errs    map[string]error
	calls   [][]string
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{
		results: make(map[string]RunResult),
		errs:    make(map[string]error),
	}
}

func (s *scriptedRunner) Run(ctx context.Context, argv []string, opts RunOptions) (RunResult, error) {
	s.calls = append(s.calls, argv)
	key := fmt.Sprint(argv)
	if err, ok := s.errs[key]; ok {
		return RunResult{}, err
	}
	return s.results[key], nil
}

func TestAptInstalledParsesDpkgStatus(t *testing.T) {
	query := fmt.Sprint([]string{"dpkg-query", "-W", "-f=${db:Status-Status} ${Version}", "nginx"})

	tests := []struct {
		name        string
		result      RunResult
		wantOK      bool
		wantVersion string
	}{
		{"installed", RunResult{Stdout: "installed 1.24.0-2ubuntu7"}, true, "1.24.0-2ubuntu7"},
		{"removed but configured", RunResult{Stdout: "config-files 1.24.0-2ubuntu7"}, false, ""},
		{"unknown package", RunResult{ExitCode: 1, Stderr: "no packages found"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner()
			runner.results[query] = tt.result

			mgr := NewAptManager(runner)
			version, ok, err := mgr.Installed(context.Background(), "nginx")
			if err != nil {
				t.Fatalf("Installed: %v", err)
			}
			if ok != tt.wantOK || version != tt.wantVersion {
				t.Errorf("got (%q, %v), want (%q, %v)", version, ok, tt.wantVersion, tt.wantOK)
			}
		})
	}
}

func TestAptInstallPinsVersion(t *testing.T) {
	runner := newScriptedRunner()
	mgr := NewAptManager(runner)

	if err := mgr.Install(context.Background(), "nginx", "1.24.0-2"); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(runner.calls))
	}
	argv := runner.calls[0]
	if argv[len(argv)-1] != "nginx=1.24.0-2" {
		t.Errorf("version pin not passed: %v", argv)
	}
}

func TestAptInstallSurfacesFailure(t *testing.T) {
	runner := newScriptedRunner()
	key := fmt.Sprint([]string{"apt-get", "install", "-y", "--no-install-recommends", "ghost"})
	runner.results[key] = RunResult{ExitCode: 100, Stderr: "E: Unable to locate package ghost"}

	mgr := NewAptManager(runner)
	err := mgr.Install(context.Background(), "ghost", "")
	if err == nil {
		t.Fatal("expected install failure")
	}
}

func TestDnfInstalledParsesRpmQuery(t *testing.T) {
	query := fmt.Sprint([]string{"rpm", "-q", "--queryformat", "%{VERSION}-%{RELEASE}", "nginx"})

	runner := newScriptedRunner()
	runner.results[query] = RunResult{Stdout: "1.24.0-1.fc40"}

	mgr := NewDnfManager(runner)
	version, ok, err := mgr.Installed(context.Background(), "nginx")
	if err != nil {
		t.Fatalf("Installed: %v", err)
	}
	if !ok || version != "1.24.0-1.fc40" {
		t.Errorf("got (%q, %v)", version, ok)
	}

	runner.results[query] = RunResult{ExitCode: 1, Stdout: "package nginx is not installed"}
	_, ok, err = mgr.Installed(context.Background(), "nginx")
	if err != nil {
		t.Fatalf("Installed: %v", err)
	}
	if ok {
		t.Error("non-zero rpm exit must mean not installed")
	}
}
