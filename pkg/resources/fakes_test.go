package resources

import (
	"context"
	"fmt"

	"github.com/provisor/provisor/pkg/system"
)

// fakeRunner records invocations and replays scripted results keyed by the
// joined argv.
type fakeRunner struct {
	results map[string]system.RunResult
	errs    map[string]error
	calls   [][]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: make(map[string]system.RunResult),
		errs:    make(map[string]error),
	}
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, opts system.RunOptions) (system.RunResult, error) {
	f.calls = append(f.calls, argv)
	key := fmt.Sprint(argv)
	if err, ok := f.errs[key]; ok {
		return system.RunResult{}, err
	}
	return f.results[key], nil
}

type fakePkgMgr struct {
	installed map[string]string
	probeErr  error
	applyErr  error
	installs  []string
}

func newFakePkgMgr() *fakePkgMgr {
	return &fakePkgMgr{installed: make(map[string]string)}
}

func (f *fakePkgMgr) Installed(ctx context.Context, name string) (string, bool, error) {
	if f.probeErr != nil {
		return "", false, f.probeErr
	}
	v, ok := f.installed[name]
	return v, ok, nil
}

func (f *fakePkgMgr) Install(ctx context.Context, name, version string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.installs = append(f.installs, name)
	if version == "" {
		version = "1.0"
	}
	f.installed[name] = version
	return nil
}

type fakeSupervisor struct {
	units    map[string]system.UnitStatus
	probeErr error
	actions  []string
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{units: make(map[string]system.UnitStatus)}
}

func (f *fakeSupervisor) Status(ctx context.Context, unit string) (system.UnitStatus, error) {
	if f.probeErr != nil {
		return system.UnitStatus{}, f.probeErr
	}
	if s, ok := f.units[unit]; ok {
		return s, nil
	}
	return system.UnitStatus{State: system.UnitUnknown}, nil
}

func (f *fakeSupervisor) act(verb, unit string) {
	f.actions = append(f.actions, verb+" "+unit)
	s := f.units[unit]
	switch verb {
	case "start":
		s.State = system.UnitRunning
	case "stop":
		s.State = system.UnitStopped
	case "enable":
		s.Enabled = true
	case "disable":
		s.Enabled = false
	}
	f.units[unit] = s
}

func (f *fakeSupervisor) Start(ctx context.Context, unit string) error {
	f.act("start", unit)
	return nil
}

func (f *fakeSupervisor) Stop(ctx context.Context, unit string) error {
	f.act("stop", unit)
	return nil
}

func (f *fakeSupervisor) Enable(ctx context.Context, unit string) error {
	f.act("enable", unit)
	return nil
}

func (f *fakeSupervisor) Disable(ctx context.Context, unit string) error {
	f.act("disable", unit)
	return nil
}

type fakeCompose struct {
	up       bool
	probeErr error
	upCalls  int
}

func (f *fakeCompose) IsUp(ctx context.Context, projectDir string, services []string) (bool, error) {
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return f.up, nil
}

func (f *fakeCompose) Up(ctx context.Context, projectDir, envFile string) error {
	f.upCalls++
	f.up = true
	return nil
}
