package system

import (
	"context"
	"fmt"
	"strings"
)

// UnitState is the coarse activity state of a service unit.
type UnitState string

const (
	UnitRunning UnitState = "running"
	UnitStopped UnitState = "stopped"
	UnitUnknown UnitState = "unknown"
)

// UnitStatus is the observed state of a unit.
type UnitStatus struct {
	State   UnitState
	Enabled bool
}

// Supervisor abstracts the service manager.
type Supervisor interface {
	Status(ctx context.Context, unit string) (UnitStatus, error)
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Enable(ctx context.Context, unit string) error
	Disable(ctx context.Context, unit string) error
}

// Systemd drives systemctl.
type Systemd struct {
	runner CommandRunner
}

// NewSystemd creates a systemctl-backed supervisor.
func NewSystemd(runner CommandRunner) *Systemd {
	return &Systemd{runner: runner}
}

// Status probes the unit's activity and enablement.
func (s *Systemd) Status(ctx context.Context, unit string) (UnitStatus, error) {
	active, err := s.runner.Run(ctx, []string{"systemctl", "is-active", unit}, RunOptions{})
	if err != nil {
		return UnitStatus{}, fmt.Errorf("systemctl is-active %s: %w", unit, err)
	}

	status := UnitStatus{State: UnitUnknown}
	// is-active exits non-zero for anything other than "active"; the
	// printed state still distinguishes stopped from unknown units.
	switch strings.TrimSpace(active.Stdout) {
	case "active", "activating":
		status.State = UnitRunning
	case "inactive", "failed", "deactivating":
		status.State = UnitStopped
	}

	enabled, err := s.runner.Run(ctx, []string{"systemctl", "is-enabled", unit}, RunOptions{})
	if err != nil {
		return UnitStatus{}, fmt.Errorf("systemctl is-enabled %s: %w", unit, err)
	}
	switch strings.TrimSpace(enabled.Stdout) {
	case "enabled", "enabled-runtime", "static", "alias":
		status.Enabled = true
	}

	return status, nil
}

// Start starts the unit.
func (s *Systemd) Start(ctx context.Context, unit string) error {
	return s.systemctl(ctx, "start", unit)
}

// Stop stops the unit.
func (s *Systemd) Stop(ctx context.Context, unit string) error {
	return s.systemctl(ctx, "stop", unit)
}

// Enable enables the unit at boot.
func (s *Systemd) Enable(ctx context.Context, unit string) error {
	return s.systemctl(ctx, "enable", unit)
}

// Disable disables the unit at boot.
func (s *Systemd) Disable(ctx context.Context, unit string) error {
	return s.systemctl(ctx, "disable", unit)
}

func (s *Systemd) systemctl(ctx context.Context, verb, unit string) error {
	res, err := s.runner.Run(ctx, []string{"systemctl", verb, unit}, RunOptions{})
	if err != nil {
		return fmt.Errorf("systemctl %s %s: %w", verb, unit, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("systemctl %s %s: exit %d: %s",
			verb, unit, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}
