package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/system"
)

// Service converges a supervised unit to a desired activity state and,
// optionally, boot enablement.
type Service struct {
	base
	unit    string
	state   system.UnitState
	enabled *bool
	sup     system.Supervisor
}

// NewService declares a service resource. unit defaults to the resource
// name; state defaults to running. enabled nil means enablement is left
// alone.
func NewService(name string, deps []string, unit string, state system.UnitState, enabled *bool, sup system.Supervisor) *Service {
	if unit == "" {
		unit = name
	}
	if state == "" {
		state = system.UnitRunning
	}
	return &Service{
		base:    base{name: name, deps: deps},
		unit:    unit,
		state:   state,
		enabled: enabled,
		sup:     sup,
	}
}

func (s *Service) Kind() string     { return KindService }
func (s *Service) Identity() string { return identity(KindService, s.unit) }

// Check probes the supervisor for the unit's current state.
func (s *Service) Check(ctx context.Context) (engine.Observation, error) {
	status, err := s.sup.Status(ctx, s.unit)
	if err != nil {
		return engine.Observation{}, engine.NewError(engine.ErrProbeUnavailable,
			fmt.Sprintf("query unit %s", s.unit), err)
	}

	var pending []string
	if status.State != s.state {
		switch s.state {
		case system.UnitRunning:
			pending = append(pending, "start")
		case system.UnitStopped:
			pending = append(pending, "stop")
		}
	}
	if s.enabled != nil && status.Enabled != *s.enabled {
		if *s.enabled {
			pending = append(pending, "enable")
		} else {
			pending = append(pending, "disable")
		}
	}

	if len(pending) == 0 {
		return engine.Observation{Converged: true}, nil
	}
	return engine.Observation{
		Pending: fmt.Sprintf("%s %s", strings.Join(pending, ", "), s.unit),
	}, nil
}

// Apply drives the unit to the declared state. Enablement is converged
// first so a freshly started unit survives a reboot race.
func (s *Service) Apply(ctx context.Context) error {
	if s.enabled != nil {
		op := s.sup.Enable
		if !*s.enabled {
			op = s.sup.Disable
		}
		if err := op(ctx, s.unit); err != nil {
			return engine.NewError(engine.ErrApplyFailure,
				fmt.Sprintf("set enablement of %s", s.unit), err)
		}
	}

	status, err := s.sup.Status(ctx, s.unit)
	if err != nil {
		return engine.NewError(engine.ErrApplyFailure,
			fmt.Sprintf("query unit %s", s.unit), err)
	}
	if status.State == s.state {
		return nil
	}

	op := s.sup.Start
	if s.state == system.UnitStopped {
		op = s.sup.Stop
	}
	if err := op(ctx, s.unit); err != nil {
		return engine.NewError(engine.ErrApplyFailure,
			fmt.Sprintf("converge unit %s to %s", s.unit, s.state), err)
	}
	return nil
}
