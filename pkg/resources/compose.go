package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/system"
)

// ComposeStack converges a docker compose project to running.
type ComposeStack struct {
	base
	projectDir string
	services   []string
	envFile    string
	cli        system.ComposeCLI
}

// NewComposeStack declares a compose resource. An empty services list means
// every service the compose file declares.
func NewComposeStack(name string, deps []string, projectDir string, services []string, envFile string, cli system.ComposeCLI) *ComposeStack {
	return &ComposeStack{
		base:       base{name: name, deps: deps},
		projectDir: projectDir,
		services:   services,
		envFile:    envFile,
		cli:        cli,
	}
}

func (c *ComposeStack) Kind() string     { return KindCompose }
func (c *ComposeStack) Identity() string { return identity(KindCompose, c.projectDir) }

// Check asks the compose CLI whether the declared services are running.
func (c *ComposeStack) Check(ctx context.Context) (engine.Observation, error) {
	up, err := c.cli.IsUp(ctx, c.projectDir, c.services)
	if err != nil {
		return engine.Observation{}, engine.NewError(engine.ErrProbeUnavailable,
			fmt.Sprintf("query compose project %s", c.projectDir), err)
	}
	if up {
		return engine.Observation{Converged: true}, nil
	}

	what := "all services"
	if len(c.services) > 0 {
		what = strings.Join(c.services, ", ")
	}
	return engine.Observation{
		Pending: fmt.Sprintf("bring up %s in %s", what, c.projectDir),
	}, nil
}

// Apply brings the project up detached.
func (c *ComposeStack) Apply(ctx context.Context) error {
	if err := c.cli.Up(ctx, c.projectDir, c.envFile); err != nil {
		return engine.NewError(engine.ErrApplyFailure,
			fmt.Sprintf("compose up %s", c.projectDir), err)
	}
	return nil
}
