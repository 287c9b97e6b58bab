package resources

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/system"
)

// Command runs an imperative command. It is the escape hatch of the model:
// without a guard it can never be observed as converged and runs on every
// invocation. Two guards restore idempotency: a creates path that marks
// completion, and an unless expression evaluated before running.
type Command struct {
	base
	argv       []string
	dir        string
	env        []string
	creates    string
	unless     *vm.Program
	unlessSrc  string
	bestEffort bool
	runner     system.CommandRunner
}

// NewCommand declares a command resource. unless, when non-empty, is a
// boolean expression compiled at declaration time so a typo fails planning
// rather than mid-run.
func NewCommand(name string, deps []string, argv []string, dir string, env []string, creates, unless string, bestEffort bool, runner system.CommandRunner) (*Command, error) {
	c := &Command{
		base:       base{name: name, deps: deps},
		argv:       argv,
		dir:        dir,
		env:        env,
		creates:    creates,
		unlessSrc:  unless,
		bestEffort: bestEffort,
		runner:     runner,
	}

	if unless != "" {
		prog, err := expr.Compile(unless, expr.Env(guardEnv()), expr.AsBool())
		if err != nil {
			return nil, engine.NewError(engine.ErrValidation,
				fmt.Sprintf("compile unless expression for %s", name), err)
		}
		c.unless = prog
	}
	return c, nil
}

func (c *Command) Kind() string     { return KindCommand }
func (c *Command) Identity() string { return identity(KindCommand, c.name) }

// BestEffort reports whether a failing exit status is tolerated.
func (c *Command) BestEffort() bool { return c.bestEffort }

// Check consults the guards. With no guard declared the command is never
// converged.
func (c *Command) Check(ctx context.Context) (engine.Observation, error) {
	if c.creates != "" {
		if _, err := os.Stat(c.creates); err == nil {
			return engine.Observation{Converged: true}, nil
		} else if !os.IsNotExist(err) {
			return engine.Observation{}, engine.NewError(engine.ErrProbeUnavailable,
				fmt.Sprintf("stat %s", c.creates), err)
		}
	}

	if c.unless != nil {
		out, err := expr.Run(c.unless, guardEnv())
		if err != nil {
			return engine.Observation{}, engine.NewError(engine.ErrProbeUnavailable,
				fmt.Sprintf("evaluate unless expression %q", c.unlessSrc), err)
		}
		if out.(bool) {
			return engine.Observation{Converged: true}, nil
		}
	}

	return engine.Observation{
		Pending: fmt.Sprintf("run %s", strings.Join(c.argv, " ")),
	}, nil
}

// Apply runs the command. A non-zero exit is an apply failure carrying the
// command's stderr.
func (c *Command) Apply(ctx context.Context) error {
	res, err := c.runner.Run(ctx, c.argv, system.RunOptions{Dir: c.dir, Env: c.env})
	if err != nil {
		return engine.NewError(engine.ErrApplyFailure,
			fmt.Sprintf("run %s", strings.Join(c.argv, " ")), err)
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(res.Stdout)
		}
		return engine.NewError(engine.ErrApplyFailure,
			fmt.Sprintf("%s: exit %d: %s", strings.Join(c.argv, " "), res.ExitCode, detail), nil)
	}
	return nil
}

// guardEnv is the evaluation environment of unless expressions: process
// environment lookup and filesystem predicates.
func guardEnv() map[string]any {
	return map[string]any{
		"env": func(name string) string { return os.Getenv(name) },
		"fileExists": func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}
