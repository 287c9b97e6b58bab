// Package system wraps the host interfaces the resources converge against:
// process execution, package managers, the service supervisor, and the
// compose CLI. Everything is behind a small interface so resource logic can
// be tested without a real host.
package system

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// RunOptions carries the optional parameters of a command invocation.
type RunOptions struct {
	// Dir is the working directory. Empty means the process default.
	Dir string

	// Env is appended to the current process environment.
	Env []string

	// Stdin is written to the command's standard input when non-empty.
	Stdin []byte
}

// RunResult is the outcome of a completed command.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner executes host commands. A non-zero exit status is reported
// through RunResult, not as an error; errors are reserved for failures to
// spawn or observe the process at all.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, opts RunOptions) (RunResult, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// NewExecRunner creates the default host runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes argv and captures its output.
func (r *ExecRunner) Run(ctx context.Context, argv []string, opts RunOptions) (RunResult, error) {
	if len(argv) == 0 {
		return RunResult{}, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if len(opts.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(opts.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, err
	}
}
