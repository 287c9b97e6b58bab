package system

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
)

// ComposeCLI abstracts the docker compose plugin for stack resources.
type ComposeCLI interface {
	// IsUp reports whether the named services of the project are all
	// running. An empty services list means every service the compose
	// file declares.
	IsUp(ctx context.Context, projectDir string, services []string) (bool, error)

	// Up converges the project to running, loading envFile into the
	// compose process environment when non-empty.
	Up(ctx context.Context, projectDir, envFile string) error
}

// DockerCompose drives the docker compose plugin.
type DockerCompose struct {
	runner CommandRunner
}

// NewDockerCompose creates a docker-backed compose CLI.
func NewDockerCompose(runner CommandRunner) *DockerCompose {
	return &DockerCompose{runner: runner}
}

// IsUp compares the declared service set against the running one.
func (c *DockerCompose) IsUp(ctx context.Context, projectDir string, services []string) (bool, error) {
	if len(services) == 0 {
		declared, err := c.services(ctx, projectDir, "config", "--services")
		if err != nil {
			return false, err
		}
		services = declared
	}

	running, err := c.services(ctx, projectDir,
		"ps", "--services", "--status", "running")
	if err != nil {
		return false, err
	}

	up := make(map[string]bool, len(running))
	for _, s := range running {
		up[s] = true
	}
	for _, s := range services {
		if !up[s] {
			return false, nil
		}
	}
	return true, nil
}

// Up runs docker compose up -d with the env file, if any, loaded into the
// process environment.
func (c *DockerCompose) Up(ctx context.Context, projectDir, envFile string) error {
	var env []string
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		if err != nil {
			return fmt.Errorf("read env file %s: %w", envFile, err)
		}
		for k, v := range vars {
			env = append(env, k+"="+v)
		}
	}

	res, err := c.runner.Run(ctx,
		[]string{"docker", "compose", "up", "-d", "--remove-orphans"},
		RunOptions{Dir: projectDir, Env: env},
	)
	if err != nil {
		return fmt.Errorf("docker compose up in %s: %w", projectDir, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker compose up in %s: exit %d: %s",
			projectDir, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (c *DockerCompose) services(ctx context.Context, projectDir string, args ...string) ([]string, error) {
	argv := append([]string{"docker", "compose"}, args...)
	res, err := c.runner.Run(ctx, argv, RunOptions{Dir: projectDir})
	if err != nil {
		return nil, fmt.Errorf("docker compose %s in %s: %w", args[0], projectDir, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("docker compose %s in %s: exit %d: %s",
			args[0], projectDir, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var out []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
