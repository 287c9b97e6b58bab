package system

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PackageManager abstracts the host package tooling. Installed is a pure
// probe; Install converges a single package to the requested version.
type PackageManager interface {
	// Installed reports whether the package is present and at which
	// version. A missing package is (_, false, nil); an error means the
	// package database could not be consulted.
	Installed(ctx context.Context, name string) (version string, ok bool, err error)

	// Install installs the package, optionally pinned to a version.
	Install(ctx context.Context, name, version string) error
}

// DetectPackageManager picks the manager matching the host, preferring apt
// on Debian-family systems.
func DetectPackageManager(runner CommandRunner) (PackageManager, error) {
	if _, err := exec.LookPath("apt-get"); err == nil {
		return NewAptManager(runner), nil
	}
	if _, err := exec.LookPath("dnf"); err == nil {
		return NewDnfManager(runner), nil
	}
	return nil, fmt.Errorf("no supported package manager found (tried apt-get, dnf)")
}

// AptManager drives dpkg/apt on Debian-family hosts.
type AptManager struct {
	runner CommandRunner
}

// NewAptManager creates an apt-backed package manager.
func NewAptManager(runner CommandRunner) *AptManager {
	return &AptManager{runner: runner}
}

// Installed queries the dpkg database.
func (m *AptManager) Installed(ctx context.Context, name string) (string, bool, error) {
	res, err := m.runner.Run(ctx, []string{
		"dpkg-query", "-W", "-f=${db:Status-Status} ${Version}", name,
	}, RunOptions{})
	if err != nil {
		return "", false, fmt.Errorf("dpkg-query %s: %w", name, err)
	}
	// dpkg-query exits non-zero for unknown packages, which simply means
	// not installed.
	if res.ExitCode != 0 {
		return "", false, nil
	}

	status, version, _ := strings.Cut(strings.TrimSpace(res.Stdout), " ")
	if status != "installed" {
		return "", false, nil
	}
	return version, true, nil
}

// Install runs apt-get non-interactively, pinning the version when given.
func (m *AptManager) Install(ctx context.Context, name, version string) error {
	spec := name
	if version != "" {
		spec = name + "=" + version
	}

	res, err := m.runner.Run(ctx,
		[]string{"apt-get", "install", "-y", "--no-install-recommends", spec},
		RunOptions{Env: []string{"DEBIAN_FRONTEND=noninteractive"}},
	)
	if err != nil {
		return fmt.Errorf("apt-get install %s: %w", spec, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("apt-get install %s: exit %d: %s",
			spec, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// DnfManager drives rpm/dnf on Fedora-family hosts.
type DnfManager struct {
	runner CommandRunner
}

// NewDnfManager creates a dnf-backed package manager.
func NewDnfManager(runner CommandRunner) *DnfManager {
	return &DnfManager{runner: runner}
}

// Installed queries the rpm database.
func (m *DnfManager) Installed(ctx context.Context, name string) (string, bool, error) {
	res, err := m.runner.Run(ctx, []string{
		"rpm", "-q", "--queryformat", "%{VERSION}-%{RELEASE}", name,
	}, RunOptions{})
	if err != nil {
		return "", false, fmt.Errorf("rpm -q %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		return "", false, nil
	}
	return strings.TrimSpace(res.Stdout), true, nil
}

// Install runs dnf, pinning the version when given.
func (m *DnfManager) Install(ctx context.Context, name, version string) error {
	spec := name
	if version != "" {
		spec = name + "-" + version
	}

	res, err := m.runner.Run(ctx, []string{"dnf", "install", "-y", spec}, RunOptions{})
	if err != nil {
		return fmt.Errorf("dnf install %s: %w", spec, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("dnf install %s: exit %d: %s",
			spec, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}
