package resources

import (
	"context"
	"fmt"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/system"
)

// Package converges an OS package to installed, optionally at a pinned
// version.
type Package struct {
	base
	pkg     string
	version string
	mgr     system.PackageManager
}

// NewPackage declares a package resource. pkg defaults to the resource name.
func NewPackage(name string, deps []string, pkg, version string, mgr system.PackageManager) *Package {
	if pkg == "" {
		pkg = name
	}
	return &Package{
		base:    base{name: name, deps: deps},
		pkg:     pkg,
		version: version,
		mgr:     mgr,
	}
}

func (p *Package) Kind() string     { return KindPackage }
func (p *Package) Identity() string { return identity(KindPackage, p.pkg) }

// Check probes the package database. A version mismatch counts as not
// converged; an unreadable database is a probe failure, not divergence.
func (p *Package) Check(ctx context.Context) (engine.Observation, error) {
	installed, ok, err := p.mgr.Installed(ctx, p.pkg)
	if err != nil {
		return engine.Observation{}, engine.NewError(engine.ErrProbeUnavailable,
			fmt.Sprintf("query package %s", p.pkg), err)
	}
	if !ok {
		return engine.Observation{Pending: fmt.Sprintf("install %s", p.spec())}, nil
	}
	if p.version != "" && installed != p.version {
		return engine.Observation{
			Pending: fmt.Sprintf("install %s (have %s)", p.spec(), installed),
		}, nil
	}
	return engine.Observation{Converged: true}, nil
}

// Apply installs the package.
func (p *Package) Apply(ctx context.Context) error {
	if err := p.mgr.Install(ctx, p.pkg, p.version); err != nil {
		return engine.NewError(engine.ErrApplyFailure,
			fmt.Sprintf("install %s", p.spec()), err)
	}
	return nil
}

func (p *Package) spec() string {
	if p.version != "" {
		return p.pkg + "=" + p.version
	}
	return p.pkg
}
