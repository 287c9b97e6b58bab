package resources

import (
	"context"
	"errors"
	"testing"

	"github.com/provisor/provisor/pkg/engine"
)

func TestPackageCheck(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		installed map[string]string
		version   string
		converged bool
	}{
		{"missing package", map[string]string{}, "", false},
		{"installed, no pin", map[string]string{"nginx": "1.24.0"}, "", true},
		{"installed at pinned version", map[string]string{"nginx": "1.24.0"}, "1.24.0", true},
		{"installed at wrong version", map[string]string{"nginx": "1.22.1"}, "1.24.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := newFakePkgMgr()
			mgr.installed = tt.installed

			p := NewPackage("nginx", nil, "", tt.version, mgr)
			obs, err := p.Check(ctx)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if obs.Converged != tt.converged {
				t.Errorf("converged = %v, want %v (pending %q)",
					obs.Converged, tt.converged, obs.Pending)
			}
		})
	}
}

func TestPackageApplyInstalls(t *testing.T) {
	ctx := context.Background()
	mgr := newFakePkgMgr()

	p := NewPackage("docker", nil, "docker.io", "", mgr)
	if err := p.Apply(ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(mgr.installs) != 1 || mgr.installs[0] != "docker.io" {
		t.Errorf("expected docker.io installed, got %v", mgr.installs)
	}

	// Converged after install.
	obs, err := p.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !obs.Converged {
		t.Error("package must be converged after install")
	}
}

func TestPackageProbeFailure(t *testing.T) {
	mgr := newFakePkgMgr()
	mgr.probeErr = errors.New("dpkg database locked")

	p := NewPackage("nginx", nil, "", "", mgr)
	_, err := p.Check(context.Background())
	if engine.KindOf(err) != engine.ErrProbeUnavailable {
		t.Errorf("locked database must be a probe failure, got %v", err)
	}
}

func TestPackageIdentityIsThePackageName(t *testing.T) {
	mgr := newFakePkgMgr()
	a := NewPackage("web-server", nil, "nginx", "", mgr)
	b := NewPackage("proxy", nil, "nginx", "", mgr)

	if a.Identity() != b.Identity() {
		t.Errorf("two resources over the same package must share identity: %q vs %q",
			a.Identity(), b.Identity())
	}
}
