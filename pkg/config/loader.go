package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/resources"
	"github.com/provisor/provisor/pkg/system"
)

// Loader parses manifests and turns them into resources.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a manifest loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New()}
}

// Load reads, parses, and validates a manifest file. The format follows the
// file extension: .cue is CUE, everything else is YAML.
func (l *Loader) Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewError(engine.ErrIO,
			fmt.Sprintf("read manifest %s", path), err)
	}

	var m Manifest
	if filepath.Ext(path) == ".cue" {
		err = parseCUE(path, data, &m)
	} else {
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, engine.NewError(engine.ErrValidation,
			fmt.Sprintf("parse manifest %s", path), err)
	}

	if err := l.validateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// validateManifest runs struct validation plus the cross-field rules the
// tag language cannot express.
func (l *Loader) validateManifest(m *Manifest) error {
	if err := l.validate.Struct(m); err != nil {
		return engine.NewError(engine.ErrValidation, "invalid manifest", err)
	}

	seen := make(map[string]bool, len(m.Resources))
	for i := range m.Resources {
		r := &m.Resources[i]
		if seen[r.Name] {
			return engine.NewError(engine.ErrValidation,
				fmt.Sprintf("duplicate resource name %q", r.Name), nil)
		}
		seen[r.Name] = true

		if err := l.validateSpecPairing(r); err != nil {
			return err
		}
	}
	return nil
}

// validateSpecPairing checks that the kind-specific block matches Kind and
// that no stray block is present.
func (l *Loader) validateSpecPairing(r *ResourceSpec) error {
	blocks := map[string]bool{
		resources.KindPackage: r.Package != nil,
		resources.KindFile:    r.File != nil,
		resources.KindService: r.Service != nil,
		resources.KindCompose: r.Compose != nil,
		resources.KindCommand: r.Command != nil,
	}

	for kind, present := range blocks {
		if present && kind != r.Kind {
			return engine.NewError(engine.ErrValidation,
				fmt.Sprintf("resource %q: kind is %s but a %s block is declared", r.Name, r.Kind, kind), nil)
		}
	}

	// package and service blocks are optional (the resource name is
	// enough); everything else needs its block.
	switch r.Kind {
	case resources.KindFile, resources.KindCompose, resources.KindCommand:
		if !blocks[r.Kind] {
			return engine.NewError(engine.ErrValidation,
				fmt.Sprintf("resource %q: missing %s block", r.Name, r.Kind), nil)
		}
	}

	if r.Kind == resources.KindFile && r.File.Content != "" && r.File.Source != "" {
		return engine.NewError(engine.ErrValidation,
			fmt.Sprintf("resource %q: content and source are mutually exclusive", r.Name), nil)
	}
	return nil
}

// Collaborators are the host interfaces resources are bound to.
type Collaborators struct {
	Runner   system.CommandRunner
	Packages system.PackageManager
	Units    system.Supervisor
	Compose  system.ComposeCLI
}

// BuildResources instantiates engine resources from a validated manifest.
// baseDir anchors relative source paths; it is normally the manifest's
// directory.
func (l *Loader) BuildResources(m *Manifest, baseDir string, c Collaborators) ([]engine.Resource, error) {
	out := make([]engine.Resource, 0, len(m.Resources))
	for i := range m.Resources {
		r, err := l.buildResource(&m.Resources[i], m.Defaults, baseDir, c)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (l *Loader) buildResource(spec *ResourceSpec, defaults Defaults, baseDir string, c Collaborators) (engine.Resource, error) {
	switch spec.Kind {
	case resources.KindPackage:
		if c.Packages == nil {
			return nil, engine.NewError(engine.ErrValidation,
				fmt.Sprintf("resource %q: no package manager available on this host", spec.Name), nil)
		}
		var pkg, version string
		if spec.Package != nil {
			pkg, version = spec.Package.Name, spec.Package.Version
		}
		return resources.NewPackage(spec.Name, spec.DependsOn, pkg, version, c.Packages), nil

	case resources.KindFile:
		content := []byte(spec.File.Content)
		if spec.File.Source != "" {
			src := spec.File.Source
			if !filepath.IsAbs(src) {
				src = filepath.Join(baseDir, src)
			}
			data, err := os.ReadFile(src)
			if err != nil {
				return nil, engine.NewError(engine.ErrIO,
					fmt.Sprintf("resource %q: read source %s", spec.Name, src), err)
			}
			content = data
		}

		modeStr := spec.File.Mode
		if modeStr == "" {
			modeStr = defaults.FileMode
		}
		mode, err := parseMode(modeStr)
		if err != nil {
			return nil, engine.NewError(engine.ErrValidation,
				fmt.Sprintf("resource %q: invalid mode %q", spec.Name, modeStr), err)
		}
		return resources.NewFile(spec.Name, spec.DependsOn, spec.File.Path,
			content, mode, spec.File.Owner, spec.File.Group), nil

	case resources.KindService:
		var unit string
		state := system.UnitRunning
		var enabled *bool
		if spec.Service != nil {
			unit = spec.Service.Unit
			if spec.Service.State != "" {
				state = system.UnitState(spec.Service.State)
			}
			enabled = spec.Service.Enabled
		}
		return resources.NewService(spec.Name, spec.DependsOn, unit, state, enabled, c.Units), nil

	case resources.KindCompose:
		return resources.NewComposeStack(spec.Name, spec.DependsOn,
			spec.Compose.ProjectDir, spec.Compose.Services, spec.Compose.EnvFile, c.Compose), nil

	case resources.KindCommand:
		argv := spec.Command.Argv
		// A trailing "|| true" in a single-element argv is shell
		// tolerance syntax; translate it to the best-effort flag and
		// split the remaining command into fields so it stays
		// exec-able without a shell.
		bestEffort := spec.Command.BestEffort
		if len(argv) == 1 && strings.HasSuffix(argv[0], "|| true") {
			argv = strings.Fields(strings.TrimSuffix(argv[0], "|| true"))
			bestEffort = true
		}
		if len(argv) == 0 {
			return nil, engine.NewError(engine.ErrValidation,
				fmt.Sprintf("resource %q: empty command", spec.Name), nil)
		}
		return resources.NewCommand(spec.Name, spec.DependsOn, argv,
			spec.Command.Dir, spec.Command.Env, spec.Command.Creates,
			spec.Command.Unless, bestEffort, c.Runner)

	default:
		return nil, engine.NewError(engine.ErrValidation,
			fmt.Sprintf("resource %q: unknown kind %q", spec.Name, spec.Kind), nil)
	}
}

func parseMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	return os.FileMode(n), nil
}
