// Package config loads and validates resource manifests. Manifests are
// YAML or CUE; both decode into the same Manifest shape before validation,
// so the engine never sees format-specific detail.
package config

// Manifest is the top-level declaration document.
type Manifest struct {
	Version   int            `yaml:"version" json:"version" validate:"required,eq=1"`
	Defaults  Defaults       `yaml:"defaults" json:"defaults"`
	Resources []ResourceSpec `yaml:"resources" json:"resources" validate:"required,min=1,dive"`
}

// Defaults are manifest-wide settings individual resources inherit.
type Defaults struct {
	// FileMode is the permission applied to file resources that declare
	// none, in octal string form ("0644").
	FileMode string `yaml:"file_mode" json:"file_mode" validate:"omitempty,len=4"`
}

// ResourceSpec is one declared resource. Exactly one of the kind-specific
// blocks must be present, matching Kind.
type ResourceSpec struct {
	Name      string   `yaml:"name" json:"name" validate:"required"`
	Kind      string   `yaml:"kind" json:"kind" validate:"required,oneof=package file service compose command"`
	DependsOn []string `yaml:"depends_on" json:"depends_on"`

	Package *PackageSpec `yaml:"package" json:"package"`
	File    *FileSpec    `yaml:"file" json:"file"`
	Service *ServiceSpec `yaml:"service" json:"service"`
	Compose *ComposeSpec `yaml:"compose" json:"compose"`
	Command *CommandSpec `yaml:"command" json:"command"`
}

// PackageSpec declares an OS package.
type PackageSpec struct {
	// Name is the package name. Empty means the resource name.
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// FileSpec declares a managed file.
type FileSpec struct {
	Path string `yaml:"path" json:"path" validate:"required"`

	// Content is inline file content. Source names a local file to copy
	// instead; at most one of the two may be set.
	Content string `yaml:"content" json:"content"`
	Source  string `yaml:"source" json:"source"`

	Mode  string `yaml:"mode" json:"mode" validate:"omitempty,len=4"`
	Owner string `yaml:"owner" json:"owner"`
	Group string `yaml:"group" json:"group"`
}

// ServiceSpec declares a supervised unit.
type ServiceSpec struct {
	// Unit is the unit name. Empty means the resource name.
	Unit  string `yaml:"unit" json:"unit"`
	State string `yaml:"state" json:"state" validate:"omitempty,oneof=running stopped"`

	// Enabled nil leaves boot enablement alone.
	Enabled *bool `yaml:"enabled" json:"enabled"`
}

// ComposeSpec declares a docker compose project.
type ComposeSpec struct {
	ProjectDir string   `yaml:"project_dir" json:"project_dir" validate:"required"`
	Services   []string `yaml:"services" json:"services"`
	EnvFile    string   `yaml:"env_file" json:"env_file"`
}

// CommandSpec declares an imperative command.
type CommandSpec struct {
	Argv []string `yaml:"argv" json:"argv" validate:"required,min=1"`
	Dir  string   `yaml:"dir" json:"dir"`
	Env  []string `yaml:"env" json:"env"`

	// Creates marks the command converged once the path exists.
	Creates string `yaml:"creates" json:"creates"`

	// Unless is a boolean expression; true skips the command.
	Unless string `yaml:"unless" json:"unless"`

	// BestEffort tolerates a failing exit status: the failure is
	// reported but does not fail the run or block dependents.
	BestEffort bool `yaml:"best_effort" json:"best_effort"`
}
