// Package resources implements the built-in resource kinds: package, file,
// service, compose stack, and command. Each kind pairs a read-only Check
// probe with an idempotent Apply, so a converged run re-applies nothing.
package resources

import "strings"

// Resource kind names as they appear in manifests and reports.
const (
	KindPackage = "package"
	KindFile    = "file"
	KindService = "service"
	KindCompose = "compose"
	KindCommand = "command"
)

// base carries the declaration fields shared by every kind.
type base struct {
	name string
	deps []string
}

func (b base) ID() string          { return b.name }
func (b base) DependsOn() []string { return b.deps }

// identity joins a kind with the external target it mutates. Two resources
// with the same identity are never applied concurrently.
func identity(kind string, target ...string) string {
	return kind + ":" + strings.Join(target, ":")
}
