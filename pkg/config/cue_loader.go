package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// parseCUE compiles a CUE manifest and decodes it into the shared Manifest
// shape. CUE's own constraint evaluation runs first, so a manifest can
// carry stricter schemas than the built-in validation enforces.
func parseCUE(path string, data []byte, m *Manifest) error {
	ctx := cuecontext.New()

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := value.Decode(m); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
