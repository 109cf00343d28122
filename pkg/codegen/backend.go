package codegen

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// GenerateIR renders the program as the backend's own text form.
	GenerateIR(prog *ir.Program, cfg *config.Config) (string, error)
	// Generate produces the final output: assembly text for both backends.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

// SelectBackend returns the backend registered under name.
func SelectBackend(name string) (Backend, error) {
	switch name {
	case "i386":
		return NewI386Backend(), nil
	case "qbe":
		return NewQBEBackend(), nil
	}
	return nil, fmt.Errorf("unsupported backend '%s'", name)
}

// Fingerprint hashes emitted text. Equal programs generated with equal
// configurations always have equal fingerprints.
func Fingerprint(text string) uint64 { return xxhash.Sum64String(text) }
