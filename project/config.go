// Package project implements the project driver (C8, spec.md §4.5): it
// runs the dependency resolver once, globally, then lowers every contract
// through C5/C6/C7 in parallel, collecting one error per contract rather
// than aborting the whole run on the first failure (spec.md §5).
package project

import (
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/lowering"
)

// Config holds the project-wide settings the driver needs, grounded on the
// teacher's vm/runtime.Config/SetDefaults pattern: a struct of optional
// fields plus a SetDefaults pass that fills in whatever the caller left
// zero.
type Config struct {
	// EVMVersion is the solc/EVM semantic version threaded through to C6's
	// constant-folding and opcode-arity tables (SPEC_FULL.md §4).
	EVMVersion instruction.Version

	// RuntimeTarget selects which of lowering's two runtime-segment tables
	// (spec.md §4.4's "three variations": deploy, runtime-A, runtime-B)
	// every contract in the project is lowered against. Different
	// contracts in the same project never mix runtime targets in this
	// driver; a caller wanting per-contract targets can call
	// lowering.LowerFunction directly instead of going through Driver.
	RuntimeTarget lowering.Target
}

// SetDefaults fills a zero-valued EVMVersion with this compiler's default
// target EVM version (0.8.21). RuntimeTarget is left alone: lowering.TargetDeploy(0) is a meaningful enum value in
// its own right, so an unset RuntimeTarget can't be distinguished from an
// explicit choice of TargetDeploy — callers that want a runtime table must
// say so.
func SetDefaults(cfg *Config) {
	if cfg.EVMVersion == (instruction.Version{}) {
		cfg.EVMVersion = instruction.Version{Major: 0, Minor: 8, Patch: 21}
	}
}
