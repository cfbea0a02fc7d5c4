package project

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereal-ir/evmla-compiler/assembly"
	"github.com/ethereal-ir/evmla-compiler/blockgraph"
	"github.com/ethereal-ir/evmla-compiler/interpreter"
	"github.com/ethereal-ir/evmla-compiler/ircompile/errs"
	"github.com/ethereal-ir/evmla-compiler/lowering"
	"github.com/ethereal-ir/evmla-compiler/resolver"
)

// BuilderFactory supplies the external SSA-backend collaborators for one
// contract (spec.md §6): the driver never constructs a Builder itself,
// since code generation is an external concern by design.
type BuilderFactory interface {
	NewBuilder(ctx context.Context, contractPath string) (lowering.Builder, lowering.LibraryResolver, lowering.ImmutableAllocator, error)
}

// Result is the outcome of compiling a whole project: one error slot per
// contract, nil where that contract lowered cleanly (spec.md §5 "errors
// collected per-contract, other contracts continue").
type Result struct {
	PerContract map[string]error
}

// Driver runs the dependency resolver (C4) once, globally, then fans out
// block-splitting/control-flow-recovery/lowering (C5-C7) per contract,
// grounded on the teacher's Simulator wrapping a per-unit Execute call
// behind a Config/SetDefaults pair.
type Driver struct {
	Config   Config
	Builders BuilderFactory
}

// NewDriver applies SetDefaults to cfg before returning the Driver.
func NewDriver(cfg Config, builders BuilderFactory) *Driver {
	SetDefaults(&cfg)
	return &Driver{Config: cfg, Builders: builders}
}

// Compile implements spec.md §4.5: Pass A (the resolver) runs once and
// must complete before any Pass-B task starts — a Pass-A failure aborts
// the whole project outright, since there is no per-contract tree yet to
// attribute a partial failure to. Pass B then fans out one goroutine per
// contract; each contract's C5/C6/C7 pipeline is internally sequential,
// but contracts commute with each other (spec.md §5 "disjoint writes"),
// so a fatal error or recovered invariant panic in one contract is
// recorded and every other contract still runs to completion.
func (d *Driver) Compile(ctx context.Context, proj resolver.Project) (*Result, error) {
	if err := resolver.Resolve(ctx, proj); err != nil {
		return nil, fmt.Errorf("resolving project dependencies: %w", err)
	}

	result := &Result{PerContract: make(map[string]error, len(proj))}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for path, asm := range proj {
		path, asm := path, asm
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.compileOne(ctx, path, asm)
			mu.Lock()
			result.PerContract[path] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return result, nil
}

// compileOne runs C5 (block splitting), C6 (control-flow recovery), and
// C7 (instruction lowering) for a single contract, across both its
// deploy and runtime segments (interpreter.Function covers both under one
// combined graph, since a cross-segment jump can move between them). An
// InvariantViolation raised anywhere in this pipeline via errs.Invariant
// is recovered here and reported as this contract's own error, so one
// contract's invariant failure never brings down its siblings (spec.md §7
// "aborts the current contract" / §5 "errors collected per-contract").
func (d *Driver) compileOne(ctx context.Context, path string, asm *assembly.Assembly) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(*errs.InvariantViolationError); ok {
				err = iv
				return
			}
			panic(r)
		}
	}()

	deployTemplates, err := blockgraph.Build(blockgraph.Deploy, asm.Code)
	if err != nil {
		return err
	}

	runtimeAsm, err := asm.RuntimeCode()
	if err != nil {
		return err
	}
	runtimeTemplates, err := blockgraph.Build(blockgraph.Runtime, runtimeAsm.Code)
	if err != nil {
		return err
	}

	templates := make(map[blockgraph.BlockKey]*blockgraph.Block, len(deployTemplates)+len(runtimeTemplates))
	for k, v := range deployTemplates {
		templates[k] = v
	}
	for k, v := range runtimeTemplates {
		templates[k] = v
	}

	fn, err := interpreter.Interpret(templates, d.Config.EVMVersion)
	if err != nil {
		return err
	}

	builder, libs, immutables, err := d.Builders.NewBuilder(ctx, path)
	if err != nil {
		return err
	}

	lctx := &lowering.LoweringContext{
		Ctx:          ctx,
		Builder:      builder,
		Libraries:    libs,
		Immutables:   immutables,
		ContractPath: path,
		// IsDeployCode reflects this emission's DispatchEntry convention
		// (spec.md §6); both segments are lowered together into one
		// Ethereal IR function below, so the choice of true here is a
		// fixed backend-protocol convention, not a per-call decision.
		IsDeployCode: true,
	}

	sig := lowering.FunctionSignature{
		EntryKey: blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 0},
		Target:   d.Config.RuntimeTarget,
	}
	return lowering.LowerFunction(lctx, fn, sig, true)
}
