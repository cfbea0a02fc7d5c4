// Command evmlac loads a project of assembled contracts (spec.md §6's JSON
// wire format) and runs it through the project driver (C8): dependency
// resolution (C4), block splitting (C5), control-flow recovery (C6), and
// instruction lowering (C7). No flag parsing, per spec.md's Non-goals —
// paths are taken straight off the argument list, the same way the
// teacher's example package hardcodes its inputs rather than wiring a CLI
// flag library.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/ethereal-ir/evmla-compiler/assembly"
	"github.com/ethereal-ir/evmla-compiler/lowering"
	"github.com/ethereal-ir/evmla-compiler/project"
	"github.com/ethereal-ir/evmla-compiler/resolver"
	"github.com/holiman/uint256"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: evmlac <project.json>")
	}
	compileProjectFile(os.Args[1])
}

// compileProjectFile reads a JSON object mapping full contract paths to
// their assembled deploy-time Assembly (spec.md §6) and drives it through
// the project compiler.
func compileProjectFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	var wire map[string]*assembly.Assembly
	if err := json.Unmarshal(raw, &wire); err != nil {
		log.Fatal(err)
	}

	proj := make(resolver.Project, len(wire))
	for path, asm := range wire {
		asm.SetFullPath(path)
		proj[path] = asm
	}

	cfg := project.Config{RuntimeTarget: lowering.TargetRuntimeStandard}
	driver := project.NewDriver(cfg, &loggingBuilderFactory{})

	result, err := driver.Compile(context.Background(), proj)
	if err != nil {
		log.Fatal(err)
	}

	for contractPath, cErr := range result.PerContract {
		log.Println("-----------------------------------------------------------")
		log.Println(contractPath)
		if cErr != nil {
			log.Println("FAILED:", cErr)
			continue
		}
		log.Println("OK")
	}
}

// loggingBuilderFactory hands every contract its own lowering.NullBuilder.
// A real backend implements lowering.Builder itself and is wired in here
// instead; this command only demonstrates that the C5-C7 pipeline runs to
// completion and records the opcode call sequence it would have emitted.
type loggingBuilderFactory struct{}

func (loggingBuilderFactory) NewBuilder(context.Context, string) (lowering.Builder, lowering.LibraryResolver, lowering.ImmutableAllocator, error) {
	return &lowering.NullBuilder{}, zeroLibraryResolver{}, &sequentialImmutableAllocator{}, nil
}

// zeroLibraryResolver stands in for the linker pass that assigns concrete
// library addresses (out of scope by construction, spec.md §6).
type zeroLibraryResolver struct{}

func (zeroLibraryResolver) ResolveLibrary(string) (*uint256.Int, error) {
	return uint256.NewInt(0), nil
}

// sequentialImmutableAllocator assigns each distinct immutable key the next
// storage slot in allocation order.
type sequentialImmutableAllocator struct {
	next    uint64
	offsets map[string]uint64
}

func (a *sequentialImmutableAllocator) Allocate(key string) (uint64, error) {
	if a.offsets == nil {
		a.offsets = make(map[string]uint64)
	}
	if off, ok := a.offsets[key]; ok {
		return off, nil
	}
	off := a.next
	a.offsets[key] = off
	a.next++
	return off, nil
}

func (a *sequentialImmutableAllocator) GetOrAllocate(key string) (uint64, error) {
	return a.Allocate(key)
}
