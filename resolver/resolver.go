// Package resolver implements the cross-contract dependency resolution
// pass (C4, spec.md §4.1): it hashes every deploy/runtime assembly in a
// project, builds a (hash → path) map, then rewrites every numeric data
// index into either a full contract path or a preserved literal hash.
package resolver

import (
	"context"
	"fmt"

	"github.com/ethereal-ir/evmla-compiler/assembly"
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// indexWidth is the EVM word width in hex characters (32 bytes * 2).
const indexWidth = 64

// MissingDependencyError is returned when a hash → path lookup fails
// during the resolver (§7 MissingDependency). Any occurrence aborts
// compilation of the entire project (§4.1 "Failure policy").
type MissingDependencyError struct {
	Hash string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("Contract path not found for hash %s", e.Hash)
}

// RuntimeCodeMissingError is returned when a deploy assembly's data["0"]
// slot is absent or not an inline assembly (§4.1, §7).
type RuntimeCodeMissingError struct {
	Path string
}

func (e *RuntimeCodeMissingError) Error() string {
	return fmt.Sprintf("Runtime code data not found for %s", e.Path)
}

// HashToPath is the global, read-only map built by Pass A and consumed by
// every Pass-B task (spec.md §5 "Shared resources").
type HashToPath map[string]string

// Project is the full set of deploy assemblies to resolve, keyed by full
// contract path ("file:Contract").
type Project map[string]*assembly.Assembly

// Resolve runs both resolver passes over the project (spec.md §4.1
// "preprocess"): Pass A sequentially builds the hash→path map; Pass B
// rewrites each contract in parallel. Pass A happens-before every Pass-B
// task (spec.md §5).
func Resolve(ctx context.Context, project Project) error {
	hashToPath, err := buildHashIndex(project)
	if err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	for path, asm := range project {
		path, asm := path, asm
		g.Go(func() error {
			return preprocessOne(path, asm, hashToPath)
		})
	}
	return g.Wait()
}

// buildHashIndex is resolver Pass A: for each contract, if its deploy
// assembly has runtime code, record deploy_hash → path and
// runtime_hash → path.runtime.
func buildHashIndex(project Project) (HashToPath, error) {
	index := make(HashToPath, len(project)*2)
	for path, asm := range project {
		deployHash, err := asm.Keccak256()
		if err != nil {
			return nil, fmt.Errorf("hashing deploy assembly %s: %w", path, err)
		}
		index[deployHash] = path

		runtimeAsm, err := asm.RuntimeCode()
		if err != nil {
			return nil, &RuntimeCodeMissingError{Path: path}
		}
		runtimeHash, err := runtimeAsm.Keccak256()
		if err != nil {
			return nil, fmt.Errorf("hashing runtime assembly %s: %w", path, err)
		}
		index[runtimeHash] = assembly.RuntimePath(path)
	}
	return index, nil
}

// preprocessOne is resolver Pass B for a single contract (spec.md §4.1
// "preprocess_one"). Writes are local to this contract's tree, so it is
// safe to run concurrently with every other contract's preprocessOne.
func preprocessOne(fullPath string, asm *assembly.Assembly, hashToPath HashToPath) error {
	asm.SetFullPath(fullPath)

	deployMapping, err := deployDependencyPass(asm, fullPath, hashToPath)
	if err != nil {
		return err
	}
	replaceDataAliases(asm.Code, deployMapping)

	runtimeAsm, err := asm.RuntimeCode()
	if err != nil {
		return &RuntimeCodeMissingError{Path: fullPath}
	}

	runtimeMapping, err := runtimeDependencyPass(asm, runtimeAsm, hashToPath)
	if err != nil {
		return err
	}
	replaceDataAliases(runtimeAsm.Code, runtimeMapping)

	return nil
}

// deployDependencyPass is the "deploy dependency pass" of spec.md §4.1:
// the mapping from index "0" is always the runtime code; every other
// entry is resolved (Assembly) or preserved (Hash) and recorded into the
// index→value mapping used to rewrite PUSH_Data-style literals.
func deployDependencyPass(asm *assembly.Assembly, fullPath string, hashToPath HashToPath) (map[string]string, error) {
	mapping := map[string]string{
		padIndex("0"): assembly.RuntimePath(fullPath),
	}

	for index, data := range asm.Data {
		if index == "0" {
			continue
		}
		padded := padIndex(index)

		switch data.Kind {
		case assembly.DataAssembly:
			hash, err := data.Assembly.Keccak256()
			if err != nil {
				return nil, fmt.Errorf("hashing inline data at index %s: %w", index, err)
			}
			path, ok := hashToPath[hash]
			if !ok {
				return nil, &MissingDependencyError{Hash: hash}
			}
			asm.FactoryDependencies[path] = struct{}{}
			mapping[padded] = path
			asm.Data[index] = assembly.PathData(path)
		case assembly.DataHash:
			mapping[padded] = data.Hash
		default:
			// Path entries (already resolved, or a pass-through literal)
			// are left unchanged.
		}
	}
	return mapping, nil
}

// runtimeDependencyPass is the "runtime dependency pass" of spec.md §4.1,
// operating on the runtime assembly's own `.data` map while recording
// newly discovered factory dependencies into the *deploy* assembly's set
// — this mirrors the upstream front-end's behavior exactly: the runtime
// code's factory dependencies are attributed to
// the contract that deploys it, not tracked separately on the runtime
// assembly.
func runtimeDependencyPass(deployAsm, runtimeAsm *assembly.Assembly, hashToPath HashToPath) (map[string]string, error) {
	mapping := map[string]string{}
	if runtimeAsm.Data == nil {
		return mapping, nil
	}

	for index, data := range runtimeAsm.Data {
		padded := padIndex(index)

		switch data.Kind {
		case assembly.DataAssembly:
			hash, err := data.Assembly.Keccak256()
			if err != nil {
				return nil, fmt.Errorf("hashing inline data at index %s: %w", index, err)
			}
			path, ok := hashToPath[hash]
			if !ok {
				return nil, &MissingDependencyError{Hash: hash}
			}
			deployAsm.FactoryDependencies[path] = struct{}{}
			mapping[padded] = path
			runtimeAsm.Data[index] = assembly.PathData(path)
		case assembly.DataHash:
			mapping[padded] = data.Hash
		default:
			if index == "0" {
				// Open question (spec.md §9): the legacy front-end also
				// accepts "0": Data entries in some paths; treat as
				// pass-through but log a warning rather than silently
				// "fixing" it.
				log.Warn("unexpected data entry at runtime index 0", "path", deployAsm.FullPath)
			}
		}
	}
	return mapping, nil
}

// padIndex left-zero-pads a data-map index to the EVM word width in hex
// characters (spec.md §4.1 "Ordering & tie-breaks", §8 property 3).
func padIndex(index string) string {
	if len(index) >= indexWidth {
		return index
	}
	zeros := indexWidth - len(index)
	buf := make([]byte, indexWidth)
	for i := 0; i < zeros; i++ {
		buf[i] = '0'
	}
	copy(buf[zeros:], index)
	return string(buf)
}

// replaceDataAliases rewrites the Value field of every index-bearing PUSH
// (PUSH_Data, PUSH_ContractHash, PUSH_ContractHashSize) whose (padded)
// literal matches a key in mapping, per spec.md §4.1's final step.
// Unmatched values and all other instructions are left intact.
func replaceDataAliases(code []instruction.Instruction, mapping map[string]string) {
	for i, instr := range code {
		switch instr.Name {
		case instruction.PushData, instruction.PushContractHash, instruction.PushContractHashSize:
		default:
			continue
		}
		if instr.Value == nil {
			continue
		}
		padded := padIndex(*instr.Value)
		replacement, ok := mapping[padded]
		if !ok {
			continue
		}
		code[i].Value = &replacement
	}
}
