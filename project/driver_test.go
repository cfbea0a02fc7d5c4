package project

import (
	"context"
	"testing"

	"github.com/ethereal-ir/evmla-compiler/assembly"
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/lowering"
	"github.com/ethereal-ir/evmla-compiler/resolver"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func push(name instruction.Name, value string) instruction.Instruction {
	v := value
	return instruction.Instruction{Name: name, Value: &v}
}

type fakeLibraries struct{}

func (fakeLibraries) ResolveLibrary(string) (*uint256.Int, error) { return uint256.NewInt(0), nil }

type fakeImmutables struct{ next uint64 }

func (f *fakeImmutables) Allocate(string) (uint64, error) { f.next++; return f.next, nil }
func (f *fakeImmutables) GetOrAllocate(key string) (uint64, error) { return f.Allocate(key) }

type fakeBuilderFactory struct {
	builders map[string]*lowering.NullBuilder
}

func newFakeBuilderFactory() *fakeBuilderFactory {
	return &fakeBuilderFactory{builders: map[string]*lowering.NullBuilder{}}
}

func (f *fakeBuilderFactory) NewBuilder(_ context.Context, path string) (lowering.Builder, lowering.LibraryResolver, lowering.ImmutableAllocator, error) {
	b := &lowering.NullBuilder{}
	f.builders[path] = b
	return b, fakeLibraries{}, &fakeImmutables{}, nil
}

func newContract(deployCode, runtimeCode []instruction.Instruction) *assembly.Assembly {
	runtime := &assembly.Assembly{Code: runtimeCode, FactoryDependencies: map[string]struct{}{}}
	deploy := &assembly.Assembly{
		Code:                deployCode,
		Data:                map[string]assembly.Data{"0": assembly.AssemblyData(runtime)},
		FactoryDependencies: map[string]struct{}{},
	}
	return deploy
}

func TestDriverCompile_AllContractsSucceed(t *testing.T) {
	stop := []instruction.Instruction{{Name: instruction.STOP}}
	add := []instruction.Instruction{
		push(instruction.PUSH1, "01"),
		push(instruction.PUSH1, "02"),
		{Name: instruction.ADD},
		{Name: instruction.STOP},
	}

	proj := resolver.Project{
		"contracts/A.sol:A": newContract(stop, stop),
		"contracts/B.sol:B": newContract(add, stop),
	}

	factory := newFakeBuilderFactory()
	driver := NewDriver(Config{RuntimeTarget: lowering.TargetRuntimeStandard}, factory)

	result, err := driver.Compile(context.Background(), proj)
	require.NoError(t, err)
	require.Len(t, result.PerContract, 2)
	for path, cErr := range result.PerContract {
		require.NoErrorf(t, cErr, "contract %s", path)
	}
}

// One contract using an unsupported opcode fails on its own; its sibling
// still compiles cleanly (spec.md §8 scenario S6 / §5 "other contracts
// continue").
func TestDriverCompile_OneContractFailsSiblingSucceeds(t *testing.T) {
	stop := []instruction.Instruction{{Name: instruction.STOP}}
	callcodeArgs := []instruction.Instruction{
		push(instruction.PUSH1, "00"), push(instruction.PUSH1, "00"), push(instruction.PUSH1, "00"),
		push(instruction.PUSH1, "00"), push(instruction.PUSH1, "00"), push(instruction.PUSH1, "00"),
		push(instruction.PUSH1, "00"),
		{Name: instruction.CALLCODE},
		{Name: instruction.STOP},
	}

	proj := resolver.Project{
		"contracts/Good.sol:Good": newContract(stop, stop),
		"contracts/Bad.sol:Bad":   newContract(stop, callcodeArgs),
	}

	factory := newFakeBuilderFactory()
	driver := NewDriver(Config{RuntimeTarget: lowering.TargetRuntimeStandard}, factory)

	result, err := driver.Compile(context.Background(), proj)
	require.NoError(t, err)
	require.NoError(t, result.PerContract["contracts/Good.sol:Good"])
	require.Error(t, result.PerContract["contracts/Bad.sol:Bad"])
	require.EqualError(t, result.PerContract["contracts/Bad.sol:Bad"], "The `CALLCODE` instruction is not supported")
}

func TestDriverCompile_MissingRuntimeCodeAbortsProject(t *testing.T) {
	broken := &assembly.Assembly{
		Code:                []instruction.Instruction{{Name: instruction.STOP}},
		FactoryDependencies: map[string]struct{}{},
	}
	stop := []instruction.Instruction{{Name: instruction.STOP}}

	proj := resolver.Project{
		"contracts/Broken.sol:Broken": broken,
		"contracts/Good.sol:Good":     newContract(stop, stop),
	}

	factory := newFakeBuilderFactory()
	driver := NewDriver(Config{RuntimeTarget: lowering.TargetRuntimeStandard}, factory)

	_, err := driver.Compile(context.Background(), proj)
	require.Error(t, err)
}
