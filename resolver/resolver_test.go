package resolver

import (
	"context"
	"testing"

	"github.com/ethereal-ir/evmla-compiler/assembly"
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/stretchr/testify/require"
)

func pushData(index string) instruction.Instruction {
	v := index
	return instruction.Instruction{Name: instruction.PushData, Value: &v}
}

func newFactoryDeps() map[string]struct{} { return map[string]struct{}{} }

func TestResolveRewritesFactoryDependency(t *testing.T) {
	lib := &assembly.Assembly{
		Code:                []instruction.Instruction{{Name: instruction.STOP}},
		FactoryDependencies: newFactoryDeps(),
	}
	libRuntime := &assembly.Assembly{
		Code:                []instruction.Instruction{{Name: instruction.STOP}},
		FactoryDependencies: newFactoryDeps(),
	}
	lib.Data = map[string]assembly.Data{"0": assembly.AssemblyData(libRuntime)}

	// Main embeds its own copy of Lib's deploy assembly, as a parsed project
	// would: Pass B rewrites each contract's tree concurrently, so two
	// contracts must not share an Assembly node.
	libEmbedded := *lib

	mainRuntime := &assembly.Assembly{
		Code:                []instruction.Instruction{pushData("1"), {Name: instruction.STOP}},
		Data:                map[string]assembly.Data{"1": assembly.AssemblyData(&libEmbedded)},
		FactoryDependencies: newFactoryDeps(),
	}
	main := &assembly.Assembly{
		Code:                []instruction.Instruction{{Name: instruction.STOP}},
		FactoryDependencies: newFactoryDeps(),
	}
	main.Data = map[string]assembly.Data{"0": assembly.AssemblyData(mainRuntime)}

	project := Project{
		"lib.sol:Lib":   lib,
		"main.sol:Main": main,
	}

	err := Resolve(context.Background(), project)
	require.NoError(t, err)

	// The newly discovered dependency is attributed to the deploy
	// assembly, not the runtime assembly that actually referenced it —
	// see runtimeDependencyPass.
	require.Contains(t, main.FactoryDependencies, "lib.sol:Lib")
	require.Equal(t, "lib.sol:Lib", *mainRuntime.Code[0].Value)
}

func TestResolveMissingDependency(t *testing.T) {
	phantom := &assembly.Assembly{
		Code: []instruction.Instruction{{Name: instruction.STOP}},
	}
	mainRuntime := &assembly.Assembly{
		Code:                []instruction.Instruction{{Name: instruction.STOP}},
		Data:                map[string]assembly.Data{"1": assembly.AssemblyData(phantom)},
		FactoryDependencies: newFactoryDeps(),
	}
	main := &assembly.Assembly{
		Code:                []instruction.Instruction{{Name: instruction.STOP}},
		FactoryDependencies: newFactoryDeps(),
		Data:                map[string]assembly.Data{"0": assembly.AssemblyData(mainRuntime)},
	}

	project := Project{"main.sol:Main": main}
	err := Resolve(context.Background(), project)
	require.Error(t, err)
	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
}

func TestPadIndex(t *testing.T) {
	padded := padIndex("1")
	require.Equal(t, 64, len(padded))
	require.Equal(t, "0000000000000000000000000000000000000000000000000000000000000001", padded)
}
