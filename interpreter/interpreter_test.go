package interpreter

import (
	"testing"

	"github.com/ethereal-ir/evmla-compiler/blockgraph"
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/stretchr/testify/require"
)

func push(name instruction.Name, value string) instruction.Instruction {
	val := value
	return instruction.Instruction{Name: name, Value: &val}
}

func tag(id string) instruction.Instruction {
	val := id
	return instruction.Instruction{Name: instruction.Tag, Value: &val}
}

func TestInterpretStraightLineConstantFold(t *testing.T) {
	code := []instruction.Instruction{
		push(instruction.PUSH1, "02"),
		push(instruction.PUSH1, "03"),
		{Name: instruction.ADD},
		{Name: instruction.STOP},
	}
	blocks, err := blockgraph.Build(blockgraph.Deploy, code)
	require.NoError(t, err)

	fn, err := Interpret(blocks, instruction.Version{Major: 0, Minor: 8, Patch: 21})
	require.NoError(t, err)

	versions := fn.Blocks[blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 0}]
	require.Len(t, versions, 1)

	last := versions[0].Elements[len(versions[0].Elements)-2] // ADD's snapshot
	top, err := last.Stack.Peek()
	require.NoError(t, err)
	c, ok := top.Constant()
	require.True(t, ok)
	require.Equal(t, uint64(5), c.Uint64())
}

func TestInterpretJumpToDeclaredBlock(t *testing.T) {
	code := []instruction.Instruction{
		push(instruction.PushTag, "1"),
		{Name: instruction.JUMP},
		tag("1"),
		{Name: instruction.JUMPDEST},
		{Name: instruction.STOP},
	}
	blocks, err := blockgraph.Build(blockgraph.Deploy, code)
	require.NoError(t, err)

	fn, err := Interpret(blocks, instruction.Version{})
	require.NoError(t, err)

	tagBlock := fn.Blocks[blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 1}]
	require.Len(t, tagBlock, 1)
	require.Contains(t, tagBlock[0].Predecessors, blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 0})
}

func TestInterpretUndeclaredBlockError(t *testing.T) {
	code := []instruction.Instruction{
		push(instruction.PushTag, "99"),
		{Name: instruction.JUMP},
	}
	blocks, err := blockgraph.Build(blockgraph.Deploy, code)
	require.NoError(t, err)

	_, err = Interpret(blocks, instruction.Version{})
	require.Error(t, err)
	var undeclared *UndeclaredBlockError
	require.ErrorAs(t, err, &undeclared)
}

func TestInterpretTruncatesOnStackInvalid(t *testing.T) {
	code := []instruction.Instruction{
		{Name: instruction.ADD}, // pops on an empty stack
		push(instruction.PUSH1, "01"),
		{Name: instruction.STOP},
	}
	blocks, err := blockgraph.Build(blockgraph.Deploy, code)
	require.NoError(t, err)

	fn, err := Interpret(blocks, instruction.Version{})
	require.NoError(t, err)

	versions := fn.Blocks[blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 0}]
	require.Len(t, versions, 1)
	elems := versions[0].Elements
	require.Len(t, elems, 1)
	require.Equal(t, instruction.INVALID, elems[0].Instruction.Name)
}

func TestInterpretCrossSegmentJump(t *testing.T) {
	deployCode := []instruction.Instruction{
		push(instruction.PUSH1, "01"),
		push(instruction.PushTag, "4294967297"), // 2^32 + 1 -> Runtime tag 1
		{Name: instruction.JUMP},
	}
	runtimeCode := []instruction.Instruction{
		{Name: instruction.STOP},
		tag("1"),
		{Name: instruction.JUMPDEST},
		{Name: instruction.STOP},
	}

	deployBlocks, err := blockgraph.Build(blockgraph.Deploy, deployCode)
	require.NoError(t, err)
	runtimeBlocks, err := blockgraph.Build(blockgraph.Runtime, runtimeCode)
	require.NoError(t, err)

	merged := map[blockgraph.BlockKey]*blockgraph.Block{}
	for k, b := range deployBlocks {
		merged[k] = b
	}
	for k, b := range runtimeBlocks {
		merged[k] = b
	}

	fn, err := Interpret(merged, instruction.Version{})
	require.NoError(t, err)

	runtimeTarget := fn.Blocks[blockgraph.BlockKey{Segment: blockgraph.Runtime, Tag: 1}]
	require.Len(t, runtimeTarget, 1)
	require.Contains(t, runtimeTarget[0].Predecessors, blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 0})
}

func TestInterpretNoDuplicateBlockVersionsWhenCompatible(t *testing.T) {
	// Two JUMPI arrivals into the same tag, one with an extra unconstrained
	// (Value) element below the shared bottom-suffix, should reuse one
	// version rather than cloning two (spec.md §8 property 6): the extra
	// element carries no information the reconstructed block depends on.
	code := []instruction.Instruction{
		push(instruction.PUSH1, "01"), // condition for JUMPI #1
		push(instruction.PushTag, "1"),
		{Name: instruction.JUMPI},
		{Name: instruction.GAS}, // unknown Value, sits below 2nd arrival's bottom
		push(instruction.PUSH1, "01"), // condition for JUMPI #2
		push(instruction.PushTag, "1"),
		{Name: instruction.JUMPI},
		{Name: instruction.STOP},
		tag("1"),
		{Name: instruction.STOP},
	}
	blocks, err := blockgraph.Build(blockgraph.Deploy, code)
	require.NoError(t, err)

	fn, err := Interpret(blocks, instruction.Version{})
	require.NoError(t, err)

	tagVersions := fn.Blocks[blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 1}]
	require.Len(t, tagVersions, 1)
}
