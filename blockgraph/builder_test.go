package blockgraph

import (
	"testing"

	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/stretchr/testify/require"
)

func tagInstr(id string) instruction.Instruction {
	v := id
	return instruction.Instruction{Name: instruction.Tag, Value: &v}
}

func TestBuildSplitsOnTerminatorsAndTags(t *testing.T) {
	code := []instruction.Instruction{
		{Name: instruction.PUSH1, Value: strPtr("01")},
		{Name: instruction.JUMP},
		tagInstr("1"),
		{Name: instruction.PUSH1, Value: strPtr("02")},
		{Name: instruction.RETURN},
	}

	blocks, err := Build(Deploy, code)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	entry := blocks[BlockKey{Segment: Deploy, Tag: 0}]
	require.Len(t, entry.Elements, 2)
	require.Equal(t, &BlockKey{Segment: Deploy, Tag: 1}, entry.Fallthrough)

	tag1 := blocks[BlockKey{Segment: Deploy, Tag: 1}]
	require.Len(t, tag1.Elements, 3)
	require.Nil(t, tag1.Fallthrough)
}

func TestBuildDeadCodeAfterTerminator(t *testing.T) {
	code := []instruction.Instruction{
		{Name: instruction.STOP},
		{Name: instruction.PUSH1, Value: strPtr("01")},
	}

	blocks, err := Build(Deploy, code)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
}

func strPtr(s string) *string { return &s }
