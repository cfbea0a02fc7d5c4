package instruction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresValue(t *testing.T) {
	val := "05"
	_, err := New(PUSH1, &val)
	require.NoError(t, err)

	_, err = New(PUSH1, nil)
	require.Error(t, err)

	_, err = New(ADD, nil)
	require.NoError(t, err)
}

func TestInputOutputSizeDupSwap(t *testing.T) {
	dup3 := Instruction{Name: DUP3}
	require.Equal(t, 3, dup3.InputSize(Version{}))
	require.Equal(t, 4, dup3.OutputSize(Version{}))

	swap2 := Instruction{Name: SWAP2}
	require.Equal(t, 3, swap2.InputSize(Version{}))
	require.Equal(t, 3, swap2.OutputSize(Version{}))
}

func TestInputOutputSizeLog(t *testing.T) {
	log2 := Instruction{Name: LOG2}
	require.Equal(t, 4, log2.InputSize(Version{}))
	require.Equal(t, 0, log2.OutputSize(Version{}))
}

func TestSupportsPush0(t *testing.T) {
	require.False(t, Version{Major: 0, Minor: 8, Patch: 19}.SupportsPush0())
	require.True(t, Version{Major: 0, Minor: 8, Patch: 20}.SupportsPush0())
	require.True(t, Version{Major: 0, Minor: 9, Patch: 0}.SupportsPush0())
}

func TestIsTerminatorAndBlockHead(t *testing.T) {
	require.True(t, JUMP.IsTerminator())
	require.True(t, RecursiveReturn.IsTerminator())
	require.False(t, ADD.IsTerminator())

	require.True(t, Tag.IsBlockHead())
	require.True(t, JUMPDEST.IsBlockHead())
	require.False(t, JUMP.IsBlockHead())
}
