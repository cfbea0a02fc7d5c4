package stackmodel

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	s := New()
	s.Push(Const(uint256.NewInt(1)))
	s.Push(Const(uint256.NewInt(2)))

	top, err := s.Pop()
	require.NoError(t, err)
	v, ok := top.Constant()
	require.True(t, ok)
	require.Equal(t, uint64(2), v.Uint64())
	require.Equal(t, 1, s.Len())
}

func TestPopUnderflow(t *testing.T) {
	s := New()
	_, err := s.Pop()
	require.Error(t, err)
	var underflow *ErrStackUnderflow
	require.ErrorAs(t, err, &underflow)
}

func TestPopTagExpectsTag(t *testing.T) {
	s := New()
	s.Push(Const(uint256.NewInt(1)))
	_, err := s.PopTag()
	require.ErrorIs(t, err, ErrExpectedTag)

	s2 := New()
	s2.Push(TagElem(7))
	tag, err := s2.PopTag()
	require.NoError(t, err)
	require.Equal(t, uint64(7), tag)
}

func TestDupSwap(t *testing.T) {
	s := New()
	s.Push(Const(uint256.NewInt(1)))
	s.Push(Const(uint256.NewInt(2)))
	s.Push(Const(uint256.NewInt(3)))

	require.NoError(t, s.Dup(3))
	top, _ := s.Peek()
	v, _ := top.Constant()
	require.Equal(t, uint64(1), v.Uint64())

	require.Error(t, s.Dup(10))

	require.NoError(t, s.Swap(1))
}

func TestBottomSuffixCompatibility(t *testing.T) {
	shorter := FromElements([]Element{ValueElem(), TagElem(5)})
	longer := FromElements([]Element{ValueElem(), ValueElem(), ValueElem(), TagElem(5)})

	require.True(t, shorter.IsBottomSuffixOf(longer))
	require.True(t, ExtraUpperAllValue(shorter, longer))

	longerWithConst := FromElements([]Element{Const(uint256.NewInt(9)), ValueElem(), ValueElem(), TagElem(5)})
	require.True(t, shorter.IsBottomSuffixOf(longerWithConst))
	require.False(t, ExtraUpperAllValue(shorter, longerWithConst))
}

func TestHashDeterministic(t *testing.T) {
	a := FromElements([]Element{Const(uint256.NewInt(1)), TagElem(2)})
	b := FromElements([]Element{Const(uint256.NewInt(1)), TagElem(2)})
	require.Equal(t, a.Hash(), b.Hash())

	c := FromElements([]Element{Const(uint256.NewInt(1)), TagElem(3)})
	require.NotEqual(t, a.Hash(), c.Hash())
}

func TestCloneIndependence(t *testing.T) {
	s := New()
	s.Push(Const(uint256.NewInt(1)))
	clone := s.Clone()
	s.Push(Const(uint256.NewInt(2)))

	require.Equal(t, 1, clone.Len())
	require.Equal(t, 2, s.Len())
}
