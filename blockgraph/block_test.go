package blockgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveJumpTargetSameSegment(t *testing.T) {
	key := ResolveJumpTarget(Deploy, 12)
	require.Equal(t, BlockKey{Segment: Deploy, Tag: 12}, key)
}

func TestResolveJumpTargetCrossSegment(t *testing.T) {
	key := ResolveJumpTarget(Deploy, CrossSegmentThreshold+17)
	require.Equal(t, BlockKey{Segment: Runtime, Tag: 17}, key)
}

func TestResolveJumpTargetBoundary(t *testing.T) {
	// spec.md §4.3: "If the popped value > 2^32" — the comparison is
	// strict, so a destination of exactly 2^32 still denotes the current
	// segment, not the runtime one.
	key := ResolveJumpTarget(Deploy, CrossSegmentThreshold)
	require.Equal(t, BlockKey{Segment: Deploy, Tag: CrossSegmentThreshold}, key)
}

func TestBlockCloneIndependence(t *testing.T) {
	b := &Block{Key: BlockKey{Segment: Deploy, Tag: 1}}
	b.InsertPredecessor(BlockKey{Segment: Deploy, Tag: 0})

	clone := b.Clone()
	clone.InsertPredecessor(BlockKey{Segment: Deploy, Tag: 2})

	require.Len(t, b.Predecessors, 1)
	require.Len(t, clone.Predecessors, 2)
}
