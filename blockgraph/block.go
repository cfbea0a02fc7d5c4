// Package blockgraph splits an instruction stream into basic blocks keyed
// by (code segment, tag) — C5 of spec.md §4.2.
package blockgraph

import (
	"fmt"

	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
)

// CodeSegment distinguishes deploy (constructor) code from runtime
// (deployed-body) code (spec.md glossary "Code segment").
type CodeSegment uint8

const (
	Deploy CodeSegment = iota
	Runtime
)

func (s CodeSegment) String() string {
	if s == Runtime {
		return "runtime"
	}
	return "deploy"
}

// CrossSegmentThreshold is the jump-target value above which a destination
// denotes the Runtime segment rather than the Deploy one (spec.md glossary
// "Cross-segment jump").
const CrossSegmentThreshold = 1 << 32

// BlockKey identifies one basic block template within a code segment
// (spec.md §3).
type BlockKey struct {
	Segment CodeSegment
	Tag     uint64
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s/%d", k.Segment, k.Tag)
}

// ResolveJumpTarget applies the cross-segment rule of spec.md §3
// ("Derived invariant: whenever a jump destination exceeds 2^32, it
// denotes a runtime-code block: the resolver subtracts 2^32 and sets
// segment to Runtime") to a raw jump-destination value discovered during
// symbolic interpretation.
func ResolveJumpTarget(currentSegment CodeSegment, destination uint64) BlockKey {
	if destination > CrossSegmentThreshold {
		return BlockKey{Segment: Runtime, Tag: destination - CrossSegmentThreshold}
	}
	return BlockKey{Segment: currentSegment, Tag: destination}
}

// BlockElement pairs one Instruction with a snapshot of the stack after
// that instruction executes (spec.md §3).
type BlockElement struct {
	Instruction instruction.Instruction
	Stack       stackmodel.Stack
}

// Block is one basic block, either a template (InitialStack unset,
// Predecessors empty, as produced by the block builder) or a reconstructed
// version (as produced by the symbolic interpreter, C6).
type Block struct {
	Key          BlockKey
	Elements     []BlockElement
	InitialStack stackmodel.Stack
	ExtraHashes  []string
	Predecessors map[BlockKey]struct{}

	// Fallthrough is the key of the block that immediately follows this one
	// in the original instruction stream, or nil if this is the last block
	// of its segment. It is used to resolve a JUMPI's not-taken branch and
	// the block a RecursiveCall continues in (spec.md §4.2: solc always
	// emits the continuation as the very next block), since neither names
	// that block itself.
	Fallthrough *BlockKey
}

// Clone returns an independent copy of the block template, safe to
// specialize into a distinct block version without mutating the shared
// template map (spec.md §4.3 step 2, "clone the template").
func (b *Block) Clone() *Block {
	elements := make([]BlockElement, len(b.Elements))
	copy(elements, b.Elements)
	return &Block{
		Key:          b.Key,
		Elements:     elements,
		InitialStack: b.InitialStack.Clone(),
		Predecessors: map[BlockKey]struct{}{},
		Fallthrough:  b.Fallthrough,
	}
}

// InsertPredecessor records a new predecessor block key.
func (b *Block) InsertPredecessor(pred BlockKey) {
	if b.Predecessors == nil {
		b.Predecessors = map[BlockKey]struct{}{}
	}
	b.Predecessors[pred] = struct{}{}
}

// String renders the block for debug output (SPEC_FULL.md §5
// "supplemented" pretty-printer).
func (b *Block) String() string {
	out := fmt.Sprintf("block %s (stack_in = %s) {\n", b.Key, b.InitialStack)
	for _, el := range b.Elements {
		out += fmt.Sprintf("  %s -> %s\n", el.Instruction.Name, el.Stack)
	}
	return out + "}"
}
