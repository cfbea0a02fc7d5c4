// Package interpreter implements the symbolic stack interpreter and
// control-flow recovery pass (C6, spec.md §4.3): given the basic-block
// templates produced by blockgraph.Build, it reconstructs every reachable
// stack shape by breadth-first traversal of the jump graph, cloning and
// versioning blocks whenever two arrivals bring incompatible stacks.
package interpreter

import (
	"errors"

	"github.com/ethereal-ir/evmla-compiler/blockgraph"
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
)

// Function is the reconstructed control-flow graph for one contract's code
// (both its deploy and runtime segments share a single Function, since a
// cross-segment jump can move between them — spec.md §3 "Cross-segment
// jump").
type Function struct {
	Blocks    map[blockgraph.BlockKey][]*blockgraph.Block
	StackSize int
}

// Interpret runs the BFS symbolic interpreter over a set of basic-block
// templates (spec.md §4.3). The initial work queue seeds both segment entry
// points — (Deploy, 0) and (Runtime, 0) — each with an empty stack; a
// segment with no code at all (e.g. a contract with no constructor logic
// beyond its return) simply has no template at that key and is skipped.
func Interpret(templates map[blockgraph.BlockKey]*blockgraph.Block, version instruction.Version) (*Function, error) {
	fn := &Function{Blocks: map[blockgraph.BlockKey][]*blockgraph.Block{}}
	visited := map[string]*blockgraph.Block{}

	var q workQueue
	for _, seed := range []blockgraph.BlockKey{
		{Segment: blockgraph.Deploy, Tag: 0},
		{Segment: blockgraph.Runtime, Tag: 0},
	} {
		if _, ok := templates[seed]; ok {
			q.push(queueElement{Key: seed, EntryStack: stackmodel.New()})
		}
	}

	for {
		elem, ok := q.popFront()
		if !ok {
			break
		}
		if err := fn.processElement(templates, visited, elem, version, &q); err != nil {
			return nil, err
		}
	}

	fn.finalizeStackSize()
	return fn, nil
}

// processElement advances one work-queue entry: reuse a visited or
// compatible block version if one already covers this stack shape,
// otherwise clone the template, execute it, and enqueue its successors.
func (fn *Function) processElement(
	templates map[blockgraph.BlockKey]*blockgraph.Block,
	visited map[string]*blockgraph.Block,
	elem queueElement,
	version instruction.Version,
	q *workQueue,
) error {
	stackHash := elem.EntryStack.Hash()
	vKey := visitKey(elem.Key, stackHash)

	if b, ok := visited[vKey]; ok {
		linkPredecessor(b, elem.Predecessor)
		return nil
	}

	if existing := findCompatibleBlock(fn.Blocks[elem.Key], elem.EntryStack); existing != nil {
		visited[vKey] = existing
		linkPredecessor(existing, elem.Predecessor)
		return nil
	}

	template, ok := templates[elem.Key]
	if !ok {
		return &UndeclaredBlockError{Key: elem.Key.String()}
	}

	block := template.Clone()
	block.InitialStack = elem.EntryStack.Clone()
	linkPredecessor(block, elem.Predecessor)

	fn.Blocks[elem.Key] = append(fn.Blocks[elem.Key], block)
	visited[vKey] = block

	return fn.run(block, version, q)
}

func linkPredecessor(b *blockgraph.Block, pred *blockgraph.BlockKey) {
	if pred != nil {
		b.InsertPredecessor(*pred)
	}
}

// run re-executes a cloned block's instructions against its InitialStack,
// recording the post-instruction stack snapshot on each BlockElement and
// enqueueing successor work for every control-flow opcode it meets. A
// stack-invalid condition (pop on empty stack, DUP/SWAP past the bottom)
// truncates the block in place to a single INVALID instruction and stops
// without enqueueing any successor (spec.md §4.3 "Truncation on invalid
// stack state"): the block is reachable, but whatever comes after it in
// the original stream is not, for this particular arrival.
func (fn *Function) run(block *blockgraph.Block, version instruction.Version, q *workQueue) error {
	cur := block.InitialStack.Clone()
	segment := block.Key.Segment

	for i := range block.Elements {
		instr := block.Elements[i].Instruction

		switch instr.Name {
		case instruction.Tag, instruction.JUMPDEST:
			// no stack effect; falls through to the next element.

		case instruction.JUMP, instruction.RecursiveCall:
			destTag, err := cur.PopTag()
			if err != nil {
				return fn.truncate(block, i, cur, err)
			}
			target := blockgraph.ResolveJumpTarget(segment, destTag)
			pred := block.Key
			q.push(queueElement{Key: target, Predecessor: &pred, EntryStack: cur.Clone()})
			if instr.Name == instruction.RecursiveCall && block.Fallthrough != nil {
				// A recursive call returns control to its caller: the
				// continuation is the block immediately following the
				// call site, just as JUMPI's not-taken branch is.
				q.push(queueElement{Key: *block.Fallthrough, Predecessor: &pred, EntryStack: cur.Clone()})
			}

		case instruction.JUMPI:
			destTag, err := cur.PopTag()
			if err != nil {
				return fn.truncate(block, i, cur, err)
			}
			if _, err := cur.Pop(); err != nil { // condition value, discarded
				return fn.truncate(block, i, cur, err)
			}
			target := blockgraph.ResolveJumpTarget(segment, destTag)
			pred := block.Key
			q.push(queueElement{Key: target, Predecessor: &pred, EntryStack: cur.Clone()})
			if block.Fallthrough != nil {
				q.push(queueElement{Key: *block.Fallthrough, Predecessor: &pred, EntryStack: cur.Clone()})
			}

		default:
			if err := executeOp(instr, &cur, version); err != nil {
				return fn.truncate(block, i, cur, err)
			}
		}

		block.Elements[i].Stack = cur.Clone()
		if s := cur.Len(); s > fn.StackSize {
			fn.StackSize = s
		}
	}
	return nil
}

// truncate handles a stack-invalid condition encountered mid-block: per
// spec.md §4.3, everything from the failing instruction onward is replaced
// with a single INVALID, and no further successors are enqueued for this
// arrival. The stack-invalid condition itself is not an error the caller
// needs to see — it is the expected outcome of interpreting code along a
// path EVM execution would never actually take.
func (fn *Function) truncate(block *blockgraph.Block, at int, cur stackmodel.Stack, cause error) error {
	if !isStackInvalid(cause) {
		return cause
	}
	block.Elements = append(block.Elements[:at:at], blockgraph.BlockElement{
		Instruction: instruction.Instruction{Name: instruction.INVALID},
		Stack:       cur,
	})
	return nil
}

// isStackInvalid reports whether err represents a stack-invalid condition
// (a pop past the bottom, a DUP/SWAP reaching past it, or a JUMP/JUMPI
// target popped from a non-Tag element) rather than a structural/parse
// failure that must abort compilation outright.
func isStackInvalid(err error) bool {
	var wrapped *stackInvalidError
	if errors.As(err, &wrapped) {
		return true
	}
	var underflow *stackmodel.ErrStackUnderflow
	if errors.As(err, &underflow) {
		return true
	}
	return errors.Is(err, stackmodel.ErrExpectedTag)
}

// findCompatibleBlock implements the block-reuse rule of spec.md §8
// property 6: a candidate stack shape is compatible with an already
// reconstructed block version when one is a strict bottom-suffix of the
// other and the extra upper elements are all the unconstrained Value kind,
// or when the two shapes are identical outright.
func findCompatibleBlock(existing []*blockgraph.Block, candidate stackmodel.Stack) *blockgraph.Block {
	for _, b := range existing {
		if stacksEqual(b.InitialStack, candidate) {
			return b
		}
		if candidate.IsBottomSuffixOf(b.InitialStack) && stackmodel.ExtraUpperAllValue(candidate, b.InitialStack) {
			return b
		}
		if b.InitialStack.IsBottomSuffixOf(candidate) && stackmodel.ExtraUpperAllValue(b.InitialStack, candidate) {
			return b
		}
	}
	return nil
}

func stacksEqual(a, b stackmodel.Stack) bool {
	if a.Len() != b.Len() {
		return false
	}
	ae, be := a.Elements(), b.Elements()
	for i := range ae {
		if !ae[i].Equal(be[i]) {
			return false
		}
	}
	return true
}

// finalizeStackSize is a no-op hook: StackSize is maintained incrementally
// in run() as the high-water mark of every stack this function ever
// derives, matching spec.md §3's "stack_size: the maximum stack depth
// observed across every reconstructed block version."
func (fn *Function) finalizeStackSize() {}
