package lowering

import (
	"sort"

	"github.com/ethereal-ir/evmla-compiler/blockgraph"
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/interpreter"
	"github.com/ethereal-ir/evmla-compiler/ircompile/errs"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
)

// Target selects which of the lowering tables (spec.md §4.4's "three
// variations") a function's blocks are lowered against.
type Target int

const (
	TargetDeploy Target = iota
	TargetRuntimeStandard
	TargetRuntimeAlternate
	TargetCrossContract
)

func tableFor(target Target) map[instruction.Name]opcodeRule {
	switch target {
	case TargetDeploy:
		return DeployTable
	case TargetRuntimeStandard:
		return RuntimeTableStandard
	case TargetRuntimeAlternate:
		return RuntimeTableAlternate
	default:
		return CrossContractTable
	}
}

// tableForSegment picks the lowering table for one block, given the
// contract-wide runtime target choice: a contract's deploy segment always
// lowers through DeployTable (spec.md §4.4), regardless of which runtime
// variation it uses, since interpreter.Function covers both segments of
// one contract under a single Blocks map (see its doc comment) and a
// cross-segment jump can move a block from one segment to the other.
func tableForSegment(segment blockgraph.CodeSegment, runtimeTarget Target) map[instruction.Name]opcodeRule {
	if segment == blockgraph.Deploy {
		return DeployTable
	}
	return tableFor(runtimeTarget)
}

// ReturnKind describes what a function's RecursiveReturn writes back to its
// caller — checked against spec.md §4.4's invariant "Only integers and
// structures can be returned".
type ReturnKind int

const (
	ReturnNone ReturnKind = iota
	ReturnInteger
	ReturnStruct
)

// FunctionSignature supplies the facts about one recovered function that
// C6's block graph does not itself carry: its entry point, which lowering
// table applies, and the shape of its return value. Per-instruction
// RecursiveCall/RecursiveReturn metadata (spec.md §4.4 lists "stack_hash,
// output_size, return_address" as instruction fields) does not fit this
// compiler's single-Value Instruction model (spec.md §3); this
// implementation instead recovers a call's target and continuation the
// same way C6 already does for JUMP/JUMPI — from the symbolic stack and
// the block's Fallthrough pointer — and takes a function's *return* shape
// as a caller-supplied fact, since that is a property of the function being
// emitted, not of any one instruction (see DESIGN.md).
type FunctionSignature struct {
	EntryKey blockgraph.BlockKey

	// Target selects the runtime-segment lowering table: TargetRuntimeStandard
	// or TargetRuntimeAlternate (spec.md §4.4's "three variations"). Deploy-
	// segment blocks always lower through DeployTable regardless of this
	// field, per tableForSegment.
	Target           Target
	Return           ReturnKind
	ReturnOutputSize int
	ReturnPointer    uint64
}

// stackBeforeOf returns the symbolic stack as it stood immediately before
// block.Elements[i] executed.
func stackBeforeOf(block *blockgraph.Block, i int) stackmodel.Stack {
	if i == 0 {
		return block.InitialStack
	}
	return block.Elements[i-1].Stack
}

// findBlockVersion locates the block version under key whose InitialStack
// hashes to stackHash — the Go encoding of spec.md §4.4's "branches to the
// block identified by (return_address, stack_hash)".
func findBlockVersion(fn *interpreter.Function, key blockgraph.BlockKey, stackHash string) (*blockgraph.Block, int, bool) {
	versions := fn.Blocks[key]
	for idx, v := range versions {
		if v.InitialStack.Hash() == stackHash {
			return v, idx, true
		}
	}
	return nil, 0, false
}

// LowerFunction lowers every block of fn (interpreter.Function already
// covers one whole contract's reconstructed graph, deploy and runtime
// segments together — see its doc comment), each block against the table
// tableForSegment picks for its segment, implementing the function-emission state machine of spec.md §4.4:
// Entry -> Block(k,i) -> ... -> Return. sig.EntryKey is checked for
// existence up front as a sanity check that the requested entry point was
// actually reconstructed by C6. The initial Entry dispatch on the
// is-deploy-code flag (spec.md §6) is emitted once per contract via
// emitEntryDispatch. C6's block graph does not partition reconstructed
// blocks into distinct per-callee function records — a RecursiveCall reads
// as a plain intra-graph jump with a fallthrough-as-return-continuation,
// exactly as interpreter.go's run() already treats it — so sig.Return and
// sig.ReturnOutputSize describe the contract's own top-level return
// convention, and every RecursiveReturn site branches to the same "return"
// label (see DESIGN.md).
func LowerFunction(ctx *LoweringContext, fn *interpreter.Function, sig FunctionSignature, emitEntryDispatch bool) error {
	if emitEntryDispatch {
		deployLabel := FunctionLabel(blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 0}, 0)
		runtimeLabel := FunctionLabel(blockgraph.BlockKey{Segment: blockgraph.Runtime, Tag: 0}, 0)
		if err := ctx.Builder.DispatchEntry(ctx.Ctx, ctx.IsDeployCode, deployLabel, runtimeLabel); err != nil {
			return err
		}
	}

	versions, ok := fn.Blocks[sig.EntryKey]
	if !ok || len(versions) == 0 {
		return &interpreter.UndeclaredBlockError{Key: sig.EntryKey.String()}
	}

	for _, key := range sortedKeys(fn) {
		table := tableForSegment(key.Segment, sig.Target)
		for _, block := range fn.Blocks[key] {
			if err := lowerBlock(ctx, fn, table, key.Segment, block, sig); err != nil {
				return err
			}
		}
	}
	return nil
}

// sortedKeys renders block iteration order deterministic for reproducible
// output (spec.md §5 notes BFS *discovery* order is unobserved, but the
// emitted label stream should still not depend on Go's randomized map
// iteration).
func sortedKeys(fn *interpreter.Function) []blockgraph.BlockKey {
	keys := make([]blockgraph.BlockKey, 0, len(fn.Blocks))
	for k := range fn.Blocks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Segment != keys[j].Segment {
			return keys[i].Segment < keys[j].Segment
		}
		return keys[i].Tag < keys[j].Tag
	})
	return keys
}

func lowerBlock(ctx *LoweringContext, fn *interpreter.Function, table map[instruction.Name]opcodeRule, segment blockgraph.CodeSegment, block *blockgraph.Block, sig FunctionSignature) error {
	for i, el := range block.Elements {
		instr := el.Instruction
		switch instr.Name {
		case instruction.Tag, instruction.JUMPDEST:
			continue

		case instruction.JUMP:
			before := stackBeforeOf(block, i)
			top, err := before.Peek()
			if err != nil {
				return err
			}
			tagVal, ok := top.Tag()
			if !ok {
				errs.Invariant("JUMP target is not a Tag")
			}
			if _, err := ctx.pop(); err != nil { // discard the PushTag placeholder operand
				return err
			}
			targetKey := blockgraph.ResolveJumpTarget(segment, tagVal)
			targetHash := el.Stack.Hash()
			target, idx, ok := findBlockVersion(fn, targetKey, targetHash)
			if !ok {
				return &interpreter.UndeclaredBlockError{Key: targetKey.String()}
			}
			_ = target
			return ctx.Builder.Branch(ctx.Ctx, FunctionLabel(targetKey, idx))

		case instruction.JUMPI:
			before := stackBeforeOf(block, i)
			top, err := before.Peek()
			if err != nil {
				return err
			}
			tagVal, ok := top.Tag()
			if !ok {
				errs.Invariant("JUMPI target is not a Tag")
			}
			ops, err := ctx.popN(2)
			if err != nil {
				return err
			}
			cond := ops[1]
			targetKey := blockgraph.ResolveJumpTarget(segment, tagVal)
			branchHash := el.Stack.Hash()
			_, takenIdx, ok := findBlockVersion(fn, targetKey, branchHash)
			if !ok {
				return &interpreter.UndeclaredBlockError{Key: targetKey.String()}
			}
			takenLabel := FunctionLabel(targetKey, takenIdx)

			notTakenLabel := ""
			if block.Fallthrough != nil {
				if _, ntIdx, ok := findBlockVersion(fn, *block.Fallthrough, branchHash); ok {
					notTakenLabel = FunctionLabel(*block.Fallthrough, ntIdx)
				}
			}
			return ctx.Builder.BranchIf(ctx.Ctx, cond, takenLabel, notTakenLabel)

		case instruction.RecursiveCall:
			before := stackBeforeOf(block, i)
			top, err := before.Peek()
			if err != nil {
				return err
			}
			tagVal, ok := top.Tag()
			if !ok {
				errs.Invariant("RecursiveCall target is not a Tag")
			}
			if _, err := ctx.pop(); err != nil {
				return err
			}
			targetKey := blockgraph.ResolveJumpTarget(segment, tagVal)
			entryHash := el.Stack.Hash()
			_, entryIdx, ok := findBlockVersion(fn, targetKey, entryHash)
			if !ok {
				return &interpreter.UndeclaredBlockError{Key: targetKey.String()}
			}
			if _, err := ctx.Builder.InvokeFunction(ctx.Ctx, FunctionLabel(targetKey, entryIdx), nil); err != nil {
				return err
			}
			if block.Fallthrough != nil {
				if _, contIdx, ok := findBlockVersion(fn, *block.Fallthrough, el.Stack.Hash()); ok {
					return ctx.Builder.Branch(ctx.Ctx, FunctionLabel(*block.Fallthrough, contIdx))
				}
			}
			continue

		case instruction.RecursiveReturn:
			vals, err := ctx.popN(sig.ReturnOutputSize)
			if err != nil {
				return err
			}
			switch sig.Return {
			case ReturnInteger:
				if sig.ReturnOutputSize != 1 {
					errs.Invariant("Only integers and structures can be returned")
				}
				if err := ctx.Builder.StoreAtSlot(ctx.Ctx, sig.ReturnPointer, vals[0]); err != nil {
					return err
				}
			case ReturnStruct:
				for idx, v := range vals {
					if err := ctx.Builder.StoreAtSlot(ctx.Ctx, sig.ReturnPointer+uint64(idx), v); err != nil {
						return err
					}
				}
			default:
				errs.Invariant("Only integers and structures can be returned")
			}
			return ctx.Builder.Branch(ctx.Ctx, "return")

		default:
			rule, ok := table[instr.Name]
			if !ok {
				return &errs.UnsupportedOpcodeError{Opcode: string(instr.Name)}
			}
			if err := rule(ctx, instr, stackBeforeOf(block, i)); err != nil {
				return err
			}
		}
	}
	return nil
}
