package lowering

import (
	"strings"

	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/ircompile/errs"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
	"github.com/holiman/uint256"
)

// opcodeRule implements spec.md §4.4's per-opcode contract for one
// instruction: pop operands from the running backend operand stack, invoke
// the matching Builder call(s), push/store results. stackBefore is the
// symbolic stack snapshot as it stood immediately before this instruction
// executed — lowering consults it only where a rule's behavior depends on
// an operand's *symbolic* kind (the CODECOPY three-way dispatch).
type opcodeRule func(ctx *LoweringContext, instr instruction.Instruction, stackBefore stackmodel.Stack) error

// elementFromTop returns the stack element at 1-indexed depth n from the
// top (n=1 is the top element), as it stood before the instruction popped
// anything.
func elementFromTop(stack stackmodel.Stack, n int) (stackmodel.Element, bool) {
	elems := stack.Elements()
	idx := len(elems) - n
	if idx < 0 || idx >= len(elems) {
		return stackmodel.Element{}, false
	}
	return elems[idx], true
}

func storeResult(ctx *LoweringContext, result Operand) error {
	ctx.push(result)
	return ctx.Builder.StoreAtSlot(ctx.Ctx, slotAddress(ctx.depth(), 1, 0), result)
}

func unary(fn func(ctx *LoweringContext, a Operand) (Operand, error)) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		a, err := ctx.pop()
		if err != nil {
			return err
		}
		res, err := fn(ctx, a)
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

// binary pops two operands (top-first: a is the element popped first, b
// the element popped second — EVM's "a OP b" convention, e.g. SUB computes
// a-b where a was on top) and stores the single result.
func binary(fn func(ctx *LoweringContext, a, b Operand) (Operand, error)) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		ops, err := ctx.popN(2)
		if err != nil {
			return err
		}
		res, err := fn(ctx, ops[0], ops[1])
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

func ternary(fn func(ctx *LoweringContext, a, b, c Operand) (Operand, error)) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		ops, err := ctx.popN(3)
		if err != nil {
			return err
		}
		res, err := fn(ctx, ops[0], ops[1], ops[2])
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

func nullaryPush(fn func(ctx *LoweringContext) (Operand, error)) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		res, err := fn(ctx)
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

// voidBinary pops two operands and invokes a Builder call with no result
// (MSTORE, SSTORE, TSTORE, ...).
func voidBinary(fn func(ctx *LoweringContext, a, b Operand) error) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		ops, err := ctx.popN(2)
		if err != nil {
			return err
		}
		return fn(ctx, ops[0], ops[1])
	}
}

func voidTernary(fn func(ctx *LoweringContext, a, b, c Operand) error) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		ops, err := ctx.popN(3)
		if err != nil {
			return err
		}
		return fn(ctx, ops[0], ops[1], ops[2])
	}
}

// unsupported produces the exact error text spec.md §4.4/§8 scenario S6
// requires, for an opcode the backend can never lower.
func unsupported(name string) opcodeRule {
	return func(*LoweringContext, instruction.Instruction, stackmodel.Stack) error {
		return &errs.UnsupportedOpcodeError{Opcode: name}
	}
}

func popDiscard(n int) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		_, err := ctx.popN(n)
		return err
	}
}

func pushZeroRule() opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		res, err := ctx.Builder.PushZero(ctx.Ctx)
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

// pushConstantRule lowers a PUSH*/PUSH0 instruction: a hex literal value is
// parsed and handed to the backend as a constant; the synthetic contract
// references (PushTag, PushData, PushContractHash, ...) are handled by
// their own rules below, never this one.
func pushConstantRule() opcodeRule {
	return func(ctx *LoweringContext, instr instruction.Instruction, _ stackmodel.Stack) error {
		if instr.Name == instruction.PUSH0 {
			res, err := ctx.Builder.PushZero(ctx.Ctx)
			if err != nil {
				return err
			}
			return storeResult(ctx, res)
		}
		raw, err := instr.MustValue()
		if err != nil {
			return &errs.MissingValueError{Instruction: string(instr.Name)}
		}
		value, ok := parseHexLiteral(raw)
		if !ok {
			return &errs.ParseError{Field: "value", Cause: nil}
		}
		res, err := ctx.Builder.PushConstant(ctx.Ctx, value)
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

func parseHexLiteral(raw string) (*uint256.Int, bool) {
	trimmed := strings.TrimPrefix(raw, "0x")
	if trimmed == "" {
		trimmed = "0"
	}
	for _, r := range trimmed {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return nil, false
		}
	}
	v, err := uint256.FromHex("0x" + trimmed)
	if err != nil {
		return nil, false
	}
	return v, true
}

// pushTagRule lowers a PUSH_Tag: by the time C7 runs, every JUMP/JUMPI
// target this feeds has already been resolved by C6 into a direct branch
// (spec.md §4.3), so the tag value itself carries no backend-visible data.
// A placeholder nil Operand is pushed purely to keep the operand stack's
// depth in lock-step with the symbolic stack's, so later DUP/SWAP/POP and
// slot-address arithmetic stay correct.
func pushTagRule() opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		ctx.push(nil)
		return nil
	}
}

// pushLibRule resolves PUSHLIB's library path to its runtime address via
// the host-supplied LibraryResolver (spec.md §6).
func pushLibRule() opcodeRule {
	return func(ctx *LoweringContext, instr instruction.Instruction, _ stackmodel.Stack) error {
		path, err := instr.MustValue()
		if err != nil {
			return &errs.MissingValueError{Instruction: string(instr.Name)}
		}
		addr, err := ctx.Libraries.ResolveLibrary(path)
		if err != nil {
			return err
		}
		res, err := ctx.Builder.PushConstant(ctx.Ctx, addr)
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

// pushContractHashRule lowers PUSH_ContractHash once the resolver (C4) has
// already rewritten its value to a contract path (spec.md §8 scenario S5):
// the referenced contract's runtime hash is embedded as a relocatable
// constant, the same builder call CODECOPY's dispatch uses for the
// "copy contract hash" case.
func pushContractHashRule() opcodeRule {
	return func(ctx *LoweringContext, instr instruction.Instruction, _ stackmodel.Stack) error {
		path, err := instr.MustValue()
		if err != nil {
			return &errs.MissingValueError{Instruction: string(instr.Name)}
		}
		res, err := ctx.Builder.CopyContractHash(ctx.Ctx, path)
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

// pushDataRule lowers PUSH_Data: the value names a `.data` index whose
// literal bytes were embedded by the contract's own Assembly tree; the
// index itself is passed through to EmbedStaticData, which the host's
// Builder resolves against the .data map it was constructed from.
func pushDataRule() opcodeRule {
	return func(ctx *LoweringContext, instr instruction.Instruction, _ stackmodel.Stack) error {
		index, err := instr.MustValue()
		if err != nil {
			return &errs.MissingValueError{Instruction: string(instr.Name)}
		}
		res, err := ctx.Builder.EmbedStaticData(ctx.Ctx, index)
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

func pushDeployAddressRule() opcodeRule {
	return nullaryPush(func(ctx *LoweringContext) (Operand, error) {
		return ctx.Builder.DeployAddress(ctx.Ctx)
	})
}

// pushImmutableStandardRule reads an immutable variable's value via its
// allocated storage offset (used by DeployTable and RuntimeTableStandard;
// target B's table overrides this opcode with the no-op variant, see
// RuntimeTableAlternate).
func pushImmutableStandardRule() opcodeRule {
	return func(ctx *LoweringContext, instr instruction.Instruction, _ stackmodel.Stack) error {
		key, err := instr.MustValue()
		if err != nil {
			return &errs.MissingValueError{Instruction: string(instr.Name)}
		}
		offset, err := ctx.Immutables.GetOrAllocate(key)
		if err != nil {
			return err
		}
		var offsetValue uint256.Int
		offsetValue.SetUint64(offset)
		offsetOperand, err := ctx.Builder.PushConstant(ctx.Ctx, &offsetValue)
		if err != nil {
			return err
		}
		res, err := ctx.Builder.StorageLoad(ctx.Ctx, offsetOperand)
		if err != nil {
			return err
		}
		return storeResult(ctx, res)
	}
}

func assignImmutableStandardRule() opcodeRule {
	return func(ctx *LoweringContext, instr instruction.Instruction, _ stackmodel.Stack) error {
		key, err := instr.MustValue()
		if err != nil {
			return &errs.MissingValueError{Instruction: string(instr.Name)}
		}
		value, err := ctx.pop()
		if err != nil {
			return err
		}
		offset, err := ctx.Immutables.Allocate(key)
		if err != nil {
			return err
		}
		var offsetValue uint256.Int
		offsetValue.SetUint64(offset)
		offsetOperand, err := ctx.Builder.PushConstant(ctx.Ctx, &offsetValue)
		if err != nil {
			return err
		}
		return ctx.Builder.StorageStore(ctx.Ctx, offsetOperand, value)
	}
}

// pushImmutableNoopRule and assignImmutableNoopRule implement target B's
// "PUSHIMMUTABLE/ASSIGNIMMUTABLE are no-ops that push zero" rule (spec.md
// §4.4): ASSIGNIMMUTABLE still must pop its operand to keep the stack
// depth consistent, it just never reaches the Builder.
func pushImmutableNoopRule() opcodeRule { return pushZeroRule() }

func assignImmutableNoopRule() opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		_, err := ctx.pop()
		return err
	}
}

// dupRule/swapRule/popRule only touch the operand stack: no Builder call
// corresponds to a DUP/SWAP/POP, since the backend's SSA values already
// have stable identities — duplicating or reordering Operand handles is
// bookkeeping, not code generation.
func dupRule(n int) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		return ctx.dup(n)
	}
}

func swapRule(n int) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		return ctx.swap(n)
	}
}

func popRule() opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		_, err := ctx.pop()
		return err
	}
}

func logRule(topicCount int) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
		ops, err := ctx.popN(2 + topicCount)
		if err != nil {
			return err
		}
		offset, length := ops[0], ops[1]
		topics := ops[2:]
		return ctx.Builder.Log(ctx.Ctx, offset, length, topics)
	}
}

// codeCopyRuleFor builds the Runtime-target-A CODECOPY rule (spec.md §4.4):
// a three-way dispatch on the symbolic kind of the *source* operand (the
// second item popped — EVM's CODECOPY(destOffset, offset, length), offset
// is the source position in code), falling through to a plain calldata
// copy when none of the special cases match.
func codeCopyRuleFor(selfContractPath func(ctx *LoweringContext) string) opcodeRule {
	return func(ctx *LoweringContext, _ instruction.Instruction, stackBefore stackmodel.Stack) error {
		sourceElem, _ := elementFromTop(stackBefore, 2)
		ops, err := ctx.popN(3)
		if err != nil {
			return err
		}
		destOffset, srcOffset, length := ops[0], ops[1], ops[2]

		if c, ok := sourceElem.Constant(); ok && c.IsUint64() && c.Uint64() == 0x0b {
			// Library marker: the destination is the fixed slot solc uses to
			// splice in the PUSHLIB-style 0x73 prefix byte.
			marker, err := ctx.Builder.LibraryMarker(ctx.Ctx, 0x73)
			if err != nil {
				return err
			}
			return ctx.Builder.MemoryStore8(ctx.Ctx, destOffset, marker)
		}
		if data, ok := sourceElem.Data(); ok {
			embedded, err := ctx.Builder.EmbedStaticData(ctx.Ctx, data)
			if err != nil {
				return err
			}
			return ctx.Builder.MemoryStore(ctx.Ctx, destOffset, embedded)
		}
		if path, ok := sourceElem.Path(); ok && path != selfContractPath(ctx) {
			hash, err := ctx.Builder.CopyContractHash(ctx.Ctx, path)
			if err != nil {
				return err
			}
			return ctx.Builder.MemoryStore(ctx.Ctx, destOffset, hash)
		}
		return ctx.Builder.CalldataCopy(ctx.Ctx, destOffset, srcOffset, length)
	}
}
