package interpreter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
	"github.com/holiman/uint256"
)

// binaryFoldable is the set of opcodes executeOp evaluates via foldBinary
// instead of the generic pop-N/push-Value fallback.
var binaryFoldable = map[instruction.Name]bool{
	instruction.ADD: true, instruction.SUB: true, instruction.MUL: true,
	instruction.AND: true, instruction.OR: true, instruction.XOR: true,
	instruction.SHL: true, instruction.SHR: true,
	instruction.DIV: true, instruction.MOD: true, instruction.SDIV: true, instruction.SMOD: true,
}

// executeOp applies one instruction's symbolic stack effect (spec.md §4.3
// "per-opcode effect table"). Tag, JUMPDEST, JUMP, JUMPI and RecursiveCall
// are handled by the caller, which needs the popped tag value to drive the
// work queue; every other opcode, including terminators such as RETURN,
// STOP, REVERT and INVALID, takes its stack effect from here.
func executeOp(instr instruction.Instruction, stack *stackmodel.Stack, version instruction.Version) error {
	name := instr.Name

	switch {
	case name == instruction.PUSH0:
		stack.Push(stackmodel.Const(new(uint256.Int)))
		return nil

	case name.IsPush() || name == instruction.PUSHIMMUTABLE || name == instruction.PUSHDEPLOYADDRESS || name == instruction.PUSHSIZE:
		return executePush(instr, stack)

	case name == instruction.PushTag:
		value, err := instr.MustValue()
		if err != nil {
			return err
		}
		tag, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing PUSH_Tag value %q: %w", value, err)
		}
		stack.Push(stackmodel.TagElem(tag))
		return nil

	case name == instruction.ASSIGNIMMUTABLE:
		if _, err := stack.Pop(); err != nil {
			return &stackInvalidError{cause: err}
		}
		return nil

	case isDupName(name):
		n := dupDepthOf(name)
		if err := stack.Dup(n); err != nil {
			return &stackInvalidError{cause: err}
		}
		return nil

	case isSwapName(name):
		n := swapDepthOf(name)
		if err := stack.Swap(n); err != nil {
			return &stackInvalidError{cause: err}
		}
		return nil

	case name == instruction.POP:
		if _, err := stack.Pop(); err != nil {
			return &stackInvalidError{cause: err}
		}
		return nil

	case binaryFoldable[name]:
		operands, err := stack.PopN(2)
		if err != nil {
			return &stackInvalidError{cause: err}
		}
		stack.Push(foldBinary(name, operands[0], operands[1]))
		return nil

	default:
		in := instr.InputSize(version)
		out := instr.OutputSize(version)
		if in > 0 {
			if _, err := stack.PopN(in); err != nil {
				return &stackInvalidError{cause: err}
			}
		}
		for i := 0; i < out; i++ {
			stack.Push(stackmodel.ValueElem())
		}
		return nil
	}
}

// executePush handles every PUSH variant whose literal is not a tag id:
// fixed-width PUSH1..32 and PUSH, plus the contract-reference pushes
// (PUSH_ContractHash, PUSH_ContractHashSize, PUSH_Data, PUSHLIB,
// PUSHIMMUTABLE, PUSHDEPLOYADDRESS, PUSHSIZE). A literal that parses as hex
// becomes a Constant (spec.md §4.3: "numeric literals fold to Constant");
// anything else — an unresolved data index, a library marker, an immutable
// key — becomes a Path, preserved verbatim for C4/C7 to consume later.
func executePush(instr instruction.Instruction, stack *stackmodel.Stack) error {
	value, err := instr.MustValue()
	if err != nil {
		return err
	}
	if c, ok := parseHexConstant(value); ok {
		stack.Push(stackmodel.Const(c))
		return nil
	}
	stack.Push(stackmodel.PathElem(value))
	return nil
}

// parseHexConstant parses a bare (no "0x" prefix) hex literal, the form
// solc's --asm-json emits for PUSH values, into a 256-bit constant.
func parseHexConstant(value string) (*uint256.Int, bool) {
	if value == "" {
		return nil, false
	}
	trimmed := strings.TrimPrefix(value, "0x")
	if len(trimmed) > 64 {
		return nil, false
	}
	for _, r := range trimmed {
		if !isHexDigit(r) {
			return nil, false
		}
	}
	c, err := uint256.FromHex("0x" + trimmed)
	if err != nil {
		return nil, false
	}
	return c, true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isDupName(n instruction.Name) bool {
	_, ok := dupDepths[n]
	return ok
}

func isSwapName(n instruction.Name) bool {
	_, ok := swapDepths[n]
	return ok
}

var dupDepths = map[instruction.Name]int{
	instruction.DUP1: 1, instruction.DUP2: 2, instruction.DUP3: 3, instruction.DUP4: 4,
	instruction.DUP5: 5, instruction.DUP6: 6, instruction.DUP7: 7, instruction.DUP8: 8,
	instruction.DUP9: 9, instruction.DUP10: 10, instruction.DUP11: 11, instruction.DUP12: 12,
	instruction.DUP13: 13, instruction.DUP14: 14, instruction.DUP15: 15, instruction.DUP16: 16,
}

var swapDepths = map[instruction.Name]int{
	instruction.SWAP1: 1, instruction.SWAP2: 2, instruction.SWAP3: 3, instruction.SWAP4: 4,
	instruction.SWAP5: 5, instruction.SWAP6: 6, instruction.SWAP7: 7, instruction.SWAP8: 8,
	instruction.SWAP9: 9, instruction.SWAP10: 10, instruction.SWAP11: 11, instruction.SWAP12: 12,
	instruction.SWAP13: 13, instruction.SWAP14: 14, instruction.SWAP15: 15, instruction.SWAP16: 16,
}

func dupDepthOf(n instruction.Name) int  { return dupDepths[n] }
func swapDepthOf(n instruction.Name) int { return swapDepths[n] }
