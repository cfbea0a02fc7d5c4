package interpreter

import (
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
	"github.com/holiman/uint256"
)

// foldableOps lists the binary opcodes the interpreter evaluates symbolically
// when both operands are known (spec.md §4.3 "Constant folding"). KECCAK256,
// EXP, ADDMOD/MULMOD and the comparison family are deliberately excluded:
// they either have no compact closed form worth tracking or are never
// produced with literal operands in practice, so they always collapse to
// Value (see DESIGN.md).
var foldableOps = map[instruction.Name]func(z, x, y *uint256.Int) (overflow bool){
	instruction.ADD: func(z, x, y *uint256.Int) bool { return z.AddOverflow(x, y) },
	instruction.SUB: func(z, x, y *uint256.Int) bool { return z.SubOverflow(x, y) },
	instruction.MUL: func(z, x, y *uint256.Int) bool { return z.MulOverflow(x, y) },
	instruction.AND: func(z, x, y *uint256.Int) bool { z.And(x, y); return false },
	instruction.OR:  func(z, x, y *uint256.Int) bool { z.Or(x, y); return false },
	instruction.XOR: func(z, x, y *uint256.Int) bool { z.Xor(x, y); return false },
	instruction.SHL: func(z, x, y *uint256.Int) bool { z.Lsh(y, uint(shiftAmount(x))); return false },
	instruction.SHR: func(z, x, y *uint256.Int) bool { z.Rsh(y, uint(shiftAmount(x))); return false },

	// Supplemental folds (SPEC_FULL.md §5): not evaluated by the legacy
	// front-end's own constant folder, but harmless and sometimes present
	// after a prior optimization pass substitutes literal divisors.
	instruction.DIV:  func(z, x, y *uint256.Int) bool { z.Div(x, y); return false },
	instruction.MOD:  func(z, x, y *uint256.Int) bool { z.Mod(x, y); return false },
	instruction.SDIV: func(z, x, y *uint256.Int) bool { z.SDiv(x, y); return false },
	instruction.SMOD: func(z, x, y *uint256.Int) bool { z.SMod(x, y); return false },
}

// shiftAmount clamps a shift count to uint256's documented 256-bit shift
// range; EVM SHL/SHR with a shift count >= 256 always yield zero, which
// uint256.Lsh/Rsh already produce for any count >= 256, so no separate
// guard is needed beyond fitting the count into a uint.
func shiftAmount(x *uint256.Int) uint64 {
	if !x.IsUint64() {
		return 256
	}
	return x.Uint64()
}

// foldBinary evaluates a constant-foldable binary opcode over two popped
// operands (top of stack first, per EVM stack order) and returns the
// resulting element. Per spec.md §4.3:
//
//   - Constant ⊕ Constant folds to a Constant, unless the 256-bit result
//     overflows, in which case the result collapses to Value.
//   - ADD or SUB of a Tag and a Constant (either order) folds to a new
//     Tag; a result that does not fit in 64 bits collapses to Value. Tag
//     arithmetic models PC-relative jump-table addressing, so the result
//     must still look like a Tag to whatever PUSH_Tag/JUMP consumes it
//     downstream.
//   - Anything else collapses to Value.
func foldBinary(name instruction.Name, top, second stackmodel.Element) stackmodel.Element {
	fold, ok := foldableOps[name]
	if !ok {
		return stackmodel.ValueElem()
	}

	if topConst, ok1 := top.Constant(); ok1 {
		if secondConst, ok2 := second.Constant(); ok2 {
			var z uint256.Int
			if fold(&z, topConst, secondConst) {
				return stackmodel.ValueElem()
			}
			return stackmodel.Const(&z)
		}
	}

	if tag, ok := tagAndConstant(name, top, second); ok {
		return stackmodel.TagElem(tag)
	}
	return stackmodel.ValueElem()
}

// tagAndConstant detects the Tag⊕Constant shape (in either stack order) and
// returns the folded tag id. Per spec.md §5, "Tag arithmetic that would
// overflow 64 bits collapses to Value" — so, like the Constant⊕Constant
// path, which collapses a 256-bit overflow to Value, a tag computation
// whose true 256-bit result does not fit in 64 bits is reported as not-ok
// rather than truncated, and foldBinary falls through to Value.
func tagAndConstant(name instruction.Name, top, second stackmodel.Element) (uint64, bool) {
	var tagVal uint64
	var constant *uint256.Int
	tagIsTop := false
	switch {
	case isTagOf(top) && isConstOf(second):
		tagVal, _ = top.Tag()
		constant, _ = second.Constant()
		tagIsTop = true
	case isTagOf(second) && isConstOf(top):
		tagVal, _ = second.Tag()
		constant, _ = top.Constant()
	default:
		return 0, false
	}

	var base uint256.Int
	base.SetUint64(tagVal)
	var z uint256.Int
	switch name {
	case instruction.ADD:
		if z.AddOverflow(&base, constant) {
			return 0, false
		}
	case instruction.SUB:
		var overflow bool
		if tagIsTop {
			overflow = z.SubOverflow(&base, constant)
		} else {
			overflow = z.SubOverflow(constant, &base)
		}
		if overflow {
			return 0, false
		}
	default:
		return 0, false
	}
	if !z.IsUint64() {
		return 0, false
	}
	return z.Uint64(), true
}

func isTagOf(e stackmodel.Element) bool   { _, ok := e.Tag(); return ok }
func isConstOf(e stackmodel.Element) bool { _, ok := e.Constant(); return ok }
