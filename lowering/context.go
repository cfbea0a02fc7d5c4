package lowering

import (
	"context"
	"fmt"

	"github.com/ethereal-ir/evmla-compiler/blockgraph"
)

// LoweringContext carries everything one block's lowering needs: the
// external collaborators (spec.md §6) plus a backend-operand stack that
// mirrors the symbolic stack's shape one-for-one but holds live Operand
// handles instead of types. The symbolic Stack (stackmodel.Stack) tells
// lowering *what kind* of value sits at a given depth; this operand stack
// tells it *which concrete value* the backend produced for that slot.
type LoweringContext struct {
	Ctx          context.Context
	Builder      Builder
	Libraries    LibraryResolver
	Immutables   ImmutableAllocator
	ContractPath string
	IsDeployCode bool

	operands []Operand
}

func (c *LoweringContext) push(o Operand) { c.operands = append(c.operands, o) }

func (c *LoweringContext) pop() (Operand, error) {
	if len(c.operands) == 0 {
		return nil, fmt.Errorf("lowering: operand stack underflow")
	}
	o := c.operands[len(c.operands)-1]
	c.operands = c.operands[:len(c.operands)-1]
	return o, nil
}

// popN pops n operands, returning them top-first (matching
// stackmodel.Stack.PopN's convention, so callers can zip the two
// pop-results by index).
func (c *LoweringContext) popN(n int) ([]Operand, error) {
	if len(c.operands) < n {
		return nil, fmt.Errorf("lowering: operand stack underflow, have %d need %d", len(c.operands), n)
	}
	out := make([]Operand, n)
	for i := 0; i < n; i++ {
		out[i] = c.operands[len(c.operands)-1-i]
	}
	c.operands = c.operands[:len(c.operands)-n]
	return out, nil
}

func (c *LoweringContext) dup(n int) error {
	if n < 1 || n > len(c.operands) {
		return fmt.Errorf("lowering: DUP%d operand stack underflow", n)
	}
	c.operands = append(c.operands, c.operands[len(c.operands)-n])
	return nil
}

func (c *LoweringContext) swap(n int) error {
	if n < 1 || n > len(c.operands)-1 {
		return fmt.Errorf("lowering: SWAP%d operand stack underflow", n)
	}
	top := len(c.operands) - 1
	other := top - n
	c.operands[top], c.operands[other] = c.operands[other], c.operands[top]
	return nil
}

// depth is the number of live operands, used to compute the backend slot
// index `depth - 1` (or `depth - output_size + i` for multi-value results)
// that spec.md §4.4 says a lowered result is stored at.
func (c *LoweringContext) depth() int { return len(c.operands) }

// slotAddress returns the spec.md §4.4 storage slot for the i-th (0-indexed,
// bottom-up) result of a call producing outputSize values, counted after
// those results have already been pushed onto the operand stack.
func slotAddress(depthAfterPush, outputSize, i int) uint64 {
	return uint64(depthAfterPush - outputSize + i)
}

// FunctionLabel renders the block label spec.md §6 requires for the
// lowered output: "block_<segment>_<tag>/<index>", where index
// disambiguates cloned block versions.
func FunctionLabel(key blockgraph.BlockKey, version int) string {
	return fmt.Sprintf("block_%s_%d/%d", key.Segment, key.Tag, version)
}
