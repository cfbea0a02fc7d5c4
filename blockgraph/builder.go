package blockgraph

import (
	"fmt"
	"strconv"

	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
)

// deadBlockTagBase is far above any tag id a real jump table could ever
// encode (tags are reduced mod 2^64, but solc never emits billions of
// tags); it is used only to key unreachable trailing instructions that
// follow a terminator with no following Tag/JUMPDEST, so each run of dead
// code gets its own never-jumped-to block instead of silently merging
// into whatever block happens to follow.
const deadBlockTagBase = uint64(1) << 62

// Build splits one instruction stream into basic-block templates keyed by
// (segment, tag) (spec.md §4.2).
//
// A new block begins: at stream start; immediately after JUMP, JUMPI,
// RETURN, REVERT, STOP, INVALID, or a synthetic RecursiveReturn; and at
// any Tag. A JUMPDEST does not begin a new block: it stays in the block
// that the Tag before it opened. The block's key is (segment, tag-id-or-
// synthetic-id); for stream-start blocks, the tag id is zero.
//
// Output templates have empty InitialStack/Predecessors: those are filled
// in by the symbolic interpreter (C6) once a block is actually reached.
func Build(segment CodeSegment, code []instruction.Instruction) (map[BlockKey]*Block, error) {
	elements := map[BlockKey][]BlockElement{}
	order := []BlockKey{}

	currentKey := BlockKey{Segment: segment, Tag: 0}
	startNewBlock := false
	deadBlocks := uint64(0)

	for _, instr := range code {
		switch {
		// Tag is the only block head that carries the id a jump targets;
		// JUMPDEST always immediately follows it in real solc EVMLA output
		// and carries no Value of its own (instruction.Name.IsBlockHead()
		// is true for both, but only Tag's id should open a new block —
		// matching interpreter.go's run(), which treats both names as the
		// same no-op case).
		case instr.Name == instruction.Tag:
			tag, err := tagValue(instr)
			if err != nil {
				return nil, err
			}
			currentKey = BlockKey{Segment: segment, Tag: tag}
			startNewBlock = false
		case startNewBlock:
			currentKey = BlockKey{Segment: segment, Tag: deadBlockTagBase + deadBlocks}
			deadBlocks++
			startNewBlock = false
		}

		if _, seen := elements[currentKey]; !seen {
			order = append(order, currentKey)
		}
		elements[currentKey] = append(elements[currentKey], BlockElement{
			Instruction: instr,
			Stack:       stackmodel.New(),
		})

		if instr.Name.IsTerminator() {
			startNewBlock = true
		}
	}

	blocks := make(map[BlockKey]*Block, len(elements))
	for i, key := range order {
		block := &Block{
			Key:      key,
			Elements: elements[key],
		}
		if i+1 < len(order) {
			next := order[i+1]
			block.Fallthrough = &next
		}
		blocks[key] = block
	}
	return blocks, nil
}

func tagValue(instr instruction.Instruction) (uint64, error) {
	value, err := instr.MustValue()
	if err != nil {
		return 0, err
	}
	tag, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing tag id %q: %w", value, err)
	}
	return tag, nil
}
