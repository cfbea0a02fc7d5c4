package interpreter

import (
	"github.com/ethereal-ir/evmla-compiler/blockgraph"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
)

// queueElement is one pending unit of work for the BFS symbolic
// interpreter (spec.md §4.3): "reach block Key with the stack shape
// EntryStack, having arrived from Predecessor". The queue is a literal
// FIFO slice (append at the back, pop from the front) rather than
// recursion, per spec.md's explicit "work queue" framing (see DESIGN.md
// Open Question decisions).
type queueElement struct {
	Key         blockgraph.BlockKey
	Predecessor *blockgraph.BlockKey
	EntryStack  stackmodel.Stack
}

// visitKey identifies one (block, stack-shape) pair already processed, so
// the interpreter never re-derives the same block version twice (spec.md
// §8 property: "no duplicate block versions").
func visitKey(key blockgraph.BlockKey, stackHash string) string {
	return key.String() + "|" + stackHash
}

// workQueue is a minimal FIFO wrapper over a slice.
type workQueue struct {
	items []queueElement
}

func (q *workQueue) push(e queueElement) {
	q.items = append(q.items, e)
}

func (q *workQueue) popFront() (queueElement, bool) {
	if len(q.items) == 0 {
		return queueElement{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}
