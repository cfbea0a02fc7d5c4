package stackmodel

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrStackUnderflow mirrors the teacher's ErrStackUnderflow shape
// (vm/interpreter.go: &ErrStackUnderflow{stackLen, required}), adapted to
// the symbolic stack's single-element pop/dup/swap operations instead of
// the EVM's per-opcode min-stack check.
type ErrStackUnderflow struct {
	Op       string
	Len      int
	Required int
}

func (e *ErrStackUnderflow) Error() string {
	return fmt.Sprintf("stack underflow on %s: have %d, need %d", e.Op, e.Len, e.Required)
}

// ErrExpectedTag is returned by PopTag when the top of stack is not a Tag
// element (spec.md §3: "pop_tag (fails with 'expected tag' if the top is
// not a Tag)").
var ErrExpectedTag = errors.New("expected tag")

// Stack is an ordered sequence of StackElement values (spec.md §3). It
// owns its elements by value — no pointers, no aliasing (spec.md §9,
// "Stack as ownership root") — so cloning a Stack for a block snapshot is
// a cheap slice copy.
type Stack struct {
	elements []Element
}

// New returns an empty stack.
func New() Stack { return Stack{} }

// FromElements builds a stack from an existing slice, copying it so the
// caller's slice and the new Stack never alias.
func FromElements(elements []Element) Stack {
	cp := make([]Element, len(elements))
	copy(cp, elements)
	return Stack{elements: cp}
}

// Len returns the number of elements currently on the stack.
func (s Stack) Len() int { return len(s.elements) }

// Elements returns a defensive copy of the stack's contents, bottom
// first.
func (s Stack) Elements() []Element {
	cp := make([]Element, len(s.elements))
	copy(cp, s.elements)
	return cp
}

// Push appends an element to the top of the stack.
func (s *Stack) Push(e Element) {
	s.elements = append(s.elements, e)
}

// Pop removes and returns the top element.
func (s *Stack) Pop() (Element, error) {
	if len(s.elements) == 0 {
		return Element{}, &ErrStackUnderflow{Op: "POP", Len: 0, Required: 1}
	}
	top := s.elements[len(s.elements)-1]
	s.elements = s.elements[:len(s.elements)-1]
	return top, nil
}

// PopN pops n elements, returning them top-first (elements[0] was the
// former top of stack).
func (s *Stack) PopN(n int) ([]Element, error) {
	if len(s.elements) < n {
		return nil, &ErrStackUnderflow{Op: "POP*", Len: len(s.elements), Required: n}
	}
	out := make([]Element, n)
	for i := 0; i < n; i++ {
		out[i] = s.elements[len(s.elements)-1-i]
	}
	s.elements = s.elements[:len(s.elements)-n]
	return out, nil
}

// PopTag pops the top element and requires it to be a Tag, per spec.md §3.
func (s *Stack) PopTag() (uint64, error) {
	e, err := s.Pop()
	if err != nil {
		return 0, err
	}
	tag, ok := e.Tag()
	if !ok {
		return 0, ErrExpectedTag
	}
	return tag, nil
}

// Peek returns the element at the top of the stack without removing it.
func (s Stack) Peek() (Element, error) {
	if len(s.elements) == 0 {
		return Element{}, &ErrStackUnderflow{Op: "PEEK", Len: 0, Required: 1}
	}
	return s.elements[len(s.elements)-1], nil
}

// Dup duplicates the element at depth n (1-indexed from the top, matching
// EVM DUPn semantics) and pushes the copy.
func (s *Stack) Dup(n int) error {
	if n < 1 || n > len(s.elements) {
		return &ErrStackUnderflow{Op: fmt.Sprintf("DUP%d", n), Len: len(s.elements), Required: n}
	}
	s.elements = append(s.elements, s.elements[len(s.elements)-n])
	return nil
}

// Swap exchanges the top of stack with the element at depth n (1-indexed
// from just below the top, matching EVM SWAPn semantics).
func (s *Stack) Swap(n int) error {
	if n < 1 || n > len(s.elements)-1 {
		return &ErrStackUnderflow{Op: fmt.Sprintf("SWAP%d", n), Len: len(s.elements), Required: n + 1}
	}
	top := len(s.elements) - 1
	other := top - n
	s.elements[top], s.elements[other] = s.elements[other], s.elements[top]
	return nil
}

// Clone returns an independent copy of the stack.
func (s Stack) Clone() Stack {
	return FromElements(s.elements)
}

// Hash returns a deterministic digest of the stack's shape, serving as the
// identity of a stack *shape* for block-duplication decisions (spec.md
// §3). It is computed over a canonical byte encoding of each element in
// bottom-to-top order using the teacher's own hashing primitive
// (go-ethereum's Keccak256, which wraps golang.org/x/crypto/sha3).
func (s Stack) Hash() string {
	h := crypto.NewKeccakState()
	for _, e := range s.elements {
		h.Write([]byte{byte(e.kind)})
		switch e.kind {
		case KindConstant:
			b := e.constant.Bytes32()
			h.Write(b[:])
		case KindTag:
			var buf [8]byte
			for i := 0; i < 8; i++ {
				buf[i] = byte(e.tag >> (56 - 8*i))
			}
			h.Write(buf[:])
		case KindPath:
			h.Write([]byte(e.path))
		case KindData:
			h.Write([]byte(e.data))
		case KindValue:
			// no payload
		}
		h.Write([]byte{0xff}) // element separator
	}
	var out [32]byte
	h.Read(out[:])
	return fmt.Sprintf("%x", out)
}

// IsBottomSuffixOf reports whether s is a strict bottom-suffix of other:
// other is longer, and other's trailing |s| elements equal s exactly
// element-for-element (spec.md §4.3 step 2, §8 property 6).
func (s Stack) IsBottomSuffixOf(other Stack) bool {
	if len(other.elements) <= len(s.elements) {
		return false
	}
	offset := len(other.elements) - len(s.elements)
	for i, e := range s.elements {
		if !e.Equal(other.elements[offset+i]) {
			return false
		}
	}
	return true
}

// ExtraUpperAllValue reports whether every element of other above the
// bottom |s| elements is the Value kind — the second half of the
// block-compatibility rule (spec.md §4.3 step 2).
func ExtraUpperAllValue(shorter, longer Stack) bool {
	if len(longer.elements) <= len(shorter.elements) {
		return false
	}
	extra := longer.elements[:len(longer.elements)-len(shorter.elements)]
	for _, e := range extra {
		if e.Kind() != KindValue {
			return false
		}
	}
	return true
}

// String renders the stack bottom-to-top for debug output.
func (s Stack) String() string {
	out := "["
	for i, e := range s.elements {
		if i > 0 {
			out += ", "
		}
		out += e.String()
	}
	return out + "]"
}
