// Package stackmodel implements the symbolic stack used by the control-flow
// recovery pass (C6): the element variants of spec.md §3
// (Constant | Tag | Path | Data | Value) and the stack they live on.
package stackmodel

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Kind discriminates the StackElement sum. Go has no tagged union, so the
// discriminant plus per-variant payload fields stand in for it, the same
// pattern the assembly package uses for Data entries.
type Kind uint8

const (
	KindConstant Kind = iota
	KindTag
	KindPath
	KindData
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "Constant"
	case KindTag:
		return "Tag"
	case KindPath:
		return "Path"
	case KindData:
		return "Data"
	case KindValue:
		return "Value"
	default:
		return "Unknown"
	}
}

// Element is one value living on the symbolic stack.
//
// Invariant (spec.md §3): Tag values are always reduced modulo 2^64;
// Constant may be up to 256 bits, modeled with uint256.Int (the teacher's
// own 256-bit integer library).
type Element struct {
	kind     Kind
	constant *uint256.Int
	tag      uint64
	path     string
	data     string
}

// Const builds a Constant element, reducing modulo 2^256 implicitly via
// uint256.Int's fixed width.
func Const(v *uint256.Int) Element {
	if v == nil {
		v = new(uint256.Int)
	}
	return Element{kind: KindConstant, constant: v}
}

// TagElem builds a Tag element, reducing the id modulo 2^64 per spec.md §3.
func TagElem(id uint64) Element {
	return Element{kind: KindTag, tag: id}
}

// PathElem builds a Path element (a reference to a contract's full path).
func PathElem(path string) Element {
	return Element{kind: KindPath, path: path}
}

// DataElem builds a Data element (a reference to a `.data` literal).
func DataElem(data string) Element {
	return Element{kind: KindData, data: data}
}

// ValueElem is the abstract "unknown runtime value."
func ValueElem() Element { return Element{kind: KindValue} }

// Kind reports which variant this element is.
func (e Element) Kind() Kind { return e.kind }

// Constant returns the element's constant payload; ok is false unless
// Kind() == KindConstant.
func (e Element) Constant() (*uint256.Int, bool) {
	if e.kind != KindConstant {
		return nil, false
	}
	return e.constant, true
}

// Tag returns the element's tag payload; ok is false unless
// Kind() == KindTag.
func (e Element) Tag() (uint64, bool) {
	if e.kind != KindTag {
		return 0, false
	}
	return e.tag, true
}

// Path returns the element's path payload; ok is false unless
// Kind() == KindPath.
func (e Element) Path() (string, bool) {
	if e.kind != KindPath {
		return "", false
	}
	return e.path, true
}

// Data returns the element's data-literal payload; ok is false unless
// Kind() == KindData.
func (e Element) Data() (string, bool) {
	if e.kind != KindData {
		return "", false
	}
	return e.data, true
}

// Equal reports whether two elements have the same kind and payload. Used
// by the block-compatibility suffix rule (spec.md §8 property 6).
func (e Element) Equal(other Element) bool {
	if e.kind != other.kind {
		return false
	}
	switch e.kind {
	case KindConstant:
		return e.constant.Eq(other.constant)
	case KindTag:
		return e.tag == other.tag
	case KindPath:
		return e.path == other.path
	case KindData:
		return e.data == other.data
	case KindValue:
		return true
	default:
		return false
	}
}

// String renders the element for debug-dump and test-failure output.
func (e Element) String() string {
	switch e.kind {
	case KindConstant:
		return fmt.Sprintf("Constant(%s)", e.constant.Hex())
	case KindTag:
		return fmt.Sprintf("Tag(%d)", e.tag)
	case KindPath:
		return fmt.Sprintf("Path(%q)", e.path)
	case KindData:
		return fmt.Sprintf("Data(%q)", e.data)
	case KindValue:
		return "Value"
	default:
		return "Unknown"
	}
}
