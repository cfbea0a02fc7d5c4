package lowering

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// Operand is an opaque handle to a value produced by the Builder backend: a
// pushed constant, a slot read, or a prior call's result. The lowering
// pipeline never inspects an Operand's internals — it only threads values
// returned from one Builder call into the arguments of the next, the same
// way the original's codegen threads `inkwell`/LLVM value handles (spec.md
// §9 "Dynamic dispatch over opcodes": the opcode table is the dispatch, not
// the operand representation).
type Operand any

// Builder is the SSA-backend collaborator that actually emits code. It is
// an external interface per spec.md §6 — nothing in this module implements
// it for production use; NullBuilder below exists purely so lowering can be
// exercised in tests without a real backend.
//
// One method per semantic builder call named in spec.md §4.4's
// per-opcode contract, grouped by EVM opcode family.
type Builder interface {
	// Arithmetic.
	IntegerAdd(ctx context.Context, a, b Operand) (Operand, error)
	IntegerSub(ctx context.Context, a, b Operand) (Operand, error)
	IntegerMul(ctx context.Context, a, b Operand) (Operand, error)
	IntegerDiv(ctx context.Context, a, b Operand) (Operand, error)
	IntegerSDiv(ctx context.Context, a, b Operand) (Operand, error)
	IntegerMod(ctx context.Context, a, b Operand) (Operand, error)
	IntegerSMod(ctx context.Context, a, b Operand) (Operand, error)
	IntegerAddMod(ctx context.Context, a, b, m Operand) (Operand, error)
	IntegerMulMod(ctx context.Context, a, b, m Operand) (Operand, error)
	IntegerExp(ctx context.Context, base, exponent Operand) (Operand, error)
	IntegerSignExtend(ctx context.Context, byteNum, value Operand) (Operand, error)

	// Comparison.
	IntegerLt(ctx context.Context, a, b Operand) (Operand, error)
	IntegerGt(ctx context.Context, a, b Operand) (Operand, error)
	IntegerSlt(ctx context.Context, a, b Operand) (Operand, error)
	IntegerSgt(ctx context.Context, a, b Operand) (Operand, error)
	IntegerEq(ctx context.Context, a, b Operand) (Operand, error)
	IntegerIsZero(ctx context.Context, a Operand) (Operand, error)

	// Bitwise.
	IntegerAnd(ctx context.Context, a, b Operand) (Operand, error)
	IntegerOr(ctx context.Context, a, b Operand) (Operand, error)
	IntegerXor(ctx context.Context, a, b Operand) (Operand, error)
	IntegerNot(ctx context.Context, a Operand) (Operand, error)
	IntegerByte(ctx context.Context, index, value Operand) (Operand, error)
	IntegerShl(ctx context.Context, shift, value Operand) (Operand, error)
	IntegerShr(ctx context.Context, shift, value Operand) (Operand, error)
	IntegerSar(ctx context.Context, shift, value Operand) (Operand, error)

	Keccak256(ctx context.Context, offset, length Operand) (Operand, error)

	// Memory.
	MemoryLoad(ctx context.Context, offset Operand) (Operand, error)
	MemoryStore(ctx context.Context, offset, value Operand) error
	MemoryStore8(ctx context.Context, offset, value Operand) error
	MemorySize(ctx context.Context) (Operand, error)

	// Persistent and transient storage. TLOAD/TSTORE are only ever lowered
	// through these on target A — target B's lowering table rejects them
	// before the Builder is consulted (spec.md §4.4).
	StorageLoad(ctx context.Context, slot Operand) (Operand, error)
	StorageStore(ctx context.Context, slot, value Operand) error
	TransientLoad(ctx context.Context, slot Operand) (Operand, error)
	TransientStore(ctx context.Context, slot, value Operand) error

	// Calldata / code, target A's CALLDATA*/CODE* aliasing (spec.md §4.4).
	CalldataLoad(ctx context.Context, offset Operand) (Operand, error)
	CalldataSize(ctx context.Context) (Operand, error)
	CalldataCopy(ctx context.Context, destOffset, srcOffset, length Operand) error
	CodeSize(ctx context.Context) (Operand, error)
	CodeCopy(ctx context.Context, destOffset, srcOffset, length Operand) error

	// Calls and contract creation.
	Call(ctx context.Context, gas, addr, value, argsOffset, argsLen, retOffset, retLen Operand) (Operand, error)
	DelegateCall(ctx context.Context, gas, addr, argsOffset, argsLen, retOffset, retLen Operand) (Operand, error)
	StaticCall(ctx context.Context, gas, addr, argsOffset, argsLen, retOffset, retLen Operand) (Operand, error)
	Create(ctx context.Context, value, offset, length Operand) (Operand, error)
	Create2(ctx context.Context, value, offset, length, salt Operand) (Operand, error)

	// Logging, termination.
	Log(ctx context.Context, offset, length Operand, topics []Operand) error
	Return(ctx context.Context, offset, length Operand) error
	Revert(ctx context.Context, offset, length Operand) error
	Stop(ctx context.Context) error
	Invalid(ctx context.Context) error

	// Environment reads (zero-operand builder calls).
	Address(ctx context.Context) (Operand, error)
	Balance(ctx context.Context, addr Operand) (Operand, error)
	Origin(ctx context.Context) (Operand, error)
	Caller(ctx context.Context) (Operand, error)
	CallValue(ctx context.Context) (Operand, error)
	GasPrice(ctx context.Context) (Operand, error)
	ExtCodeSize(ctx context.Context, addr Operand) (Operand, error)
	ExtCodeHash(ctx context.Context, addr Operand) (Operand, error)
	ReturnDataSize(ctx context.Context) (Operand, error)
	ReturnDataCopy(ctx context.Context, destOffset, srcOffset, length Operand) error
	BlockHash(ctx context.Context, number Operand) (Operand, error)
	Coinbase(ctx context.Context) (Operand, error)
	Timestamp(ctx context.Context) (Operand, error)
	BlockNumber(ctx context.Context) (Operand, error)
	PrevRandao(ctx context.Context) (Operand, error)
	GasLimit(ctx context.Context) (Operand, error)
	ChainID(ctx context.Context) (Operand, error)
	SelfBalance(ctx context.Context) (Operand, error)
	BaseFee(ctx context.Context) (Operand, error)
	Gas(ctx context.Context) (Operand, error)
	DeployAddress(ctx context.Context) (Operand, error)

	// Literal and library-reference pushes.
	PushConstant(ctx context.Context, value *uint256.Int) (Operand, error)
	PushZero(ctx context.Context) (Operand, error)
	LibraryMarker(ctx context.Context, marker byte) (Operand, error)
	EmbedStaticData(ctx context.Context, data string) (Operand, error)
	CopyContractHash(ctx context.Context, path string) (Operand, error)

	// Stack-slot and control-flow primitives used by the function emission
	// state machine (spec.md §4.4).
	StoreAtSlot(ctx context.Context, slot uint64, value Operand) error
	Branch(ctx context.Context, label string) error
	BranchIf(ctx context.Context, cond Operand, trueLabel, falseLabel string) error
	InvokeFunction(ctx context.Context, entryLabel string, args []Operand) ([]Operand, error)
	DispatchEntry(ctx context.Context, isDeployCode bool, deployLabel, runtimeLabel string) error
}

// LibraryResolver resolves a contract's full path to the 256-bit library
// address substituted during PUSHLIB lowering (spec.md §6,
// "Library-address resolution hook").
type LibraryResolver interface {
	ResolveLibrary(path string) (*uint256.Int, error)
}

// ImmutableAllocator assigns and recalls storage offsets for immutable
// variables during PUSHIMMUTABLE/ASSIGNIMMUTABLE lowering (spec.md §6,
// "Immutable-variable hook").
type ImmutableAllocator interface {
	Allocate(key string) (uint64, error)
	GetOrAllocate(key string) (uint64, error)
}

// NullBuilder is a Builder test double: every call records its name and
// operands in Calls and returns a distinct synthetic Operand, so lowering
// tests can assert on call shape without a real backend.
type NullBuilder struct {
	Calls []string
	next  int
}

func (b *NullBuilder) record(name string) Operand {
	b.Calls = append(b.Calls, name)
	b.next++
	return fmt.Sprintf("%%%d", b.next)
}

func (b *NullBuilder) recordVoid(name string) { b.Calls = append(b.Calls, name) }

func (b *NullBuilder) IntegerAdd(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerAdd"), nil
}
func (b *NullBuilder) IntegerSub(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerSub"), nil
}
func (b *NullBuilder) IntegerMul(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerMul"), nil
}
func (b *NullBuilder) IntegerDiv(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerDiv"), nil
}
func (b *NullBuilder) IntegerSDiv(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerSDiv"), nil
}
func (b *NullBuilder) IntegerMod(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerMod"), nil
}
func (b *NullBuilder) IntegerSMod(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerSMod"), nil
}
func (b *NullBuilder) IntegerAddMod(context.Context, Operand, Operand, Operand) (Operand, error) {
	return b.record("IntegerAddMod"), nil
}
func (b *NullBuilder) IntegerMulMod(context.Context, Operand, Operand, Operand) (Operand, error) {
	return b.record("IntegerMulMod"), nil
}
func (b *NullBuilder) IntegerExp(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerExp"), nil
}
func (b *NullBuilder) IntegerSignExtend(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerSignExtend"), nil
}
func (b *NullBuilder) IntegerLt(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerLt"), nil
}
func (b *NullBuilder) IntegerGt(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerGt"), nil
}
func (b *NullBuilder) IntegerSlt(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerSlt"), nil
}
func (b *NullBuilder) IntegerSgt(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerSgt"), nil
}
func (b *NullBuilder) IntegerEq(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerEq"), nil
}
func (b *NullBuilder) IntegerIsZero(context.Context, Operand) (Operand, error) {
	return b.record("IntegerIsZero"), nil
}
func (b *NullBuilder) IntegerAnd(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerAnd"), nil
}
func (b *NullBuilder) IntegerOr(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerOr"), nil
}
func (b *NullBuilder) IntegerXor(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerXor"), nil
}
func (b *NullBuilder) IntegerNot(context.Context, Operand) (Operand, error) {
	return b.record("IntegerNot"), nil
}
func (b *NullBuilder) IntegerByte(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerByte"), nil
}
func (b *NullBuilder) IntegerShl(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerShl"), nil
}
func (b *NullBuilder) IntegerShr(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerShr"), nil
}
func (b *NullBuilder) IntegerSar(context.Context, Operand, Operand) (Operand, error) {
	return b.record("IntegerSar"), nil
}
func (b *NullBuilder) Keccak256(context.Context, Operand, Operand) (Operand, error) {
	return b.record("Keccak256"), nil
}
func (b *NullBuilder) MemoryLoad(context.Context, Operand) (Operand, error) {
	return b.record("MemoryLoad"), nil
}
func (b *NullBuilder) MemoryStore(context.Context, Operand, Operand) error {
	b.recordVoid("MemoryStore")
	return nil
}
func (b *NullBuilder) MemoryStore8(context.Context, Operand, Operand) error {
	b.recordVoid("MemoryStore8")
	return nil
}
func (b *NullBuilder) MemorySize(context.Context) (Operand, error) {
	return b.record("MemorySize"), nil
}
func (b *NullBuilder) StorageLoad(context.Context, Operand) (Operand, error) {
	return b.record("StorageLoad"), nil
}
func (b *NullBuilder) StorageStore(context.Context, Operand, Operand) error {
	b.recordVoid("StorageStore")
	return nil
}
func (b *NullBuilder) TransientLoad(context.Context, Operand) (Operand, error) {
	return b.record("TransientLoad"), nil
}
func (b *NullBuilder) TransientStore(context.Context, Operand, Operand) error {
	b.recordVoid("TransientStore")
	return nil
}
func (b *NullBuilder) CalldataLoad(context.Context, Operand) (Operand, error) {
	return b.record("CalldataLoad"), nil
}
func (b *NullBuilder) CalldataSize(context.Context) (Operand, error) {
	return b.record("CalldataSize"), nil
}
func (b *NullBuilder) CalldataCopy(context.Context, Operand, Operand, Operand) error {
	b.recordVoid("CalldataCopy")
	return nil
}
func (b *NullBuilder) CodeSize(context.Context) (Operand, error) {
	return b.record("CodeSize"), nil
}
func (b *NullBuilder) CodeCopy(context.Context, Operand, Operand, Operand) error {
	b.recordVoid("CodeCopy")
	return nil
}
func (b *NullBuilder) Call(context.Context, Operand, Operand, Operand, Operand, Operand, Operand, Operand) (Operand, error) {
	return b.record("Call"), nil
}
func (b *NullBuilder) DelegateCall(context.Context, Operand, Operand, Operand, Operand, Operand, Operand) (Operand, error) {
	return b.record("DelegateCall"), nil
}
func (b *NullBuilder) StaticCall(context.Context, Operand, Operand, Operand, Operand, Operand, Operand) (Operand, error) {
	return b.record("StaticCall"), nil
}
func (b *NullBuilder) Create(context.Context, Operand, Operand, Operand) (Operand, error) {
	return b.record("Create"), nil
}
func (b *NullBuilder) Create2(context.Context, Operand, Operand, Operand, Operand) (Operand, error) {
	return b.record("Create2"), nil
}
func (b *NullBuilder) Log(context.Context, Operand, Operand, []Operand) error {
	b.recordVoid("Log")
	return nil
}
func (b *NullBuilder) Return(context.Context, Operand, Operand) error {
	b.recordVoid("Return")
	return nil
}
func (b *NullBuilder) Revert(context.Context, Operand, Operand) error {
	b.recordVoid("Revert")
	return nil
}
func (b *NullBuilder) Stop(context.Context) error {
	b.recordVoid("Stop")
	return nil
}
func (b *NullBuilder) Invalid(context.Context) error {
	b.recordVoid("Invalid")
	return nil
}
func (b *NullBuilder) Address(context.Context) (Operand, error)  { return b.record("Address"), nil }
func (b *NullBuilder) Balance(context.Context, Operand) (Operand, error) {
	return b.record("Balance"), nil
}
func (b *NullBuilder) Origin(context.Context) (Operand, error)    { return b.record("Origin"), nil }
func (b *NullBuilder) Caller(context.Context) (Operand, error)    { return b.record("Caller"), nil }
func (b *NullBuilder) CallValue(context.Context) (Operand, error) { return b.record("CallValue"), nil }
func (b *NullBuilder) GasPrice(context.Context) (Operand, error)  { return b.record("GasPrice"), nil }
func (b *NullBuilder) ExtCodeSize(context.Context, Operand) (Operand, error) {
	return b.record("ExtCodeSize"), nil
}
func (b *NullBuilder) ExtCodeHash(context.Context, Operand) (Operand, error) {
	return b.record("ExtCodeHash"), nil
}
func (b *NullBuilder) ReturnDataSize(context.Context) (Operand, error) {
	return b.record("ReturnDataSize"), nil
}
func (b *NullBuilder) ReturnDataCopy(context.Context, Operand, Operand, Operand) error {
	b.recordVoid("ReturnDataCopy")
	return nil
}
func (b *NullBuilder) BlockHash(context.Context, Operand) (Operand, error) {
	return b.record("BlockHash"), nil
}
func (b *NullBuilder) Coinbase(context.Context) (Operand, error)  { return b.record("Coinbase"), nil }
func (b *NullBuilder) Timestamp(context.Context) (Operand, error) { return b.record("Timestamp"), nil }
func (b *NullBuilder) BlockNumber(context.Context) (Operand, error) {
	return b.record("BlockNumber"), nil
}
func (b *NullBuilder) PrevRandao(context.Context) (Operand, error) {
	return b.record("PrevRandao"), nil
}
func (b *NullBuilder) GasLimit(context.Context) (Operand, error) { return b.record("GasLimit"), nil }
func (b *NullBuilder) ChainID(context.Context) (Operand, error)  { return b.record("ChainID"), nil }
func (b *NullBuilder) SelfBalance(context.Context) (Operand, error) {
	return b.record("SelfBalance"), nil
}
func (b *NullBuilder) BaseFee(context.Context) (Operand, error) { return b.record("BaseFee"), nil }
func (b *NullBuilder) Gas(context.Context) (Operand, error)     { return b.record("Gas"), nil }
func (b *NullBuilder) DeployAddress(context.Context) (Operand, error) {
	return b.record("DeployAddress"), nil
}
func (b *NullBuilder) PushConstant(context.Context, *uint256.Int) (Operand, error) {
	return b.record("PushConstant"), nil
}
func (b *NullBuilder) PushZero(context.Context) (Operand, error) { return b.record("PushZero"), nil }
func (b *NullBuilder) LibraryMarker(context.Context, byte) (Operand, error) {
	return b.record("LibraryMarker"), nil
}
func (b *NullBuilder) EmbedStaticData(context.Context, string) (Operand, error) {
	return b.record("EmbedStaticData"), nil
}
func (b *NullBuilder) CopyContractHash(context.Context, string) (Operand, error) {
	return b.record("CopyContractHash"), nil
}
func (b *NullBuilder) StoreAtSlot(context.Context, uint64, Operand) error {
	b.recordVoid("StoreAtSlot")
	return nil
}
func (b *NullBuilder) Branch(context.Context, string) error {
	b.recordVoid("Branch")
	return nil
}
func (b *NullBuilder) BranchIf(context.Context, Operand, string, string) error {
	b.recordVoid("BranchIf")
	return nil
}
func (b *NullBuilder) InvokeFunction(_ context.Context, _ string, args []Operand) ([]Operand, error) {
	b.recordVoid("InvokeFunction")
	return make([]Operand, len(args)), nil
}
func (b *NullBuilder) DispatchEntry(context.Context, bool, string, string) error {
	b.recordVoid("DispatchEntry")
	return nil
}

var _ Builder = (*NullBuilder)(nil)
