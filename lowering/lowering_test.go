package lowering

import (
	"context"
	"testing"

	"github.com/ethereal-ir/evmla-compiler/blockgraph"
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/interpreter"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func push(name instruction.Name, value string) instruction.Instruction {
	v := value
	return instruction.Instruction{Name: name, Value: &v}
}

func tag(id string) instruction.Instruction {
	v := id
	return instruction.Instruction{Name: instruction.Tag, Value: &v}
}

type fakeLibraries struct{}

func (fakeLibraries) ResolveLibrary(path string) (*uint256.Int, error) {
	var v uint256.Int
	v.SetUint64(0x1234)
	return &v, nil
}

type fakeImmutables struct{ next uint64 }

func (f *fakeImmutables) Allocate(string) (uint64, error) {
	f.next++
	return f.next, nil
}

func (f *fakeImmutables) GetOrAllocate(key string) (uint64, error) { return f.Allocate(key) }

func newCtx(builder *NullBuilder, isDeploy bool) *LoweringContext {
	return &LoweringContext{
		Ctx:          context.Background(),
		Builder:      builder,
		Libraries:    fakeLibraries{},
		Immutables:   &fakeImmutables{},
		ContractPath: "contracts/Foo.sol:Foo",
		IsDeployCode: isDeploy,
	}
}

func interpretOneSegment(t *testing.T, segment blockgraph.CodeSegment, code []instruction.Instruction) *interpreter.Function {
	t.Helper()
	templates, err := blockgraph.Build(segment, code)
	require.NoError(t, err)
	fn, err := interpreter.Interpret(templates, instruction.Version{Major: 0, Minor: 8, Patch: 21})
	require.NoError(t, err)
	return fn
}

// straight-line ADD: matches S1/S2 in spirit (spec.md §8) — a minimal block
// with no branches, just constant pushes feeding one arithmetic op.
func TestLowerFunction_StraightLineArithmetic(t *testing.T) {
	code := []instruction.Instruction{
		push(instruction.PUSH1, "02"),
		push(instruction.PUSH1, "03"),
		{Name: instruction.ADD},
		{Name: instruction.STOP},
	}
	fn := interpretOneSegment(t, blockgraph.Deploy, code)

	builder := &NullBuilder{}
	ctx := newCtx(builder, true)
	sig := FunctionSignature{EntryKey: blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 0}, Target: TargetDeploy}

	err := LowerFunction(ctx, fn, sig, true)
	require.NoError(t, err)

	require.Equal(t, []string{"DispatchEntry", "PushConstant", "StoreAtSlot", "PushConstant", "StoreAtSlot", "IntegerAdd", "StoreAtSlot", "Stop"}, builder.Calls)
}

// Unsupported-opcode propagation: spec.md §8 scenario S6 — CALLCODE must
// fail with the exact textual error, and the error must be returned (not
// panicked) so a caller can continue with a sibling contract.
func TestLowerFunction_UnsupportedOpcodeExactMessage(t *testing.T) {
	code := []instruction.Instruction{
		push(instruction.PUSH1, "00"),
		push(instruction.PUSH1, "00"),
		push(instruction.PUSH1, "00"),
		push(instruction.PUSH1, "00"),
		push(instruction.PUSH1, "00"),
		push(instruction.PUSH1, "00"),
		push(instruction.PUSH1, "00"),
		{Name: instruction.CALLCODE},
		{Name: instruction.STOP},
	}
	fn := interpretOneSegment(t, blockgraph.Runtime, code)

	builder := &NullBuilder{}
	ctx := newCtx(builder, false)
	sig := FunctionSignature{EntryKey: blockgraph.BlockKey{Segment: blockgraph.Runtime, Tag: 0}, Target: TargetRuntimeStandard}

	err := LowerFunction(ctx, fn, sig, true)
	require.Error(t, err)
	require.EqualError(t, err, "The `CALLCODE` instruction is not supported")
}

// Cross-segment jump (glossary "Cross-segment jump"): a deploy-code JUMP to
// tag 2^32 + 1 lands in runtime tag 1.
func TestLowerFunction_CrossSegmentJump(t *testing.T) {
	deployCode := []instruction.Instruction{
		push(instruction.PushTag, "4294967297"), // 2^32 + 1
		{Name: instruction.JUMP},
	}
	runtimeCode := []instruction.Instruction{
		tag("1"),
		{Name: instruction.STOP},
	}

	deployTemplates, err := blockgraph.Build(blockgraph.Deploy, deployCode)
	require.NoError(t, err)
	runtimeTemplates, err := blockgraph.Build(blockgraph.Runtime, runtimeCode)
	require.NoError(t, err)

	merged := map[blockgraph.BlockKey]*blockgraph.Block{}
	for k, v := range deployTemplates {
		merged[k] = v
	}
	for k, v := range runtimeTemplates {
		merged[k] = v
	}

	fn, err := interpreter.Interpret(merged, instruction.Version{Major: 0, Minor: 8, Patch: 21})
	require.NoError(t, err)

	require.Contains(t, fn.Blocks, blockgraph.BlockKey{Segment: blockgraph.Runtime, Tag: 1})

	builder := &NullBuilder{}
	ctx := newCtx(builder, true)
	sig := FunctionSignature{EntryKey: blockgraph.BlockKey{Segment: blockgraph.Deploy, Tag: 0}, Target: TargetDeploy}

	err = LowerFunction(ctx, fn, sig, true)
	require.NoError(t, err)
	require.Contains(t, builder.Calls, "Branch")
	require.Contains(t, builder.Calls, "Stop")
}

// pushTagRule must keep the backend operand stack depth-synchronized with
// the symbolic stack even though it records no real value.
func TestPushTagRule_KeepsOperandDepthInSync(t *testing.T) {
	builder := &NullBuilder{}
	ctx := newCtx(builder, true)

	require.NoError(t, pushTagRule()(ctx, instruction.Instruction{Name: instruction.PushTag}, stackmodel.New()))
	require.Equal(t, 1, ctx.depth())

	op, err := ctx.pop()
	require.NoError(t, err)
	require.Nil(t, op)
}

// PUSHLIB resolves through the LibraryResolver collaborator (spec.md §6).
func TestPushLibRule(t *testing.T) {
	builder := &NullBuilder{}
	ctx := newCtx(builder, true)

	instr := push(instruction.PUSHLIB, "contracts/Lib.sol:Lib")
	require.NoError(t, pushLibRule()(ctx, instr, stackmodel.New()))
	require.Equal(t, []string{"PushConstant", "StoreAtSlot"}, builder.Calls)
	require.Equal(t, 1, ctx.depth())
}

// A missing Value on an opcode that requires one fails with MissingValue,
// never with a panic (spec.md §7).
func TestPushConstantRule_MissingValue(t *testing.T) {
	builder := &NullBuilder{}
	ctx := newCtx(builder, true)

	err := pushConstantRule()(ctx, instruction.Instruction{Name: instruction.PUSH1}, stackmodel.New())
	require.Error(t, err)
}

// CODECOPY's three-way dispatch: a Data-kind source embeds static data
// rather than falling back to a plain calldata copy.
func TestCodeCopyRule_DataSource(t *testing.T) {
	builder := &NullBuilder{}
	ctx := newCtx(builder, false)

	stack := stackmodel.New()
	stack.Push(stackmodel.Const(uint256.NewInt(0))) // length (bottom of this triple)
	stack.Push(stackmodel.DataElem("7"))             // source offset (second from top)
	stack.Push(stackmodel.Const(uint256.NewInt(0))) // destOffset (top)

	ctx.push("%len")
	ctx.push("%src")
	ctx.push("%dest")

	rule := codeCopyRuleFor(func(*LoweringContext) string { return "contracts/Foo.sol:Foo" })
	require.NoError(t, rule(ctx, instruction.Instruction{Name: instruction.CODECOPY}, stack))
	require.Equal(t, []string{"EmbedStaticData", "MemoryStore"}, builder.Calls)
}

// CODECOPY falls back to a plain calldata copy when the source operand
// carries no special symbolic kind.
func TestCodeCopyRule_Fallback(t *testing.T) {
	builder := &NullBuilder{}
	ctx := newCtx(builder, false)

	stack := stackmodel.New()
	stack.Push(stackmodel.Const(uint256.NewInt(0))) // length
	stack.Push(stackmodel.ValueElem())               // source offset: plain Value, no special kind
	stack.Push(stackmodel.Const(uint256.NewInt(0))) // destOffset

	ctx.push("%len")
	ctx.push("%src")
	ctx.push("%dest")

	rule := codeCopyRuleFor(func(*LoweringContext) string { return "contracts/Foo.sol:Foo" })
	require.NoError(t, rule(ctx, instruction.Instruction{Name: instruction.CODECOPY}, stack))
	require.Equal(t, []string{"CalldataCopy"}, builder.Calls)
}

// Target B's no-op immutables: ASSIGNIMMUTABLE still pops its operand, it
// just never reaches the Builder.
func TestAssignImmutableNoopRule_PopsWithoutBuilderCall(t *testing.T) {
	builder := &NullBuilder{}
	ctx := newCtx(builder, false)
	ctx.push("%value")

	require.NoError(t, assignImmutableNoopRule()(ctx, push(instruction.ASSIGNIMMUTABLE, "k"), stackmodel.New()))
	require.Empty(t, builder.Calls)
	require.Equal(t, 0, ctx.depth())
}

// RuntimeTableAlternate (target B) rejects TLOAD/TSTORE/BLOBHASH/BLOBBASEFEE.
func TestRuntimeTableAlternate_UnsupportedOpcodes(t *testing.T) {
	for _, name := range []instruction.Name{instruction.TLOAD, instruction.TSTORE, instruction.BLOBHASH, instruction.BLOBBASEFEE} {
		rule, ok := RuntimeTableAlternate[name]
		require.True(t, ok, "%s should have a table entry", name)
		builder := &NullBuilder{}
		ctx := newCtx(builder, false)
		ctx.push("%a")
		ctx.push("%b")
		err := rule(ctx, instruction.Instruction{Name: name}, stackmodel.New())
		require.Error(t, err)
	}
}
