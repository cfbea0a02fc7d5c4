package lowering

import (
	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereal-ir/evmla-compiler/stackmodel"
)

// sharedTable holds every rule whose behavior never depends on which of
// the four lowering targets (deploy / runtime-standard / runtime-alternate
// / cross-contract) is active: plain arithmetic, comparison, bitwise,
// memory, storage, logging, calls, environment reads, DUP/SWAP/POP. Each
// of the four exported tables is built by cloning this map and layering
// its own target-specific overrides on top (spec.md §4.4's "three
// variations are required").
var sharedTable = buildSharedTable()

func buildSharedTable() map[instruction.Name]opcodeRule {
	t := map[instruction.Name]opcodeRule{
		instruction.ADD: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerAdd(c.Ctx, a, b) }),
		instruction.SUB: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerSub(c.Ctx, a, b) }),
		instruction.MUL: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerMul(c.Ctx, a, b) }),
		instruction.DIV: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerDiv(c.Ctx, a, b) }),
		instruction.SDIV: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerSDiv(c.Ctx, a, b) }),
		instruction.MOD: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerMod(c.Ctx, a, b) }),
		instruction.SMOD: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerSMod(c.Ctx, a, b) }),
		instruction.ADDMOD: ternary(func(c *LoweringContext, a, b, m Operand) (Operand, error) { return c.Builder.IntegerAddMod(c.Ctx, a, b, m) }),
		instruction.MULMOD: ternary(func(c *LoweringContext, a, b, m Operand) (Operand, error) { return c.Builder.IntegerMulMod(c.Ctx, a, b, m) }),
		instruction.EXP: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerExp(c.Ctx, a, b) }),
		instruction.SIGNEXTEND: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerSignExtend(c.Ctx, a, b) }),

		instruction.LT:  binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerLt(c.Ctx, a, b) }),
		instruction.GT:  binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerGt(c.Ctx, a, b) }),
		instruction.SLT: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerSlt(c.Ctx, a, b) }),
		instruction.SGT: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerSgt(c.Ctx, a, b) }),
		instruction.EQ:  binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerEq(c.Ctx, a, b) }),
		instruction.ISZERO: unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.IntegerIsZero(c.Ctx, a) }),

		instruction.AND: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerAnd(c.Ctx, a, b) }),
		instruction.OR:  binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerOr(c.Ctx, a, b) }),
		instruction.XOR: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerXor(c.Ctx, a, b) }),
		instruction.NOT: unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.IntegerNot(c.Ctx, a) }),
		instruction.BYTE: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerByte(c.Ctx, a, b) }),
		instruction.SHL: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerShl(c.Ctx, a, b) }),
		instruction.SHR: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerShr(c.Ctx, a, b) }),
		instruction.SAR: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.IntegerSar(c.Ctx, a, b) }),

		instruction.KECCAK256: binary(func(c *LoweringContext, a, b Operand) (Operand, error) { return c.Builder.Keccak256(c.Ctx, a, b) }),

		instruction.MLOAD:   unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.MemoryLoad(c.Ctx, a) }),
		instruction.MSTORE:  voidBinary(func(c *LoweringContext, a, b Operand) error { return c.Builder.MemoryStore(c.Ctx, a, b) }),
		instruction.MSTORE8: voidBinary(func(c *LoweringContext, a, b Operand) error { return c.Builder.MemoryStore8(c.Ctx, a, b) }),
		instruction.MSIZE:   nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.MemorySize(c.Ctx) }),

		instruction.SLOAD:  unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.StorageLoad(c.Ctx, a) }),
		instruction.SSTORE: voidBinary(func(c *LoweringContext, a, b Operand) error { return c.Builder.StorageStore(c.Ctx, a, b) }),

		instruction.LOG0: logRule(0), instruction.LOG1: logRule(1), instruction.LOG2: logRule(2),
		instruction.LOG3: logRule(3), instruction.LOG4: logRule(4),

		instruction.CALL: func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
			ops, err := ctx.popN(7)
			if err != nil {
				return err
			}
			res, err := ctx.Builder.Call(ctx.Ctx, ops[0], ops[1], ops[2], ops[3], ops[4], ops[5], ops[6])
			if err != nil {
				return err
			}
			return storeResult(ctx, res)
		},
		instruction.DELEGATECALL: func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
			ops, err := ctx.popN(6)
			if err != nil {
				return err
			}
			res, err := ctx.Builder.DelegateCall(ctx.Ctx, ops[0], ops[1], ops[2], ops[3], ops[4], ops[5])
			if err != nil {
				return err
			}
			return storeResult(ctx, res)
		},
		instruction.STATICCALL: func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
			ops, err := ctx.popN(6)
			if err != nil {
				return err
			}
			res, err := ctx.Builder.StaticCall(ctx.Ctx, ops[0], ops[1], ops[2], ops[3], ops[4], ops[5])
			if err != nil {
				return err
			}
			return storeResult(ctx, res)
		},
		instruction.CREATE: ternary(func(c *LoweringContext, a, b, d Operand) (Operand, error) { return c.Builder.Create(c.Ctx, a, b, d) }),
		instruction.CREATE2: func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error {
			ops, err := ctx.popN(4)
			if err != nil {
				return err
			}
			res, err := ctx.Builder.Create2(ctx.Ctx, ops[0], ops[1], ops[2], ops[3])
			if err != nil {
				return err
			}
			return storeResult(ctx, res)
		},

		instruction.RETURN: voidBinary(func(c *LoweringContext, a, b Operand) error { return c.Builder.Return(c.Ctx, a, b) }),
		instruction.REVERT: voidBinary(func(c *LoweringContext, a, b Operand) error { return c.Builder.Revert(c.Ctx, a, b) }),
		instruction.STOP: func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error { return ctx.Builder.Stop(ctx.Ctx) },
		instruction.INVALID: func(ctx *LoweringContext, _ instruction.Instruction, _ stackmodel.Stack) error { return ctx.Builder.Invalid(ctx.Ctx) },

		instruction.ADDRESS:   nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.Address(c.Ctx) }),
		instruction.BALANCE:   unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.Balance(c.Ctx, a) }),
		instruction.ORIGIN:    nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.Origin(c.Ctx) }),
		instruction.CALLER:    nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.Caller(c.Ctx) }),
		instruction.CALLVALUE: nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.CallValue(c.Ctx) }),
		instruction.GASPRICE:  nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.GasPrice(c.Ctx) }),
		instruction.EXTCODESIZE: unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.ExtCodeSize(c.Ctx, a) }),
		instruction.EXTCODEHASH: unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.ExtCodeHash(c.Ctx, a) }),
		instruction.RETURNDATASIZE: nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.ReturnDataSize(c.Ctx) }),
		instruction.RETURNDATACOPY: voidTernary(func(c *LoweringContext, a, b, d Operand) error { return c.Builder.ReturnDataCopy(c.Ctx, a, b, d) }),
		instruction.BLOCKHASH:   unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.BlockHash(c.Ctx, a) }),
		instruction.COINBASE:    nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.Coinbase(c.Ctx) }),
		instruction.TIMESTAMP:   nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.Timestamp(c.Ctx) }),
		instruction.NUMBER:      nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.BlockNumber(c.Ctx) }),
		instruction.DIFFICULTY:  nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.PrevRandao(c.Ctx) }),
		instruction.PREVRANDAO:  nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.PrevRandao(c.Ctx) }),
		instruction.GASLIMIT:    nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.GasLimit(c.Ctx) }),
		instruction.CHAINID:     nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.ChainID(c.Ctx) }),
		instruction.SELFBALANCE: nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.SelfBalance(c.Ctx) }),
		instruction.BASEFEE:     nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.BaseFee(c.Ctx) }),
		instruction.GAS:         nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.Gas(c.Ctx) }),

		instruction.PUSHDEPLOYADDRESS: pushDeployAddressRule(),
		instruction.PUSHLIB:           pushLibRule(),
		instruction.PUSHSIZE:          pushZeroRule(),
		instruction.PushContractHashSize: pushZeroRule(),
		instruction.PushContractHash:  pushContractHashRule(),
		instruction.PushData:          pushDataRule(),

		instruction.POP: popRule(),
	}

	for n := 1; n <= 16; n++ {
		t[dupName(n)] = dupRule(n)
		t[swapName(n)] = swapRule(n)
	}
	for _, name := range pushNames() {
		t[name] = pushConstantRule()
	}
	t[instruction.PUSH0] = pushConstantRule()
	t[instruction.PushTag] = pushTagRule()

	// CALLCODE/PC/EXTCODECOPY/SELFDESTRUCT are unsupported on every target
	// (spec.md §4.4 "Cross-target common").
	t[instruction.CALLCODE] = unsupported("CALLCODE")
	t[instruction.PC] = unsupported("PC")
	t[instruction.EXTCODECOPY] = unsupported("EXTCODECOPY")
	t[instruction.SELFDESTRUCT] = unsupported("SELFDESTRUCT")

	return t
}

func pushNames() []instruction.Name {
	return []instruction.Name{
		instruction.PUSH1, instruction.PUSH2, instruction.PUSH3, instruction.PUSH4,
		instruction.PUSH5, instruction.PUSH6, instruction.PUSH7, instruction.PUSH8,
		instruction.PUSH9, instruction.PUSH10, instruction.PUSH11, instruction.PUSH12,
		instruction.PUSH13, instruction.PUSH14, instruction.PUSH15, instruction.PUSH16,
		instruction.PUSH17, instruction.PUSH18, instruction.PUSH19, instruction.PUSH20,
		instruction.PUSH21, instruction.PUSH22, instruction.PUSH23, instruction.PUSH24,
		instruction.PUSH25, instruction.PUSH26, instruction.PUSH27, instruction.PUSH28,
		instruction.PUSH29, instruction.PUSH30, instruction.PUSH31, instruction.PUSH32,
	}
}

func dupName(n int) instruction.Name {
	names := [...]instruction.Name{
		instruction.DUP1, instruction.DUP2, instruction.DUP3, instruction.DUP4,
		instruction.DUP5, instruction.DUP6, instruction.DUP7, instruction.DUP8,
		instruction.DUP9, instruction.DUP10, instruction.DUP11, instruction.DUP12,
		instruction.DUP13, instruction.DUP14, instruction.DUP15, instruction.DUP16,
	}
	return names[n-1]
}

func swapName(n int) instruction.Name {
	names := [...]instruction.Name{
		instruction.SWAP1, instruction.SWAP2, instruction.SWAP3, instruction.SWAP4,
		instruction.SWAP5, instruction.SWAP6, instruction.SWAP7, instruction.SWAP8,
		instruction.SWAP9, instruction.SWAP10, instruction.SWAP11, instruction.SWAP12,
		instruction.SWAP13, instruction.SWAP14, instruction.SWAP15, instruction.SWAP16,
	}
	return names[n-1]
}

func cloneTable(src map[instruction.Name]opcodeRule) map[instruction.Name]opcodeRule {
	dst := make(map[instruction.Name]opcodeRule, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// DeployTable: spec.md §4.4 "in deploy code these opcodes alias to the
// calldata ones" — CALLDATALOAD/CALLDATASIZE/CALLDATACOPY/CODESIZE/CODECOPY
// all lower through the calldata builder calls.
var DeployTable = buildDeployTable()

func buildDeployTable() map[instruction.Name]opcodeRule {
	t := cloneTable(sharedTable)
	t[instruction.CALLDATALOAD] = unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.CalldataLoad(c.Ctx, a) })
	t[instruction.CALLDATASIZE] = nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.CalldataSize(c.Ctx) })
	t[instruction.CALLDATACOPY] = voidTernary(func(c *LoweringContext, a, b, d Operand) error { return c.Builder.CalldataCopy(c.Ctx, a, b, d) })
	t[instruction.CODESIZE] = nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.CalldataSize(c.Ctx) })
	t[instruction.CODECOPY] = voidTernary(func(c *LoweringContext, a, b, d Operand) error { return c.Builder.CalldataCopy(c.Ctx, a, b, d) })
	t[instruction.PUSHIMMUTABLE] = pushImmutableStandardRule()
	t[instruction.ASSIGNIMMUTABLE] = assignImmutableStandardRule()
	t[instruction.TLOAD] = unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.TransientLoad(c.Ctx, a) })
	t[instruction.TSTORE] = voidBinary(func(c *LoweringContext, a, b Operand) error { return c.Builder.TransientStore(c.Ctx, a, b) })
	t[instruction.BLOBHASH] = unsupported("BLOBHASH")
	return t
}

// RuntimeTableStandard ("target A"): CODESIZE/CODECOPY are self-code-size
// and self-code-copy, with CODECOPY's three-way symbolic dispatch; transient
// storage and immutables behave normally (spec.md §4.4).
var RuntimeTableStandard = buildRuntimeTableStandard()

func buildRuntimeTableStandard() map[instruction.Name]opcodeRule {
	t := cloneTable(sharedTable)
	t[instruction.CALLDATALOAD] = unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.CalldataLoad(c.Ctx, a) })
	t[instruction.CALLDATASIZE] = nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.CalldataSize(c.Ctx) })
	t[instruction.CALLDATACOPY] = voidTernary(func(c *LoweringContext, a, b, d Operand) error { return c.Builder.CalldataCopy(c.Ctx, a, b, d) })
	t[instruction.CODESIZE] = nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.CodeSize(c.Ctx) })
	t[instruction.CODECOPY] = codeCopyRuleFor(func(ctx *LoweringContext) string { return ctx.ContractPath })
	t[instruction.PUSHIMMUTABLE] = pushImmutableStandardRule()
	t[instruction.ASSIGNIMMUTABLE] = assignImmutableStandardRule()
	t[instruction.TLOAD] = unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.TransientLoad(c.Ctx, a) })
	t[instruction.TSTORE] = voidBinary(func(c *LoweringContext, a, b Operand) error { return c.Builder.TransientStore(c.Ctx, a, b) })
	t[instruction.BLOBHASH] = unary(func(c *LoweringContext, a Operand) (Operand, error) { return c.Builder.BlockHash(c.Ctx, a) })
	t[instruction.BLOBBASEFEE] = nullaryPush(func(c *LoweringContext) (Operand, error) { return c.Builder.BaseFee(c.Ctx) })
	return t
}

// RuntimeTableAlternate ("target B"): TLOAD/TSTORE/BLOBHASH/BLOBBASEFEE are
// unsupported; PUSHIMMUTABLE/ASSIGNIMMUTABLE are no-ops (spec.md §4.4).
var RuntimeTableAlternate = buildRuntimeTableAlternate()

func buildRuntimeTableAlternate() map[instruction.Name]opcodeRule {
	t := cloneTable(RuntimeTableStandard)
	t[instruction.TLOAD] = unsupported("TLOAD")
	t[instruction.TSTORE] = unsupported("TSTORE")
	t[instruction.BLOBHASH] = unsupported("BLOBHASH")
	t[instruction.BLOBBASEFEE] = unsupported("BLOBBASEFEE")
	t[instruction.PUSHIMMUTABLE] = pushImmutableNoopRule()
	t[instruction.ASSIGNIMMUTABLE] = assignImmutableNoopRule()
	return t
}

// CrossContractTable applies when lowering a block reached only through a
// cross-contract (factory-dependency) reference rather than the contract's
// own deploy/runtime entry points; it shares the common opcode set and, per
// spec.md §4.4, still rejects the same cross-target-unsupported opcodes —
// CALLDATA*/CODE* are aliased the same way deploy code's are, since a
// cross-contract block has no independent notion of "self code".
var CrossContractTable = buildCrossContractTable()

func buildCrossContractTable() map[instruction.Name]opcodeRule {
	return buildDeployTable()
}
