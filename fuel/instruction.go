package fuel

import (
	"fmt"

	fuelsched "github.com/wippyai/fuel-sched"
)

// InstructionKind is a fine-grained WebAssembly instruction category.
// Guest execution reports categories, not opcodes; the category carries
// enough cost signal without coupling the fuel system to the instruction
// set encoding.
type InstructionKind uint8

const (
	InstrSimpleConstant InstructionKind = iota
	InstrLocalAccess
	InstrGlobalAccess
	InstrSimpleArithmetic
	InstrComplexArithmetic
	InstrFloatArithmetic
	InstrComparison
	InstrSimpleControl
	InstrComplexControl
	InstrFunctionCall
	InstrMemoryLoad
	InstrMemoryStore
	InstrMemoryManagement
	InstrTableAccess
	InstrTypeConversion
	InstrSimdOperation
	InstrAtomicOperation
)

// baseCosts holds the unscaled fuel cost per category.
var baseCosts = [...]uint64{
	InstrSimpleConstant:    1,
	InstrLocalAccess:       1,
	InstrGlobalAccess:      2,
	InstrSimpleArithmetic:  1,
	InstrComplexArithmetic: 3,
	InstrFloatArithmetic:   4,
	InstrComparison:        1,
	InstrSimpleControl:     2,
	InstrComplexControl:    4,
	InstrFunctionCall:      5,
	InstrMemoryLoad:        2,
	InstrMemoryStore:       2,
	InstrMemoryManagement:  10,
	InstrTableAccess:       3,
	InstrTypeConversion:    2,
	InstrSimdOperation:     6,
	InstrAtomicOperation:   8,
}

// String returns the category name.
func (k InstructionKind) String() string {
	names := [...]string{
		"simple_constant", "local_access", "global_access",
		"simple_arithmetic", "complex_arithmetic", "float_arithmetic",
		"comparison", "simple_control", "complex_control", "function_call",
		"memory_load", "memory_store", "memory_management", "table_access",
		"type_conversion", "simd_operation", "atomic_operation",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("instruction(%d)", uint8(k))
}

// Operation maps the category to its telemetry operation kind.
func (k InstructionKind) Operation() fuelsched.OperationKind {
	return fuelsched.OpWasmSimpleConstant + fuelsched.OperationKind(k)
}

// CostFor returns the fuel cost of one instruction of the given category,
// scaled by the verification level. Higher verification levels pay for
// their extra checking in fuel, keeping accounting honest about where
// cycles go.
func CostFor(kind InstructionKind, level fuelsched.VerificationLevel) uint64 {
	base := uint64(1)
	if int(kind) < len(baseCosts) {
		base = baseCosts[kind]
	}
	cost := base * level.CostMultiplier() / fuelsched.CostDenominator
	if cost == 0 {
		cost = 1
	}
	return cost
}
