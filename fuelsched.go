package fuelsched

import "fmt"

// TaskID identifies a suspendable unit of component execution. IDs are
// allocated by the executor and are unique for the lifetime of the process.
type TaskID uint64

// ComponentInstanceID identifies the component instance a task or thread
// belongs to. Allocation is owned by the embedding runtime.
type ComponentInstanceID uint32

// ThreadID identifies a fuel-tracked execution thread.
type ThreadID uint32

// Priority orders tasks under the priority-based scheduling policy.
// Higher values are scheduled first.
type Priority uint8

const (
	PriorityLow      Priority = 64
	PriorityNormal   Priority = 128
	PriorityHigh     Priority = 192
	PriorityCritical Priority = 255
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p >= PriorityCritical:
		return "critical"
	case p >= PriorityHigh:
		return "high"
	case p >= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// VerificationLevel controls how much bookkeeping the runtime performs per
// operation. Higher levels scale instruction fuel costs up to pay for the
// additional checking.
type VerificationLevel uint8

const (
	// VerifyOff disables verification bookkeeping.
	VerifyOff VerificationLevel = iota
	// VerifySampled verifies a sample of operations.
	VerifySampled
	// VerifyStandard is the default verification level.
	VerifyStandard
	// VerifyFull verifies every operation.
	VerifyFull
)

// String returns the level name used in configuration files.
func (v VerificationLevel) String() string {
	switch v {
	case VerifyOff:
		return "off"
	case VerifySampled:
		return "sampled"
	case VerifyStandard:
		return "standard"
	case VerifyFull:
		return "full"
	default:
		return fmt.Sprintf("verification(%d)", uint8(v))
	}
}

// CostMultiplier returns the fuel cost scaling for this level as a
// numerator over CostDenominator.
func (v VerificationLevel) CostMultiplier() uint64 {
	switch v {
	case VerifyOff:
		return 4
	case VerifySampled:
		return 5
	case VerifyStandard:
		return 6
	case VerifyFull:
		return 8
	default:
		return 4
	}
}

// CostDenominator is the divisor paired with CostMultiplier.
const CostDenominator = 4
