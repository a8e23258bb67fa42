package fuelsched

import "fmt"

// ASILLevel is an automotive safety integrity level. QM carries no safety
// requirements; D is the strictest.
type ASILLevel uint8

const (
	LevelQM ASILLevel = iota
	LevelA
	LevelB
	LevelC
	LevelD
)

// String returns the conventional level name.
func (l ASILLevel) String() string {
	switch l {
	case LevelQM:
		return "QM"
	case LevelA:
		return "ASIL-A"
	case LevelB:
		return "ASIL-B"
	case LevelC:
		return "ASIL-C"
	case LevelD:
		return "ASIL-D"
	default:
		return fmt.Sprintf("ASIL(%d)", uint8(l))
	}
}

// ASILMode selects the execution mode for a task and carries the
// mode-specific flags that gate wake behavior. Dispatch on Level is always a
// closed switch; there are no indirect calls in the wake path, which ASIL-D
// forbids for safety-critical code.
type ASILMode struct {
	Level ASILLevel

	// ErrorDetection enables basic error detection (ASIL-A).
	ErrorDetection bool
	// StrictResourceLimits enforces bounded queue usage (ASIL-B).
	StrictResourceLimits bool
	// TemporalIsolation guarantees freedom from temporal interference
	// (ASIL-C). Queue capacity is reserved up front in this mode.
	TemporalIsolation bool
	// DeterministicExecution requires reproducible wake ordering (ASIL-D).
	DeterministicExecution bool
}

// ModeQM returns the quality-management mode with no safety flags.
func ModeQM() ASILMode { return ASILMode{Level: LevelQM} }

// ModeA returns ASIL-A with basic error detection.
func ModeA() ASILMode { return ASILMode{Level: LevelA, ErrorDetection: true} }

// ModeB returns ASIL-B with strict resource limits. Each level carries
// the guarantees of the levels below it.
func ModeB() ASILMode {
	return ASILMode{Level: LevelB, ErrorDetection: true, StrictResourceLimits: true}
}

// ModeC returns ASIL-C with temporal isolation.
func ModeC() ASILMode {
	return ASILMode{
		Level:                LevelC,
		ErrorDetection:       true,
		StrictResourceLimits: true,
		TemporalIsolation:    true,
	}
}

// ModeD returns ASIL-D with deterministic execution.
func ModeD() ASILMode {
	return ASILMode{
		Level:                  LevelD,
		ErrorDetection:         true,
		StrictResourceLimits:   true,
		TemporalIsolation:      true,
		DeterministicExecution: true,
	}
}

// DefaultMode is the mode used when none is specified. ASIL-A keeps
// backwards-compatible wake semantics.
func DefaultMode() ASILMode { return ModeA() }

// ParseASILLevel maps a configuration string to a level.
func ParseASILLevel(s string) (ASILLevel, error) {
	switch s {
	case "QM", "qm":
		return LevelQM, nil
	case "A", "a", "ASIL-A", "asil-a":
		return LevelA, nil
	case "B", "b", "ASIL-B", "asil-b":
		return LevelB, nil
	case "C", "c", "ASIL-C", "asil-c":
		return LevelC, nil
	case "D", "d", "ASIL-D", "asil-d":
		return LevelD, nil
	default:
		return LevelQM, fmt.Errorf("unknown ASIL level %q", s)
	}
}

// ModeFor returns the default mode for a level, with that level's
// characteristic flag set.
func ModeFor(level ASILLevel) ASILMode {
	switch level {
	case LevelA:
		return ModeA()
	case LevelB:
		return ModeB()
	case LevelC:
		return ModeC()
	case LevelD:
		return ModeD()
	default:
		return ModeQM()
	}
}
