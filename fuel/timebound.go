package fuel

import (
	"sync/atomic"

	"github.com/wippyai/fuel-sched/errors"
)

// TimeBound approximates a wall-clock execution budget in fuel units: a
// millisecond budget times the fuel-per-millisecond rate. It runs in
// parallel with the thread's fuel context and is re-validated at fuel
// checkpoints.
type TimeBound struct {
	limitFuel      uint64 // 0 means unbounded
	grantFuel      uint64
	allowExtension bool
	extended       atomic.Bool
	limit          atomic.Uint64
}

// NewTimeBound converts a millisecond budget into a fuel-denominated
// bound. A zero timeLimitMS or fuelPerMS yields an unbounded context.
func NewTimeBound(timeLimitMS, fuelPerMS uint64, allowExtension bool) *TimeBound {
	tb := &TimeBound{
		grantFuel:      timeLimitMS * fuelPerMS,
		allowExtension: allowExtension,
	}
	tb.limitFuel = tb.grantFuel
	tb.limit.Store(tb.grantFuel)
	return tb
}

// Check validates consumed fuel against the bound. When the budget is
// exceeded and extension is permitted, the bound extends once by the
// original grant; the second violation is final.
func (tb *TimeBound) Check(consumedFuel uint64) error {
	limit := tb.limit.Load()
	if limit == 0 || consumedFuel <= limit {
		return nil
	}
	if tb.allowExtension && tb.extended.CompareAndSwap(false, true) {
		tb.limit.Add(tb.grantFuel)
		return nil
	}
	return errors.TimeLimit(errors.PhaseFuel, "time-bounded execution budget exceeded")
}

// Extended reports whether the one-time extension has been used.
func (tb *TimeBound) Extended() bool { return tb.extended.Load() }

// Limit returns the current fuel-denominated limit (0 = unbounded).
func (tb *TimeBound) Limit() uint64 { return tb.limit.Load() }
