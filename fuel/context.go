package fuel

import (
	"sync/atomic"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/errors"
)

const (
	// MaxFuelPerThread is the default per-thread fuel budget.
	MaxFuelPerThread = 1_000_000
	// DefaultCheckInterval is how much consumed fuel passes between
	// status checkpoints.
	DefaultCheckInterval = 1000
	// DefaultFuelPerMS converts a millisecond time budget into fuel.
	DefaultFuelPerMS = 100
)

// ThreadContext tracks the fuel budget of one execution thread.
//
// Invariant: RemainingFuel() + ConsumedFuel() == InitialFuel() after every
// ConsumeFuel and AddFuel call. AddFuel grows the initial budget alongside
// the remaining fuel to keep the books balanced.
//
// Exhaustion is sticky: once the flag is set, further consumption fails
// until the thread is torn down and respawned. AddFuel never clears it.
type ThreadContext struct {
	threadID    fuelsched.ThreadID
	componentID fuelsched.ComponentInstanceID

	initial   atomic.Uint64
	remaining atomic.Uint64
	consumed  atomic.Uint64
	exhausted atomic.Bool

	checkInterval uint64
	lastCheck     atomic.Uint64
}

// NewThreadContext creates a context holding initialFuel.
func NewThreadContext(threadID fuelsched.ThreadID, componentID fuelsched.ComponentInstanceID, initialFuel uint64) *ThreadContext {
	c := &ThreadContext{
		threadID:      threadID,
		componentID:   componentID,
		checkInterval: DefaultCheckInterval,
	}
	c.initial.Store(initialFuel)
	c.remaining.Store(initialFuel)
	return c
}

// SetCheckInterval overrides the checkpoint interval. Must be called
// before the thread starts consuming.
func (c *ThreadContext) SetCheckInterval(interval uint64) {
	if interval > 0 {
		c.checkInterval = interval
	}
}

// ThreadID returns the owning thread.
func (c *ThreadContext) ThreadID() fuelsched.ThreadID { return c.threadID }

// ComponentID returns the component instance the thread executes for.
func (c *ThreadContext) ComponentID() fuelsched.ComponentInstanceID { return c.componentID }

// InitialFuel returns the total fuel granted, including later additions.
func (c *ThreadContext) InitialFuel() uint64 { return c.initial.Load() }

// RemainingFuel returns the unconsumed fuel.
func (c *ThreadContext) RemainingFuel() uint64 { return c.remaining.Load() }

// ConsumedFuel returns the fuel consumed so far.
func (c *ThreadContext) ConsumedFuel() uint64 { return c.consumed.Load() }

// Exhausted reports whether the sticky exhaustion flag is set.
func (c *ThreadContext) Exhausted() bool { return c.exhausted.Load() }

// ConsumeFuel debits amount from the thread's budget. On insufficient
// fuel it sets the sticky exhaustion flag and fails without consuming
// anything. Every checkInterval fuel units consumed, the context
// re-validates its own status.
func (c *ThreadContext) ConsumeFuel(amount uint64) error {
	checkpoint, err := c.consume(amount)
	if err != nil {
		return err
	}
	if checkpoint {
		return c.checkStatus()
	}
	return nil
}

// consume performs the debit and reports whether a checkpoint was
// crossed. The manager uses the checkpoint signal to additionally
// re-validate the thread's time bounds.
func (c *ThreadContext) consume(amount uint64) (checkpoint bool, err error) {
	if c.exhausted.Load() {
		return false, errors.FuelExhausted(errors.PhaseFuel, amount, c.remaining.Load())
	}

	// CAS loop rather than a blind fetch-sub: a racing debit must never
	// drive remaining below zero, or the conservation invariant breaks.
	for {
		current := c.remaining.Load()
		if current < amount {
			c.exhausted.Store(true)
			return false, errors.FuelExhausted(errors.PhaseFuel, amount, current)
		}
		if c.remaining.CompareAndSwap(current, current-amount) {
			break
		}
	}
	consumed := c.consumed.Add(amount)

	last := c.lastCheck.Load()
	if consumed-last >= c.checkInterval && c.lastCheck.CompareAndSwap(last, consumed) {
		return true, nil
	}
	return false, nil
}

// checkStatus re-validates the context at a checkpoint. Consuming the
// budget down to exactly zero is not an error here; only an actual failed
// debit sets the exhaustion flag.
func (c *ThreadContext) checkStatus() error {
	if c.exhausted.Load() {
		return errors.FuelExhausted(errors.PhaseFuel, 0, c.remaining.Load())
	}
	return nil
}

// AddFuel extends the budget and returns the new remaining fuel. The
// initial-fuel figure grows by the same amount, preserving conservation.
// The exhaustion flag, if set, stays set.
func (c *ThreadContext) AddFuel(amount uint64) uint64 {
	c.initial.Add(amount)
	return c.remaining.Add(amount)
}

// Status returns a point-in-time snapshot.
func (c *ThreadContext) Status() ThreadFuelStatus {
	return ThreadFuelStatus{
		ThreadID:      c.threadID,
		InitialFuel:   c.initial.Load(),
		RemainingFuel: c.remaining.Load(),
		ConsumedFuel:  c.consumed.Load(),
		Exhausted:     c.exhausted.Load(),
	}
}

// ThreadFuelStatus is a read-only snapshot of a thread's fuel state.
type ThreadFuelStatus struct {
	ThreadID      fuelsched.ThreadID
	InitialFuel   uint64
	RemainingFuel uint64
	ConsumedFuel  uint64
	Exhausted     bool
}
