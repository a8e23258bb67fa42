package waker

import (
	"sync/atomic"

	fuelsched "github.com/wippyai/fuel-sched"
)

const (
	// wakeOperationFuel is the base fuel debit per wake; modes with more
	// bookkeeping pay more.
	wakeOperationFuel = 5

	// reserveSlots is the free-slot threshold below which ASIL-B wakes
	// deduplicate the queue before appending.
	reserveSlots = 10
)

// FuelSink receives the fuel debit charged for each wake. The executor
// implements it. A sink that has been torn down returns nil and discards
// the debit; a dropped debit is not an error for the waker.
type FuelSink interface {
	ConsumeWakeFuel(amount uint64) error
}

// state is shared by a waker and all of its clones, so redundant wakes
// across clones still collapse onto one is-woken flag.
type state struct {
	taskID fuelsched.TaskID
	queue  *fuelsched.ReadyQueue
	sink   FuelSink
	mode   fuelsched.ASILMode

	wakeCount     atomic.Uint32
	isWoken       atomic.Bool
	wakeTimestamp atomic.Uint64
}

// Waker is a capability bound to one task: invoking Wake marks the task
// ready to be rescheduled by pushing its ID into the shared ready queue.
// The zero Waker is a no-op.
type Waker struct {
	s *state
}

// New creates a waker for a task with the default (ASIL-A) mode.
func New(taskID fuelsched.TaskID, queue *fuelsched.ReadyQueue, sink FuelSink) Waker {
	return NewWithMode(taskID, queue, sink, fuelsched.DefaultMode())
}

// NewWithMode creates a waker whose wake behavior follows the given ASIL
// execution mode.
func NewWithMode(taskID fuelsched.TaskID, queue *fuelsched.ReadyQueue, sink FuelSink, mode fuelsched.ASILMode) Waker {
	return Waker{s: &state{
		taskID: taskID,
		queue:  queue,
		sink:   sink,
		mode:   mode,
	}}
}

// Noop returns a waker that does nothing when invoked. It is the fallback
// when no proper wake context is available.
func Noop() Waker { return Waker{} }

// Wake signals the task ready. Redundant wakes before the task is next
// polled collapse to a single ready-queue entry via the is-woken flag;
// queue insertion semantics depend on the ASIL mode. Overflow in the
// best-effort modes drops the wake silently: a dropped wake is
// self-healing, since a later wake or scheduling pass recovers the task.
func (w Waker) Wake() {
	s := w.s
	if s == nil {
		return
	}

	if s.mode.Level == fuelsched.LevelD && s.mode.DeterministicExecution {
		// Deterministic ordering uses the wake count as its timestamp
		// proxy; no wall clock is consulted.
		s.wakeTimestamp.Store(uint64(s.wakeCount.Load()))
	}

	// At most one enqueue per wake generation. The flag clears only when
	// the executor has actually polled the task.
	if !s.isWoken.CompareAndSwap(false, true) {
		return
	}
	s.wakeCount.Add(1)

	switch s.mode.Level {
	case fuelsched.LevelD:
		if s.mode.DeterministicExecution {
			_ = s.queue.PushOrdered(s.taskID)
		} else {
			_ = s.queue.PushRetry(s.taskID)
		}
	case fuelsched.LevelC:
		if s.mode.TemporalIsolation {
			// Capacity was reserved ahead of time; overflow is not
			// handled here.
			_ = s.queue.PushIfAbsent(s.taskID)
		} else {
			_ = s.queue.PushRetry(s.taskID)
		}
	case fuelsched.LevelB:
		if s.mode.StrictResourceLimits {
			_ = s.queue.PushBounded(s.taskID, reserveSlots)
		} else {
			_ = s.queue.PushRetry(s.taskID)
		}
	default:
		_ = s.queue.PushRetry(s.taskID)
	}

	if s.sink != nil {
		// Exhaustion on the wake debit is ignored; the wake itself has
		// already landed.
		_ = s.sink.ConsumeWakeFuel(wakeFuelCost(s.mode))
	}
}

// wakeFuelCost scales the base debit by the extra bookkeeping each mode
// performs.
func wakeFuelCost(mode fuelsched.ASILMode) uint64 {
	switch mode.Level {
	case fuelsched.LevelD:
		return wakeOperationFuel * 2
	case fuelsched.LevelC:
		return wakeOperationFuel + 3
	case fuelsched.LevelB:
		return wakeOperationFuel + 2
	default:
		return wakeOperationFuel
	}
}

// Clone returns a waker sharing this waker's state; wakes through either
// handle coalesce onto the same flag and counters.
func (w Waker) Clone() Waker { return Waker{s: w.s} }

// TaskID returns the bound task, or zero for a no-op waker.
func (w Waker) TaskID() fuelsched.TaskID {
	if w.s == nil {
		return 0
	}
	return w.s.taskID
}

// Woken reports whether a wake is pending (set until the executor polls
// the task).
func (w Waker) Woken() bool {
	return w.s != nil && w.s.isWoken.Load()
}

// ResetWoken clears the pending-wake flag. Only the executor calls this,
// after the task has actually been polled.
func (w Waker) ResetWoken() {
	if w.s != nil {
		w.s.isWoken.Store(false)
	}
}

// WakeCount returns how many effective wakes this waker has delivered.
func (w Waker) WakeCount() uint32 {
	if w.s == nil {
		return 0
	}
	return w.s.wakeCount.Load()
}

// WakeTimestamp returns the deterministic wake timestamp recorded under
// ASIL-D.
func (w Waker) WakeTimestamp() uint64 {
	if w.s == nil {
		return 0
	}
	return w.s.wakeTimestamp.Load()
}

// Mode returns the waker's ASIL execution mode.
func (w Waker) Mode() fuelsched.ASILMode {
	if w.s == nil {
		return fuelsched.ModeQM()
	}
	return w.s.mode
}
