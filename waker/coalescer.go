package waker

import (
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/sets/treeset"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/errors"
)

// MaxPendingWakes bounds the coalescer's pending buffer.
const MaxPendingWakes = 64

// Coalescer batches individual wake signals into one ready-queue insertion
// pass, so a burst of wakes costs a single ready-queue lock acquisition
// instead of one per wake.
type Coalescer struct {
	mu       sync.Mutex
	pending  *treeset.Set // TaskID, ascending
	capacity int

	processing atomic.Bool
}

func taskIDSetComparator(a, b interface{}) int {
	ka, kb := a.(fuelsched.TaskID), b.(fuelsched.TaskID)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}

// NewCoalescer creates a coalescer bounded at MaxPendingWakes.
func NewCoalescer() *Coalescer {
	return NewCoalescerWithCapacity(MaxPendingWakes)
}

// NewCoalescerWithCapacity creates a coalescer with an explicit bound.
func NewCoalescerWithCapacity(capacity int) *Coalescer {
	if capacity <= 0 {
		capacity = MaxPendingWakes
	}
	return &Coalescer{
		pending:  treeset.NewWith(taskIDSetComparator),
		capacity: capacity,
	}
}

// AddWake buffers a wake for the task. Re-adding an already pending task
// is a no-op.
func (c *Coalescer) AddWake(id fuelsched.TaskID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Contains(id) {
		return nil
	}
	if c.pending.Size() >= c.capacity {
		return errors.ResourceLimitExceeded(errors.PhaseWake, "wake coalescer buffer is full")
	}
	c.pending.Add(id)
	return nil
}

// ProcessWakes drains the pending buffer into the ready queue under a
// single queue lock acquisition and returns the number of tasks newly made
// ready. A call arriving while a drain is already in progress returns
// immediately with zero processed rather than blocking; this keeps a wake
// storm from serializing on the ready-queue lock.
func (c *Coalescer) ProcessWakes(queue *fuelsched.ReadyQueue) (int, error) {
	if !c.processing.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer c.processing.Store(false)

	c.mu.Lock()
	values := c.pending.Values()
	ids := make([]fuelsched.TaskID, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.(fuelsched.TaskID))
	}
	c.pending.Clear()
	c.mu.Unlock()

	// Drained in ascending TaskID order; insertion order into the ready
	// queue is therefore reproducible.
	return queue.PushAllIfAbsent(ids), nil
}

// PendingCount returns the number of distinct tasks buffered.
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Size()
}
