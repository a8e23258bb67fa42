package fuelsched

import (
	"sync"

	"github.com/wippyai/fuel-sched/errors"
)

// DefaultReadyQueueCapacity matches the bounded ready vector used by the
// executor.
const DefaultReadyQueueCapacity = 128

// ReadyQueue is the bounded set of task IDs that have been signaled ready
// and are waiting to be pulled back into scheduling. It is shared between
// wakers, the coalescer and the executor; one lock guards each operation so
// a wake is a single critical section regardless of ASIL mode.
type ReadyQueue struct {
	mu       sync.Mutex
	ids      []TaskID
	capacity int
}

// NewReadyQueue creates a ready queue bounded at capacity entries.
func NewReadyQueue(capacity int) *ReadyQueue {
	if capacity <= 0 {
		capacity = DefaultReadyQueueCapacity
	}
	return &ReadyQueue{
		ids:      make([]TaskID, 0, capacity),
		capacity: capacity,
	}
}

// Len returns the number of queued IDs.
func (q *ReadyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Cap returns the queue capacity.
func (q *ReadyQueue) Cap() int { return q.capacity }

// Free returns the number of unused slots.
func (q *ReadyQueue) Free() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity - len(q.ids)
}

// Contains reports whether id is queued.
func (q *ReadyQueue) Contains(id TaskID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(id) >= 0
}

// Snapshot returns a copy of the queued IDs in queue order.
func (q *ReadyQueue) Snapshot() []TaskID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]TaskID, len(q.ids))
	copy(out, q.ids)
	return out
}

// Pop removes and returns the front of the queue.
func (q *ReadyQueue) Pop() (TaskID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return 0, false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

// Drain removes all queued IDs and returns them in queue order.
func (q *ReadyQueue) Drain() []TaskID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.ids
	q.ids = make([]TaskID, 0, q.capacity)
	return out
}

// Push appends id without a duplicate check. It fails when the queue is
// full.
func (q *ReadyQueue) Push(id TaskID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.push(id)
}

// PushIfAbsent appends id unless it is already queued. Used by ASIL-C
// wakes, which reserve capacity ahead of time and therefore do not handle
// overflow beyond reporting it.
func (q *ReadyQueue) PushIfAbsent(id TaskID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.indexOf(id) >= 0 {
		return nil
	}
	return q.push(id)
}

// PushOrdered inserts id before the first queued entry with a larger
// TaskID, preserving strict ascending order irrespective of arrival order.
// Duplicates are ignored. Used by ASIL-D wakes.
func (q *ReadyQueue) PushOrdered(id TaskID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	pos := len(q.ids)
	for i, existing := range q.ids {
		if existing == id {
			return nil
		}
		if existing > id {
			pos = i
			break
		}
	}
	if len(q.ids) >= q.capacity {
		return errors.ResourceLimitExceeded(errors.PhaseWake, "ready queue is full")
	}
	q.ids = append(q.ids, 0)
	copy(q.ids[pos+1:], q.ids[pos:])
	q.ids[pos] = id
	return nil
}

// PushBounded deduplicates the queue when fewer than reserve slots remain,
// then appends id unless it is already queued. Used by ASIL-B wakes.
func (q *ReadyQueue) PushBounded(id TaskID, reserve int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity-len(q.ids) < reserve {
		q.dedup()
	}
	if q.indexOf(id) >= 0 {
		return nil
	}
	return q.push(id)
}

// PushRetry appends id; on overflow it deduplicates once and retries the
// push. Used by ASIL-A and QM wakes.
func (q *ReadyQueue) PushRetry(id TaskID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.push(id); err == nil {
		return nil
	}
	q.dedup()
	return q.push(id)
}

// PushAllIfAbsent appends every id not already queued, in the order given,
// under a single lock acquisition. It returns the number inserted; IDs that
// no longer fit are dropped.
func (q *ReadyQueue) PushAllIfAbsent(ids []TaskID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	inserted := 0
	for _, id := range ids {
		if q.indexOf(id) >= 0 {
			continue
		}
		if q.push(id) != nil {
			break
		}
		inserted++
	}
	return inserted
}

func (q *ReadyQueue) push(id TaskID) error {
	if len(q.ids) >= q.capacity {
		return errors.ResourceLimitExceeded(errors.PhaseWake, "ready queue is full")
	}
	q.ids = append(q.ids, id)
	return nil
}

func (q *ReadyQueue) indexOf(id TaskID) int {
	for i, existing := range q.ids {
		if existing == id {
			return i
		}
	}
	return -1
}

// dedup keeps the first occurrence of each ID, preserving queue order.
func (q *ReadyQueue) dedup() {
	seen := make(map[TaskID]struct{}, len(q.ids))
	kept := q.ids[:0]
	for _, id := range q.ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}
	q.ids = kept
}
