package sched

import (
	"sort"

	"github.com/emirpasic/gods/maps/treemap"
	"go.uber.org/zap"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/errors"
)

const (
	// DefaultMaxTasks bounds the task table and the policy queues.
	DefaultMaxTasks = 128
	// DefaultFuelQuantum is the round-robin fuel allotment per turn.
	DefaultFuelQuantum = 1000

	// Fuel charged to the scheduler clock per operation.
	scheduleTaskFuel   = 3
	prioritizeTaskFuel = 5
	deadlineCheckFuel  = 2
)

// taskIDComparator orders treemap keys by ascending TaskID. Go map
// iteration is randomized; the red-black tree gives the deterministic scan
// order the deadline and cooperative policies depend on.
func taskIDComparator(a, b interface{}) int {
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

// Scheduler owns task metadata and the per-policy ready structures, and
// selects the next task to run.
//
// Mutating methods (AddTask, RemoveTask, NextTask, UpdateTaskState,
// SetPolicy, SetFuelQuantum) assume exclusive access from one owning
// executor; guard externally if shared. Read-only queries tolerate
// concurrent readers as long as no writer is active.
type Scheduler struct {
	policy   Policy
	tasks    *treemap.Map // TaskID -> *Task
	maxTasks int

	// policyQueue is the priority-ordered queue under PolicyPriorityBased
	// and the deadline-ordered view under PolicyDeadlineBased.
	policyQueue []fuelsched.TaskID
	rrQueue     []fuelsched.TaskID
	rrPos       int

	// clock is the global schedule time in fuel units.
	clock   uint64
	quantum uint64

	level fuelsched.VerificationLevel
	rec   fuelsched.Recorder
}

// New creates a scheduler with the given policy and verification level.
func New(policy Policy, level fuelsched.VerificationLevel) *Scheduler {
	return &Scheduler{
		policy:   policy,
		tasks:    treemap.NewWith(taskIDComparator),
		maxTasks: DefaultMaxTasks,
		quantum:  DefaultFuelQuantum,
		level:    level,
		rec:      fuelsched.NopRecorder{},
	}
}

// SetRecorder installs a telemetry sink. Must be called before scheduling
// begins.
func (s *Scheduler) SetRecorder(r fuelsched.Recorder) {
	if r == nil {
		r = fuelsched.NopRecorder{}
	}
	s.rec = r
}

// SetMaxTasks bounds the task table. Must be called before tasks are added.
func (s *Scheduler) SetMaxTasks(n int) {
	if n > 0 {
		s.maxTasks = n
	}
}

// SetPolicy switches the scheduling policy. The policy queues are cleared
// and rebuilt lazily as tasks transition to Ready; the round-robin cursor
// resets.
func (s *Scheduler) SetPolicy(policy Policy) {
	s.policy = policy
	s.policyQueue = s.policyQueue[:0]
	s.rrQueue = s.rrQueue[:0]
	s.rrPos = 0

	s.tasks.Each(func(key, value interface{}) {
		t := value.(*Task)
		switch policy {
		case PolicyPriorityBased:
			s.insertPriorityQueue(t)
		case PolicyDeadlineBased:
			s.policyQueue = append(s.policyQueue, t.ID)
		case PolicyRoundRobin:
			s.rrQueue = append(s.rrQueue, t.ID)
		}
	})
	if policy == PolicyDeadlineBased {
		s.sortDeadlineQueue()
	}
}

// SetFuelQuantum sets the round-robin fuel allotment per scheduling turn.
func (s *Scheduler) SetFuelQuantum(quantum uint64) {
	if quantum > 0 {
		s.quantum = quantum
	}
}

// FuelQuantum returns the round-robin quantum.
func (s *Scheduler) FuelQuantum() uint64 { return s.quantum }

// Clock returns the global schedule time in fuel units.
func (s *Scheduler) Clock() uint64 { return s.clock }

// Policy returns the active scheduling policy.
func (s *Scheduler) Policy() Policy { return s.policy }

// AddTask registers a task and inserts it into the policy-specific
// structure. No task is partially registered on failure.
func (s *Scheduler) AddTask(id fuelsched.TaskID, componentID fuelsched.ComponentInstanceID, priority fuelsched.Priority, fuelQuota uint64, deadline uint64) error {
	if _, dup := s.tasks.Get(id); dup {
		return errors.DuplicateTask(errors.PhaseSchedule, uint64(id))
	}
	if s.tasks.Size() >= s.maxTasks {
		return errors.ResourceLimitExceeded(errors.PhaseSchedule, "too many scheduled tasks")
	}
	// The bounded queues share the task-table capacity; verify before any
	// state is committed so a full queue cannot leave a half-registered
	// task behind.
	switch s.policy {
	case PolicyPriorityBased, PolicyDeadlineBased:
		if len(s.policyQueue) >= s.maxTasks {
			return errors.ResourceLimitExceeded(errors.PhaseSchedule, "policy queue is full")
		}
	case PolicyRoundRobin:
		if len(s.rrQueue) >= s.maxTasks {
			return errors.ResourceLimitExceeded(errors.PhaseSchedule, "round-robin queue is full")
		}
	}

	t := &Task{
		ID:            id,
		ComponentID:   componentID,
		Priority:      priority,
		FuelQuota:     fuelQuota,
		Deadline:      deadline,
		LastScheduled: s.clock,
		State:         StateReady,
	}
	s.tasks.Put(id, t)

	switch s.policy {
	case PolicyCooperative:
		// Tasks are polled in order of readiness; no auxiliary queue.
	case PolicyPriorityBased:
		s.insertPriorityQueue(t)
	case PolicyDeadlineBased:
		s.policyQueue = append(s.policyQueue, id)
		s.sortDeadlineQueue()
	case PolicyRoundRobin:
		s.rrQueue = append(s.rrQueue, id)
	}

	s.rec.Record(fuelsched.OpCollectionInsert, s.level)
	Logger().Debug("task added",
		zap.Uint64("task", uint64(id)),
		zap.String("policy", s.policy.String()),
		zap.Uint8("priority", uint8(priority)))
	return nil
}

// RemoveTask destroys the task's scheduling entry. Removal models
// abandonment; it does not interrupt an in-flight poll.
func (s *Scheduler) RemoveTask(id fuelsched.TaskID) error {
	if _, ok := s.tasks.Get(id); !ok {
		return errors.TaskNotFound(errors.PhaseSchedule, uint64(id))
	}
	s.tasks.Remove(id)
	s.policyQueue = removeID(s.policyQueue, id)
	if idx := indexOf(s.rrQueue, id); idx >= 0 {
		s.rrQueue = append(s.rrQueue[:idx], s.rrQueue[idx+1:]...)
		if idx < s.rrPos {
			s.rrPos--
		}
		if len(s.rrQueue) == 0 {
			s.rrPos = 0
		} else {
			s.rrPos %= len(s.rrQueue)
		}
	}
	s.rec.Record(fuelsched.OpCollectionRemove, s.level)
	return nil
}

// NextTask selects the next task to run under the current policy, or
// returns false when no Ready task exists. Selection itself costs fuel on
// the scheduler clock.
func (s *Scheduler) NextTask() (fuelsched.TaskID, bool) {
	s.clock += scheduleTaskFuel
	s.rec.Record(fuelsched.OpFunctionCall, s.level)

	switch s.policy {
	case PolicyPriorityBased:
		return s.nextPriorityTask()
	case PolicyDeadlineBased:
		return s.nextDeadlineTask()
	case PolicyRoundRobin:
		return s.nextRoundRobinTask()
	default:
		return s.nextCooperativeTask()
	}
}

// UpdateTaskState records the outcome of a poll: fuel consumed, the new
// state, and the scheduling bookkeeping derived from them. A task that
// becomes Ready re-enters its policy structure.
func (s *Scheduler) UpdateTaskState(id fuelsched.TaskID, fuelConsumed uint64, newState State) error {
	v, ok := s.tasks.Get(id)
	if !ok {
		return errors.TaskNotFound(errors.PhaseSchedule, uint64(id))
	}
	t := v.(*Task)
	t.FuelConsumed += fuelConsumed
	t.State = newState
	t.LastScheduled = s.clock
	t.ScheduleCount++

	if newState == StateReady {
		switch s.policy {
		case PolicyPriorityBased:
			s.reprioritizeTask(t)
		case PolicyDeadlineBased:
			s.sortDeadlineQueue()
		}
	}

	s.rec.Record(fuelsched.OpCollectionMutate, s.level)
	return nil
}

// MarkReady applies a wake signal: a Waiting task transitions to Ready
// and re-enters its policy structure. Unlike UpdateTaskState this charges
// no poll accounting. Waking a task in any other state is a no-op, so
// stale wake signals are harmless.
func (s *Scheduler) MarkReady(id fuelsched.TaskID) error {
	v, ok := s.tasks.Get(id)
	if !ok {
		return errors.TaskNotFound(errors.PhaseWake, uint64(id))
	}
	t := v.(*Task)
	if t.State != StateWaiting {
		return nil
	}
	t.State = StateReady

	switch s.policy {
	case PolicyPriorityBased:
		s.reprioritizeTask(t)
	case PolicyDeadlineBased:
		s.sortDeadlineQueue()
	}
	s.rec.Record(fuelsched.OpWakeSignal, s.level)
	return nil
}

// CheckDeadlines returns the Ready tasks whose elapsed fuel since their
// last scheduling exceeds their deadline. The check itself advances the
// schedule clock; no per-task scheduling state changes.
func (s *Scheduler) CheckDeadlines() []fuelsched.TaskID {
	var violations []fuelsched.TaskID
	s.tasks.Each(func(key, value interface{}) {
		t := value.(*Task)
		if t.State != StateReady || t.Deadline == 0 {
			return
		}
		elapsed := s.clock - t.LastScheduled
		if elapsed > t.Deadline {
			violations = append(violations, t.ID)
		}
	})
	s.clock += deadlineCheckFuel
	s.rec.Record(fuelsched.OpCollectionIterate, s.level)
	return violations
}

// Task returns a copy of the scheduling entry for id.
func (s *Scheduler) Task(id fuelsched.TaskID) (Task, bool) {
	v, ok := s.tasks.Get(id)
	if !ok {
		return Task{}, false
	}
	return *v.(*Task), true
}

// Tasks calls fn for every registered task in ascending TaskID order.
func (s *Scheduler) Tasks(fn func(Task)) {
	s.tasks.Each(func(key, value interface{}) {
		fn(*value.(*Task))
	})
}

// PolicyQueue returns a copy of the active policy queue, in queue order.
func (s *Scheduler) PolicyQueue() []fuelsched.TaskID {
	src := s.policyQueue
	if s.policy == PolicyRoundRobin {
		src = s.rrQueue
	}
	out := make([]fuelsched.TaskID, len(src))
	copy(out, src)
	return out
}

// Policy selection algorithms.

// nextCooperativeTask scans for the first Ready task in ascending TaskID
// order.
func (s *Scheduler) nextCooperativeTask() (fuelsched.TaskID, bool) {
	it := s.tasks.Iterator()
	for it.Next() {
		t := it.Value().(*Task)
		if t.State == StateReady {
			return t.ID, true
		}
	}
	return 0, false
}

// nextPriorityTask pops from the front of the priority queue, skipping
// tasks no longer Ready, until a Ready one is found or the queue empties.
// Skipped entries leave the queue; they re-enter when they next become
// Ready.
func (s *Scheduler) nextPriorityTask() (fuelsched.TaskID, bool) {
	s.rec.Record(fuelsched.OpCollectionLookup, s.level)
	for len(s.policyQueue) > 0 {
		id := s.policyQueue[0]
		s.policyQueue = s.policyQueue[1:]
		if v, ok := s.tasks.Get(id); ok {
			if v.(*Task).State == StateReady {
				return id, true
			}
		}
	}
	return 0, false
}

// nextDeadlineTask scans all Ready tasks and picks the smallest absolute
// deadline. Tasks without a deadline are selected only when no deadlined
// task is Ready. Ties resolve to the smallest TaskID via the scan order.
func (s *Scheduler) nextDeadlineTask() (fuelsched.TaskID, bool) {
	var (
		best         fuelsched.TaskID
		found        bool
		bestHasDl    bool
		bestDeadline uint64
	)
	it := s.tasks.Iterator()
	for it.Next() {
		t := it.Value().(*Task)
		if t.State != StateReady {
			continue
		}
		if t.Deadline > 0 {
			abs := t.AbsoluteDeadline()
			if !bestHasDl || abs < bestDeadline {
				best, bestDeadline = t.ID, abs
				bestHasDl, found = true, true
			}
		} else if !found {
			best, found = t.ID, true
		}
	}
	s.rec.Record(fuelsched.OpCollectionIterate, s.level)
	return best, found
}

// nextRoundRobinTask scans circularly from the stored cursor, skipping
// non-Ready entries; the cursor advances to just past the selection.
func (s *Scheduler) nextRoundRobinTask() (fuelsched.TaskID, bool) {
	n := len(s.rrQueue)
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		pos := (s.rrPos + i) % n
		id := s.rrQueue[pos]
		if v, ok := s.tasks.Get(id); ok {
			if v.(*Task).State == StateReady {
				s.rrPos = (pos + 1) % n
				return id, true
			}
		}
	}
	return 0, false
}

// insertPriorityQueue inserts the task at its sorted position: descending
// by priority, stable on insertion order for ties.
func (s *Scheduler) insertPriorityQueue(t *Task) {
	pos := len(s.policyQueue)
	for i, existing := range s.policyQueue {
		v, ok := s.tasks.Get(existing)
		if !ok {
			continue
		}
		if t.Priority > v.(*Task).Priority {
			pos = i
			break
		}
	}
	s.policyQueue = append(s.policyQueue, 0)
	copy(s.policyQueue[pos+1:], s.policyQueue[pos:])
	s.policyQueue[pos] = t.ID
}

// reprioritizeTask re-inserts a newly Ready task at its sorted position.
func (s *Scheduler) reprioritizeTask(t *Task) {
	s.clock += prioritizeTaskFuel
	s.policyQueue = removeID(s.policyQueue, t.ID)
	s.insertPriorityQueue(t)
	s.rec.Record(fuelsched.OpCollectionMutate, s.level)
}

// sortDeadlineQueue orders the deadline view by absolute deadline,
// earliest first, with deadline-less tasks at the end. The sort is stable
// so equal deadlines keep insertion order.
func (s *Scheduler) sortDeadlineQueue() {
	sort.SliceStable(s.policyQueue, func(i, j int) bool {
		a, aok := s.tasks.Get(s.policyQueue[i])
		b, bok := s.tasks.Get(s.policyQueue[j])
		if !aok || !bok {
			return aok
		}
		ta, tb := a.(*Task), b.(*Task)
		switch {
		case ta.Deadline == 0:
			return false
		case tb.Deadline == 0:
			return true
		default:
			return ta.AbsoluteDeadline() < tb.AbsoluteDeadline()
		}
	})
}

func indexOf(ids []fuelsched.TaskID, id fuelsched.TaskID) int {
	for i, existing := range ids {
		if existing == id {
			return i
		}
	}
	return -1
}

func removeID(ids []fuelsched.TaskID, id fuelsched.TaskID) []fuelsched.TaskID {
	if idx := indexOf(ids, id); idx >= 0 {
		return append(ids[:idx], ids[idx+1:]...)
	}
	return ids
}
