package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/errors"
	"github.com/wippyai/fuel-sched/fuel"
	"github.com/wippyai/fuel-sched/sched"
	"github.com/wippyai/fuel-sched/waker"
)

// Poll is the outcome of polling a task once.
type Poll uint8

const (
	// PollPending means the task parked itself and arranged a wake.
	PollPending Poll = iota
	// PollReady means the task ran to completion.
	PollReady
)

// Task is a pollable unit of work. Poll runs the task until it either
// completes or parks; a parking task must stash the context's waker and
// invoke it when it can make progress again, or it will never be polled
// a second time.
type Task interface {
	Poll(ctx *Context) (Poll, error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx *Context) (Poll, error)

// Poll implements Task.
func (f TaskFunc) Poll(ctx *Context) (Poll, error) { return f(ctx) }

// Context is handed to a task for the duration of one poll.
type Context struct {
	taskID    fuelsched.TaskID
	waker     waker.Waker
	fuelSpent uint64
}

// TaskID returns the task being polled.
func (c *Context) TaskID() fuelsched.TaskID { return c.taskID }

// Waker returns the task's waker. Clones of it stay valid after the poll
// returns.
func (c *Context) Waker() waker.Waker { return c.waker }

// ConsumeFuel charges fuel against the current poll. The total is folded
// into the task's scheduling accounting when the poll returns.
func (c *Context) ConsumeFuel(amount uint64) { c.fuelSpent += amount }

// EventType classifies a task lifecycle event.
type EventType uint8

const (
	EventSpawned EventType = iota
	EventCompleted
	EventFailed
	EventRemoved
)

// Event describes one task lifecycle transition.
type Event struct {
	Type   EventType
	TaskID fuelsched.TaskID
	Err    error
}

// Observer receives task lifecycle events.
type Observer interface {
	OnTaskEvent(e Event)
}

// SpawnOptions carries the scheduling parameters of a new task.
type SpawnOptions struct {
	ComponentID fuelsched.ComponentInstanceID
	Priority    fuelsched.Priority
	// FuelQuota bounds the task's cumulative fuel; zero means unbounded.
	FuelQuota uint64
	// Deadline is a relative fuel budget against the scheduler clock;
	// zero means none.
	Deadline uint64
}

// entry pairs a task with its waker inside the executor.
type entry struct {
	task Task
	wk   waker.Waker
}

// Executor drives pollable tasks over a scheduler. Wake signals flow in
// two ways: wakers push task IDs straight into the shared ready queue,
// and batched sources buffer through the coalescer. Each Step applies
// both, asks the scheduler for the next task and polls it once.
//
// The executor is the single writer of its scheduler. Spawn, Step, Remove
// and Close serialize on an internal lock; Wake and AddWake are safe from
// any goroutine.
type Executor struct {
	mu    sync.Mutex
	sch   *sched.Scheduler
	queue *fuelsched.ReadyQueue
	coal  *waker.Coalescer
	tasks map[fuelsched.TaskID]*entry

	nextID fuelsched.TaskID
	mode   fuelsched.ASILMode

	// Wake fuel optionally debits a fuel-tracked thread. The binding is a
	// single atomic pointer because wakers read it without e.mu; taking
	// e.mu here would deadlock on tasks that wake themselves mid-poll.
	fuelBind atomic.Pointer[fuelBinding]

	observers []Observer
	obsMu     sync.RWMutex

	closed  bool
	closeMu sync.RWMutex
}

// Options configures a new executor.
type Options struct {
	Policy             sched.Policy
	Mode               fuelsched.ASILMode
	VerificationLevel  fuelsched.VerificationLevel
	MaxTasks           int
	ReadyQueueCapacity int
}

// New creates an executor with its own scheduler, ready queue and
// coalescer.
func New(opts Options) *Executor {
	s := sched.New(opts.Policy, opts.VerificationLevel)
	if opts.MaxTasks > 0 {
		s.SetMaxTasks(opts.MaxTasks)
	}
	capQ := opts.ReadyQueueCapacity
	if capQ <= 0 {
		capQ = fuelsched.DefaultReadyQueueCapacity
	}
	return &Executor{
		sch:   s,
		queue: fuelsched.NewReadyQueue(capQ),
		coal:  waker.NewCoalescer(),
		tasks: make(map[fuelsched.TaskID]*entry),
		mode:  opts.Mode,
	}
}

// fuelBinding pairs a fuel manager with the thread that backs the
// executor's budget.
type fuelBinding struct {
	mgr    *fuel.Manager
	thread fuelsched.ThreadID
}

// AttachFuel binds the executor to a fuel-tracked thread; wake debits and
// poll fuel are charged against it.
func (e *Executor) AttachFuel(m *fuel.Manager, threadID fuelsched.ThreadID) {
	e.fuelBind.Store(&fuelBinding{mgr: m, thread: threadID})
}

// Scheduler exposes the underlying scheduler for statistics and
// introspection. Mutations through it race with the executor.
func (e *Executor) Scheduler() *sched.Scheduler { return e.sch }

// Subscribe adds an observer for task lifecycle events.
func (e *Executor) Subscribe(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// Unsubscribe removes an observer.
func (e *Executor) Unsubscribe(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	for i, obs := range e.observers {
		if obs == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

// Spawn registers a task and returns its ID. The task starts Ready and
// will be polled by a subsequent Step.
func (e *Executor) Spawn(task Task, opts SpawnOptions) (fuelsched.TaskID, error) {
	if task == nil {
		return 0, errors.InvalidInput(errors.PhaseSpawn, "nil task")
	}
	e.closeMu.RLock()
	if e.closed {
		e.closeMu.RUnlock()
		return 0, errors.NotInitialized(errors.PhaseSpawn, "executor (closed)")
	}
	e.closeMu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	if err := e.sch.AddTask(id, opts.ComponentID, opts.Priority, opts.FuelQuota, opts.Deadline); err != nil {
		e.nextID--
		return 0, err
	}
	e.tasks[id] = &entry{
		task: task,
		wk:   waker.NewWithMode(id, e.queue, e, e.mode),
	}

	Logger().Debug("task spawned",
		zap.Uint64("task", uint64(id)),
		zap.Uint8("priority", uint8(opts.Priority)))
	e.notify(Event{Type: EventSpawned, TaskID: id})
	return id, nil
}

// Waker returns the waker bound to a task.
func (e *Executor) Waker(id fuelsched.TaskID) (waker.Waker, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.tasks[id]
	if !ok {
		return waker.Noop(), false
	}
	return ent.wk.Clone(), true
}

// AddWake buffers a wake through the coalescer instead of the direct
// waker path. Batched wakes for the same task collapse before they reach
// the ready queue.
func (e *Executor) AddWake(id fuelsched.TaskID) error {
	return e.coal.AddWake(id)
}

// Step applies pending wake signals, selects one task and polls it.
// It reports whether a task was polled; (false, nil) means the executor
// is idle.
func (e *Executor) Step() (bool, error) {
	e.closeMu.RLock()
	if e.closed {
		e.closeMu.RUnlock()
		return false, errors.NotInitialized(errors.PhaseExecute, "executor (closed)")
	}
	e.closeMu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.applyWakes(); err != nil {
		return false, err
	}

	id, ok := e.sch.NextTask()
	if !ok {
		return false, nil
	}
	ent, ok := e.tasks[id]
	if !ok {
		// Scheduler entry without a registered task; drop it.
		_ = e.sch.RemoveTask(id)
		return false, errors.TaskNotFound(errors.PhaseExecute, uint64(id))
	}

	pctx := &Context{taskID: id, waker: ent.wk.Clone()}
	outcome, pollErr := ent.task.Poll(pctx)

	// The wake generation closes only after the poll has actually run;
	// wakes arriving during the poll re-arm the flag afterwards.
	ent.wk.ResetWoken()

	newState := sched.StateWaiting
	switch {
	case pollErr != nil:
		newState = sched.StateFailed
	case outcome == PollReady:
		newState = sched.StateCompleted
	}

	if t, found := e.sch.Task(id); found && t.FuelQuota > 0 &&
		t.FuelConsumed+pctx.fuelSpent > t.FuelQuota {
		newState = sched.StateFuelExhausted
	}

	if err := e.sch.UpdateTaskState(id, pctx.fuelSpent, newState); err != nil {
		return true, err
	}
	if bind := e.fuelBind.Load(); bind != nil && pctx.fuelSpent > 0 {
		// Poll fuel flows into the thread budget; exhaustion there is
		// surfaced to the caller, the poll outcome already stands.
		if err := bind.mgr.ConsumeThreadFuel(bind.thread, pctx.fuelSpent); err != nil {
			return true, err
		}
	}

	switch newState {
	case sched.StateCompleted:
		e.notify(Event{Type: EventCompleted, TaskID: id})
	case sched.StateFailed:
		e.notify(Event{Type: EventFailed, TaskID: id, Err: pollErr})
	}
	if pollErr != nil {
		Logger().Warn("task poll failed",
			zap.Uint64("task", uint64(id)), zap.Error(pollErr))
	}
	return true, pollErr
}

// Drain steps until the executor goes idle or the context is cancelled,
// returning the number of polls performed.
func (e *Executor) Drain(ctx context.Context) (int, error) {
	polled := 0
	for {
		if err := ctx.Err(); err != nil {
			return polled, err
		}
		progressed, err := e.Step()
		if err != nil {
			return polled, err
		}
		if !progressed {
			if e.coal.PendingCount() == 0 && e.queue.Len() == 0 {
				return polled, nil
			}
			continue
		}
		polled++
	}
}

// Remove abandons a task: its scheduling entry and waker binding are
// destroyed. An in-flight wake for the task becomes a harmless no-op.
func (e *Executor) Remove(id fuelsched.TaskID) error {
	e.mu.Lock()
	if _, ok := e.tasks[id]; !ok {
		e.mu.Unlock()
		return errors.TaskNotFound(errors.PhaseExecute, uint64(id))
	}
	delete(e.tasks, id)
	err := e.sch.RemoveTask(id)
	e.mu.Unlock()

	e.notify(Event{Type: EventRemoved, TaskID: id})
	return err
}

// TaskCount returns the number of registered tasks.
func (e *Executor) TaskCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// Close tears the executor down. Subsequent Spawn and Step calls fail;
// wake fuel debits arriving from stray wakers are silently discarded.
func (e *Executor) Close() error {
	e.closeMu.Lock()
	e.closed = true
	e.closeMu.Unlock()

	e.mu.Lock()
	for id := range e.tasks {
		delete(e.tasks, id)
		_ = e.sch.RemoveTask(id)
	}
	e.mu.Unlock()
	return nil
}

// ConsumeWakeFuel implements waker.FuelSink. After Close the debit is
// discarded; a torn-down executor no longer owns a fuel budget.
func (e *Executor) ConsumeWakeFuel(amount uint64) error {
	e.closeMu.RLock()
	closed := e.closed
	e.closeMu.RUnlock()
	if closed {
		return nil
	}
	bind := e.fuelBind.Load()
	if bind == nil {
		return nil
	}
	return bind.mgr.ConsumeThreadFuel(bind.thread, amount)
}

// applyWakes drains the coalescer and the ready queue into Ready state
// transitions. Caller holds e.mu.
func (e *Executor) applyWakes() error {
	if _, err := e.coal.ProcessWakes(e.queue); err != nil {
		return err
	}
	for _, id := range e.queue.Drain() {
		if _, ok := e.tasks[id]; !ok {
			continue // woken after removal
		}
		if err := e.sch.MarkReady(id); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) notify(ev Event) {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	for _, o := range e.observers {
		o.OnTaskEvent(ev)
	}
}
