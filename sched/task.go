package sched

import (
	"fmt"

	fuelsched "github.com/wippyai/fuel-sched"
)

// State drives a task's eligibility for selection. Only Ready tasks are
// ever returned by NextTask.
type State uint8

const (
	// StateReady means the task can be polled.
	StateReady State = iota
	// StateRunning means the task is currently being polled.
	StateRunning
	// StateWaiting means the task is suspended pending a wake.
	StateWaiting
	// StateCompleted means the task finished successfully.
	StateCompleted
	// StateFailed means the task's poll returned an error.
	StateFailed
	// StateCancelled means the task was abandoned before completion.
	StateCancelled
	// StateFuelExhausted means the task ran out of its fuel quota.
	StateFuelExhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateFuelExhausted:
		return "fuel_exhausted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether the state ends the task's lifecycle.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateFuelExhausted:
		return true
	default:
		return false
	}
}

// Task is the scheduler's record of one registered task. Fields are
// mutated only through scheduler operations; the scheduler is single-writer
// (see package doc).
type Task struct {
	ID          fuelsched.TaskID
	ComponentID fuelsched.ComponentInstanceID
	Priority    fuelsched.Priority

	// FuelQuota is the fuel budget granted to the task; FuelConsumed
	// accumulates across polls.
	FuelQuota    uint64
	FuelConsumed uint64

	// Deadline is a relative budget in fuel units; zero means no deadline.
	// The absolute deadline is LastScheduled + Deadline.
	Deadline uint64

	// LastScheduled is the scheduler clock value at the task's most recent
	// state update.
	LastScheduled uint64
	ScheduleCount uint64

	State State
}

// AbsoluteDeadline returns LastScheduled + Deadline. Only meaningful when
// Deadline is non-zero.
func (t *Task) AbsoluteDeadline() uint64 {
	return t.LastScheduled + t.Deadline
}

// OverQuota reports whether the task has consumed more than its fuel quota.
func (t *Task) OverQuota() bool {
	return t.FuelQuota > 0 && t.FuelConsumed > t.FuelQuota
}
