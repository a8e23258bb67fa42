package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the runtime the error occurred
type Phase string

const (
	PhaseSchedule Phase = "schedule" // scheduler operations
	PhaseWake     Phase = "wake"     // waker and coalescer operations
	PhaseFuel     Phase = "fuel"     // fuel accounting
	PhaseSpawn    Phase = "spawn"    // thread creation and teardown
	PhaseExecute  Phase = "execute"  // task polling and guest execution
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindResourceLimitExceeded Kind = "resource_limit_exceeded"
	KindFuelExhausted         Kind = "fuel_exhausted"
	KindThreadNotFound        Kind = "thread_not_found"
	KindTaskNotFound          Kind = "task_not_found"
	KindDuplicateTask         Kind = "duplicate_task"
	KindTimeLimit             Kind = "time_limit"
	KindInvalidInput          Kind = "invalid_input"
	KindNotInitialized        Kind = "not_initialized"
)

// Error is the structured error type used throughout the scheduler
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ResourceLimitExceeded creates a capacity violation error
func ResourceLimitExceeded(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindResourceLimitExceeded,
		Detail: detail,
	}
}

// FuelExhausted creates a fuel exhaustion error
func FuelExhausted(phase Phase, requested, remaining uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFuelExhausted,
		Detail: fmt.Sprintf("requested %d fuel, %d remaining", requested, remaining),
		Value:  requested,
	}
}

// ThreadNotFound creates an unknown-thread error
func ThreadNotFound(phase Phase, threadID uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindThreadNotFound,
		Detail: fmt.Sprintf("thread %d not registered or already joined", threadID),
		Value:  threadID,
	}
}

// TaskNotFound creates an unknown-task error
func TaskNotFound(phase Phase, taskID uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTaskNotFound,
		Detail: fmt.Sprintf("task %d not registered", taskID),
		Value:  taskID,
	}
}

// DuplicateTask creates an already-registered error
func DuplicateTask(phase Phase, taskID uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicateTask,
		Detail: fmt.Sprintf("task %d already registered", taskID),
		Value:  taskID,
	}
}

// TimeLimit creates a time-bound violation error
func TimeLimit(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTimeLimit,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotInitialized creates a not-initialized error for a missing component
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
