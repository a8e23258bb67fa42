package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/fuel"
)

// Meter charges instruction fuel for guest execution. It hooks every
// compiled function through the runtime's function listener mechanism:
// each guest function entry debits one function call plus one local
// access per parameter from the bound fuel thread.
//
// Metering is by category, not per opcode. Function entries dominate the
// fuel profile of component calls and keep the listener off the
// instruction hot path.
type Meter struct {
	mu       sync.RWMutex
	mgr      *fuel.Manager
	threadID fuelsched.ThreadID
	abort    context.CancelFunc

	calls     atomic.Uint64
	exhausted atomic.Bool
	errValue  atomic.Pointer[error]
}

// NewMeter creates an unbound meter. Guest calls metered before Bind are
// counted but debit nothing.
func NewMeter() *Meter { return &Meter{} }

// Bind attaches the meter to a fuel-tracked thread. Subsequent guest
// function entries debit that thread's budget.
func (m *Meter) Bind(mgr *fuel.Manager, threadID fuelsched.ThreadID) {
	m.mu.Lock()
	m.mgr = mgr
	m.threadID = threadID
	m.mu.Unlock()
}

// SetAbort installs the cancel function invoked when a debit fails. The
// caller creates a cancellable context, hands its cancel here and passes
// the context to the guest call; cancellation makes the runtime close the
// in-flight call.
func (m *Meter) SetAbort(cancel context.CancelFunc) {
	m.mu.Lock()
	m.abort = cancel
	m.mu.Unlock()
}

// Calls returns how many guest function entries were metered.
func (m *Meter) Calls() uint64 { return m.calls.Load() }

// Exhausted reports whether a fuel debit has failed.
func (m *Meter) Exhausted() bool { return m.exhausted.Load() }

// Err returns the first debit failure, or nil.
func (m *Meter) Err() error {
	if p := m.errValue.Load(); p != nil {
		return *p
	}
	return nil
}

// NewFunctionListener implements experimental.FunctionListenerFactory.
// One shared listener serves every function; the definition carries the
// per-call parameter count.
func (m *Meter) NewFunctionListener(api.FunctionDefinition) experimental.FunctionListener {
	return meterListener{m}
}

// charge debits the fuel for one guest function entry.
func (m *Meter) charge(paramCount int) {
	m.calls.Add(1)

	m.mu.RLock()
	mgr, threadID, abort := m.mgr, m.threadID, m.abort
	m.mu.RUnlock()
	if mgr == nil || m.exhausted.Load() {
		return
	}

	err := mgr.ConsumeInstructionFuel(threadID, fuel.InstrFunctionCall)
	for i := 0; err == nil && i < paramCount; i++ {
		err = mgr.ConsumeInstructionFuel(threadID, fuel.InstrLocalAccess)
	}
	if err == nil {
		return
	}

	if m.exhausted.CompareAndSwap(false, true) {
		m.errValue.Store(&err)
		Logger().Warn("guest fuel exhausted, aborting call")
		if abort != nil {
			abort()
		}
	}
}

type meterListener struct {
	m *Meter
}

func (l meterListener) Before(_ context.Context, _ api.Module, def api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) {
	l.m.charge(len(def.ParamTypes()))
}

func (l meterListener) After(context.Context, api.Module, api.FunctionDefinition, []uint64) {
}

func (l meterListener) Abort(context.Context, api.Module, api.FunctionDefinition, error) {
}

var _ experimental.FunctionListenerFactory = (*Meter)(nil)
