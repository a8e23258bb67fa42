package fuel

import (
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/errors"
)

// DefaultMaxThreads bounds the number of simultaneously tracked threads.
const DefaultMaxThreads = 512

// Config carries the fuel settings for one spawned thread.
type Config struct {
	// InitialFuel is the thread's starting budget; zero selects
	// MaxFuelPerThread.
	InitialFuel uint64
	// FuelPerMS converts the time budget into fuel.
	FuelPerMS uint64
	// TimeLimitMS bounds execution time, approximated through fuel;
	// zero means unbounded.
	TimeLimitMS uint64
	// AllowFuelExtension permits AddThreadFuel and one time-bound
	// extension.
	AllowFuelExtension bool
	// CheckInterval overrides the fuel checkpoint interval.
	CheckInterval uint64
}

// DefaultConfig returns the standard bounded configuration.
func DefaultConfig() Config {
	return Config{
		InitialFuel:   MaxFuelPerThread,
		FuelPerMS:     DefaultFuelPerMS,
		CheckInterval: DefaultCheckInterval,
	}
}

// UnlimitedConfig returns a configuration with the maximum budget and
// extension allowed, for threads that must not be fuel-killed.
func UnlimitedConfig() Config {
	return Config{
		InitialFuel:        math.MaxUint64 / 2,
		AllowFuelExtension: true,
		CheckInterval:      math.MaxUint64 / 2,
	}
}

// SpawnRequest describes the thread to create. Entry runs on its own
// goroutine with the thread's fuel context; raw OS-thread placement is an
// external collaborator's concern.
type SpawnRequest struct {
	ComponentID fuelsched.ComponentInstanceID
	Name        string
	Entry       func(tc *ThreadContext) error
}

// Handle refers to a spawned, not-yet-joined thread.
type Handle struct {
	threadID fuelsched.ThreadID
	done     chan struct{}
	err      error
}

// ThreadID returns the spawned thread's identifier.
func (h *Handle) ThreadID() fuelsched.ThreadID { return h.threadID }

// Done is closed when the thread's entry function returns.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result is the outcome of joining a fuel-tracked thread.
type Result struct {
	ThreadID fuelsched.ThreadID
	// Err is the error returned by the thread's entry function.
	Err error
	// FuelStatus is the final fuel snapshot captured at join.
	FuelStatus ThreadFuelStatus
}

// GlobalFuelStatus is a read-only view of the global ledger.
type GlobalFuelStatus struct {
	Limit              uint64
	Consumed           uint64
	EnforcementEnabled bool
}

// Remaining returns the unallocated global fuel.
func (s GlobalFuelStatus) Remaining() uint64 {
	if s.Consumed > s.Limit {
		return 0
	}
	return s.Limit - s.Consumed
}

// UsagePercentage returns consumed over limit as a percentage.
func (s GlobalFuelStatus) UsagePercentage() float64 {
	if s.Limit == 0 {
		return 0
	}
	return float64(s.Consumed) / float64(s.Limit) * 100
}

// entry pairs a thread's tracking state inside the manager.
type threadEntry struct {
	ctx      *ThreadContext
	bound    *TimeBound
	handle   *Handle
	allowExt bool

	// ledgered records whether this thread's fuel was committed to the
	// global ledger at spawn. Extensions and the join-time refund follow
	// this snapshot, not the current enforcement flag, so toggling
	// enforcement mid-flight cannot strand or underflow the ledger.
	ledgered bool
}

// Manager turns spawned threads into fuel-budgeted execution contexts and
// maintains the global fuel ledger shared across all of them.
//
// The spawn-time sequence "check global headroom, then commit the ledger"
// is two separate atomic operations, so concurrent spawns can transiently
// overcommit the limit by a small margin. The original design leaves the
// acceptable slack unspecified; the ledger itself never loses fuel.
type Manager struct {
	mu      sync.RWMutex
	threads map[fuelsched.ThreadID]*threadEntry

	nextThreadID atomic.Uint32
	maxThreads   int

	globalLimit    atomic.Uint64
	globalConsumed atomic.Uint64
	enforcement    atomic.Bool

	level fuelsched.VerificationLevel
	rec   fuelsched.Recorder
}

// NewManager creates a manager with enforcement enabled and no effective
// global limit.
func NewManager() *Manager {
	m := &Manager{
		threads:    make(map[fuelsched.ThreadID]*threadEntry),
		maxThreads: DefaultMaxThreads,
		rec:        fuelsched.NopRecorder{},
	}
	m.globalLimit.Store(math.MaxUint64)
	m.enforcement.Store(true)
	return m
}

// SetGlobalFuelLimit sets the ledger's limit.
func (m *Manager) SetGlobalFuelLimit(limit uint64) {
	m.globalLimit.Store(limit)
}

// SetFuelEnforcement toggles global and per-thread enforcement.
func (m *Manager) SetFuelEnforcement(enforce bool) {
	m.enforcement.Store(enforce)
}

// SetVerificationLevel sets the level used for instruction fuel costs.
func (m *Manager) SetVerificationLevel(level fuelsched.VerificationLevel) {
	m.level = level
}

// SetRecorder installs a telemetry sink.
func (m *Manager) SetRecorder(r fuelsched.Recorder) {
	if r == nil {
		r = fuelsched.NopRecorder{}
	}
	m.rec = r
}

// SpawnThreadWithFuel creates a fuel-tracked thread. When enforcement is
// enabled, the global ledger is checked before anything is created: a
// spawn that would overcommit fails with no thread and no ledger change.
func (m *Manager) SpawnThreadWithFuel(req SpawnRequest, cfg Config) (*Handle, error) {
	if req.Entry == nil {
		return nil, errors.InvalidInput(errors.PhaseSpawn, "spawn request has no entry function")
	}
	initialFuel := cfg.InitialFuel
	if initialFuel == 0 {
		initialFuel = MaxFuelPerThread
	}

	ledgered := m.enforcement.Load()
	if ledgered {
		consumed := m.globalConsumed.Load()
		limit := m.globalLimit.Load()
		if consumed+initialFuel > limit || consumed+initialFuel < consumed {
			return nil, errors.ResourceLimitExceeded(errors.PhaseSpawn,
				"global fuel limit would be exceeded")
		}
	}

	m.mu.Lock()
	if len(m.threads) >= m.maxThreads {
		m.mu.Unlock()
		return nil, errors.ResourceLimitExceeded(errors.PhaseSpawn, "too many thread contexts")
	}
	threadID := fuelsched.ThreadID(m.nextThreadID.Add(1))

	tc := NewThreadContext(threadID, req.ComponentID, initialFuel)
	if cfg.CheckInterval > 0 {
		tc.SetCheckInterval(cfg.CheckInterval)
	}
	tb := NewTimeBound(cfg.TimeLimitMS, cfg.FuelPerMS, cfg.AllowFuelExtension)

	h := &Handle{threadID: threadID, done: make(chan struct{})}
	m.threads[threadID] = &threadEntry{
		ctx:      tc,
		bound:    tb,
		handle:   h,
		allowExt: cfg.AllowFuelExtension,
		ledgered: ledgered,
	}
	m.mu.Unlock()

	if ledgered {
		m.globalConsumed.Add(initialFuel)
	}
	m.rec.Record(fuelsched.OpCollectionInsert, m.level)
	Logger().Debug("thread spawned",
		zap.Uint32("thread", uint32(threadID)),
		zap.Uint32("component", uint32(req.ComponentID)),
		zap.Uint64("fuel", initialFuel),
		zap.String("name", req.Name))

	go func() {
		h.err = req.Entry(tc)
		close(h.done)
	}()

	return h, nil
}

// ConsumeThreadFuel debits the thread's fuel context. At every fuel
// checkpoint the thread's time bound is re-validated as well.
func (m *Manager) ConsumeThreadFuel(threadID fuelsched.ThreadID, amount uint64) error {
	if !m.enforcement.Load() {
		return nil
	}
	entry, err := m.lookup(threadID)
	if err != nil {
		return err
	}

	checkpoint, err := entry.ctx.consume(amount)
	if err != nil {
		return err
	}
	if checkpoint {
		if err := entry.ctx.checkStatus(); err != nil {
			return err
		}
		if err := entry.bound.Check(entry.ctx.ConsumedFuel()); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeInstructionFuel debits the fuel cost of one instruction of the
// given category, scaled by the manager's verification level, and records
// the operation for telemetry. This is the bridge between bytecode
// execution and scheduler-visible fuel.
func (m *Manager) ConsumeInstructionFuel(threadID fuelsched.ThreadID, kind InstructionKind) error {
	cost := CostFor(kind, m.level)
	m.rec.Record(kind.Operation(), m.level)
	return m.ConsumeThreadFuel(threadID, cost)
}

// AddThreadFuel extends a thread's budget and returns the new remaining
// fuel. The thread must have been spawned with fuel extension allowed.
// Extension does not clear a sticky exhaustion flag.
func (m *Manager) AddThreadFuel(threadID fuelsched.ThreadID, amount uint64) (uint64, error) {
	entry, err := m.lookup(threadID)
	if err != nil {
		return 0, err
	}
	if !entry.allowExt {
		return 0, errors.InvalidInput(errors.PhaseFuel, "thread was spawned without fuel extension")
	}
	newFuel := entry.ctx.AddFuel(amount)
	if entry.ledgered {
		m.globalConsumed.Add(amount)
	}
	return newFuel, nil
}

// GetThreadFuelStatus returns the thread's fuel snapshot.
func (m *Manager) GetThreadFuelStatus(threadID fuelsched.ThreadID) (ThreadFuelStatus, error) {
	entry, err := m.lookup(threadID)
	if err != nil {
		return ThreadFuelStatus{}, err
	}
	return entry.ctx.Status(), nil
}

// ThreadContext returns the live fuel context for a thread, for callers
// that debit fuel directly (guest execution meters).
func (m *Manager) ThreadContext(threadID fuelsched.ThreadID) (*ThreadContext, error) {
	entry, err := m.lookup(threadID)
	if err != nil {
		return nil, err
	}
	return entry.ctx, nil
}

// JoinThreadWithFuel waits for the thread to finish, captures its final
// fuel status, removes its tracking entries and returns the unused fuel
// to the global ledger. Joining is the only path that frees global
// capacity; fuel release is tied to thread lifecycle, not to exhaustion.
func (m *Manager) JoinThreadWithFuel(threadID fuelsched.ThreadID) (Result, error) {
	entry, err := m.lookup(threadID)
	if err != nil {
		return Result{}, err
	}

	<-entry.handle.done
	status := entry.ctx.Status()

	m.mu.Lock()
	delete(m.threads, threadID)
	m.mu.Unlock()

	if entry.ledgered && status.RemainingFuel > 0 {
		m.globalConsumed.Add(^(status.RemainingFuel - 1)) // fetch-sub
	}
	m.rec.Record(fuelsched.OpCollectionRemove, m.level)
	Logger().Debug("thread joined",
		zap.Uint32("thread", uint32(threadID)),
		zap.Uint64("consumed", status.ConsumedFuel),
		zap.Uint64("returned", status.RemainingFuel))

	return Result{
		ThreadID:   threadID,
		Err:        entry.handle.err,
		FuelStatus: status,
	}, nil
}

// GetGlobalFuelStatus returns a snapshot of the global ledger.
func (m *Manager) GetGlobalFuelStatus() GlobalFuelStatus {
	return GlobalFuelStatus{
		Limit:              m.globalLimit.Load(),
		Consumed:           m.globalConsumed.Load(),
		EnforcementEnabled: m.enforcement.Load(),
	}
}

// ExecuteWithFuelTracking debits fuelPerOperation, then runs op. The
// operation does not run if the debit fails.
func (m *Manager) ExecuteWithFuelTracking(threadID fuelsched.ThreadID, fuelPerOperation uint64, op func() error) error {
	if err := m.ConsumeThreadFuel(threadID, fuelPerOperation); err != nil {
		return err
	}
	return op()
}

// ThreadCount returns the number of live tracked threads.
func (m *Manager) ThreadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.threads)
}

func (m *Manager) lookup(threadID fuelsched.ThreadID) (*threadEntry, error) {
	m.mu.RLock()
	entry, ok := m.threads[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.ThreadNotFound(errors.PhaseFuel, uint32(threadID))
	}
	return entry, nil
}
