package fuelsched

import "sync"

// OperationKind classifies an operation for telemetry. The scheduler and
// fuel manager record one operation per mutation so an external sink can
// audit runtime behavior without instrumenting the hot paths itself.
type OperationKind uint8

const (
	OpCollectionInsert OperationKind = iota
	OpCollectionRemove
	OpCollectionLookup
	OpCollectionMutate
	OpCollectionIterate
	OpFunctionCall
	OpWakeSignal

	// WebAssembly instruction categories bridged from guest execution.
	OpWasmSimpleConstant
	OpWasmLocalAccess
	OpWasmGlobalAccess
	OpWasmSimpleArithmetic
	OpWasmComplexArithmetic
	OpWasmFloatArithmetic
	OpWasmComparison
	OpWasmSimpleControl
	OpWasmComplexControl
	OpWasmFunctionCall
	OpWasmMemoryLoad
	OpWasmMemoryStore
	OpWasmMemoryManagement
	OpWasmTableAccess
	OpWasmTypeConversion
	OpWasmSimdOperation
	OpWasmAtomicOperation
)

// Recorder receives one call per recorded operation. Implementations must
// be safe for concurrent use; recording happens on executor and guest
// threads alike.
type Recorder interface {
	Record(op OperationKind, level VerificationLevel)
}

// NopRecorder discards all operations. It is the default sink.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(OperationKind, VerificationLevel) {}

// CountingRecorder tallies operations by kind.
type CountingRecorder struct {
	mu     sync.Mutex
	counts map[OperationKind]uint64
}

// NewCountingRecorder creates an empty counting sink.
func NewCountingRecorder() *CountingRecorder {
	return &CountingRecorder{counts: make(map[OperationKind]uint64)}
}

// Record implements Recorder.
func (r *CountingRecorder) Record(op OperationKind, _ VerificationLevel) {
	r.mu.Lock()
	r.counts[op]++
	r.mu.Unlock()
}

// Count returns how many times op was recorded.
func (r *CountingRecorder) Count(op OperationKind) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[op]
}

// Total returns the total number of recorded operations.
func (r *CountingRecorder) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total uint64
	for _, n := range r.counts {
		total += n
	}
	return total
}
