package waker

import (
	"sync"
	"testing"

	fuelsched "github.com/wippyai/fuel-sched"
)

type recordingSink struct {
	mu     sync.Mutex
	debits []uint64
	closed bool
}

func (s *recordingSink) ConsumeWakeFuel(amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.debits = append(s.debits, amount)
	return nil
}

func (s *recordingSink) total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum uint64
	for _, d := range s.debits {
		sum += d
	}
	return sum
}

func TestWake_AddsToReadyQueue(t *testing.T) {
	q := fuelsched.NewReadyQueue(16)
	w := New(42, q, nil)

	w.Wake()

	ids := q.Snapshot()
	if len(ids) != 1 || ids[0] != 42 {
		t.Fatalf("Ready queue = %v, want [42]", ids)
	}
}

func TestWake_Idempotent(t *testing.T) {
	// k>1 wakes before the task is polled yield exactly one entry.
	q := fuelsched.NewReadyQueue(16)
	w := New(7, q, nil)

	w.Wake()
	w.Wake()
	w.Wake()

	if q.Len() != 1 {
		t.Fatalf("Queue length = %d, want 1", q.Len())
	}
	if w.WakeCount() != 1 {
		t.Fatalf("WakeCount = %d, want 1", w.WakeCount())
	}

	// After the executor polls and resets, the next wake enqueues again.
	q.Drain()
	w.ResetWoken()
	w.Wake()
	if q.Len() != 1 {
		t.Fatalf("Queue length after reset = %d, want 1", q.Len())
	}
	if w.WakeCount() != 2 {
		t.Fatalf("WakeCount = %d, want 2", w.WakeCount())
	}
}

func TestWake_CloneSharesState(t *testing.T) {
	q := fuelsched.NewReadyQueue(16)
	w := New(9, q, nil)
	c := w.Clone()

	w.Wake()
	c.Wake()

	if q.Len() != 1 {
		t.Fatalf("Clone wake duplicated entry: queue length %d", q.Len())
	}
	if c.WakeCount() != 1 {
		t.Fatalf("Clone WakeCount = %d, want 1", c.WakeCount())
	}
}

func TestWake_ConcurrentCollapse(t *testing.T) {
	q := fuelsched.NewReadyQueue(128)
	w := NewWithMode(3, q, nil, fuelsched.ModeD())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Clone().Wake()
		}()
	}
	wg.Wait()

	if q.Len() != 1 {
		t.Fatalf("Concurrent wakes produced %d entries, want 1", q.Len())
	}
}

func TestWake_DeterministicOrdering(t *testing.T) {
	// ASIL-D insertion preserves ascending TaskID order irrespective of
	// arrival order.
	q := fuelsched.NewReadyQueue(16)
	for _, id := range []fuelsched.TaskID{30, 10, 20} {
		NewWithMode(id, q, nil, fuelsched.ModeD()).Wake()
	}

	ids := q.Snapshot()
	want := []fuelsched.TaskID{10, 20, 30}
	if len(ids) != len(want) {
		t.Fatalf("Queue = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Queue = %v, want %v", ids, want)
		}
	}
}

func TestWake_ResourceLimitedDedup(t *testing.T) {
	// ASIL-B deduplicates proactively when fewer than 10 slots remain.
	q := fuelsched.NewReadyQueue(12)
	for i := 0; i < 8; i++ {
		if err := q.Push(5); err != nil { // duplicates via plain pushes
			t.Fatal(err)
		}
	}

	NewWithMode(6, q, nil, fuelsched.ModeB()).Wake()

	ids := q.Snapshot()
	if len(ids) != 2 {
		t.Fatalf("Queue after dedup = %v, want [5 6]", ids)
	}
	if ids[0] != 5 || ids[1] != 6 {
		t.Fatalf("Queue after dedup = %v, want [5 6]", ids)
	}
}

func TestWake_BasicOverflowRetry(t *testing.T) {
	// ASIL-A: on overflow, deduplicate once and retry the push.
	q := fuelsched.NewReadyQueue(4)
	q.Push(1)
	q.Push(1)
	q.Push(2)
	q.Push(2)

	NewWithMode(3, q, nil, fuelsched.ModeA()).Wake()

	ids := q.Snapshot()
	if len(ids) != 3 {
		t.Fatalf("Queue = %v, want [1 2 3]", ids)
	}
	if ids[2] != 3 {
		t.Fatalf("Queue = %v, want trailing 3", ids)
	}
}

func TestWake_FuelDebitByMode(t *testing.T) {
	cases := []struct {
		mode fuelsched.ASILMode
		want uint64
	}{
		{fuelsched.ModeQM(), 5},
		{fuelsched.ModeA(), 5},
		{fuelsched.ModeB(), 7},
		{fuelsched.ModeC(), 8},
		{fuelsched.ModeD(), 10},
	}
	for _, tc := range cases {
		q := fuelsched.NewReadyQueue(16)
		sink := &recordingSink{}
		NewWithMode(1, q, sink, tc.mode).Wake()
		if got := sink.total(); got != tc.want {
			t.Fatalf("%s wake debited %d fuel, want %d", tc.mode.Level, got, tc.want)
		}
	}
}

func TestWake_NoSink(t *testing.T) {
	// A waker without an owning executor still wakes; the debit is
	// skipped, not an error.
	q := fuelsched.NewReadyQueue(16)
	w := New(1, q, nil)
	w.Wake()
	if q.Len() != 1 {
		t.Fatal("Wake without sink did not enqueue")
	}
}

func TestNoopWaker(t *testing.T) {
	w := Noop()
	w.Wake() // must not panic
	if w.TaskID() != 0 || w.WakeCount() != 0 {
		t.Fatal("Noop waker has state")
	}
}
