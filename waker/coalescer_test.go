package waker

import (
	"sync"
	"testing"

	fuelsched "github.com/wippyai/fuel-sched"
)

func TestCoalescer_Deduplicates(t *testing.T) {
	c := NewCoalescer()
	q := fuelsched.NewReadyQueue(16)

	if err := c.AddWake(1); err != nil {
		t.Fatal(err)
	}
	if err := c.AddWake(1); err != nil {
		t.Fatal(err)
	}
	if err := c.AddWake(2); err != nil {
		t.Fatal(err)
	}

	if c.PendingCount() != 2 {
		t.Fatalf("PendingCount = %d, want 2", c.PendingCount())
	}

	processed, err := c.ProcessWakes(q)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 2 {
		t.Fatalf("Processed = %d, want 2", processed)
	}

	ids := q.Snapshot()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("Ready queue = %v, want [1 2]", ids)
	}
	if c.PendingCount() != 0 {
		t.Fatal("Pending buffer not drained")
	}
}

func TestCoalescer_SkipsAlreadyReady(t *testing.T) {
	c := NewCoalescer()
	q := fuelsched.NewReadyQueue(16)
	q.Push(1)

	c.AddWake(1)
	c.AddWake(2)

	processed, err := c.ProcessWakes(q)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 1 {
		t.Fatalf("Processed = %d, want 1 (task 1 already ready)", processed)
	}
	if q.Len() != 2 {
		t.Fatalf("Queue length = %d, want 2", q.Len())
	}
}

func TestCoalescer_Capacity(t *testing.T) {
	c := NewCoalescerWithCapacity(2)
	if err := c.AddWake(1); err != nil {
		t.Fatal(err)
	}
	if err := c.AddWake(2); err != nil {
		t.Fatal(err)
	}
	if err := c.AddWake(3); err == nil {
		t.Fatal("Expected capacity error")
	}
	// A duplicate of a pending task is still a no-op at capacity.
	if err := c.AddWake(2); err != nil {
		t.Fatalf("Duplicate add at capacity: %v", err)
	}
}

func TestCoalescer_ReentrantProcessReturnsZero(t *testing.T) {
	c := NewCoalescer()
	q := fuelsched.NewReadyQueue(16)
	c.AddWake(1)

	// Simulate a drain in progress.
	if !c.processing.CompareAndSwap(false, true) {
		t.Fatal("processing flag unexpectedly set")
	}
	processed, err := c.ProcessWakes(q)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 0 {
		t.Fatalf("Re-entrant ProcessWakes processed %d, want 0", processed)
	}
	c.processing.Store(false)

	processed, _ = c.ProcessWakes(q)
	if processed != 1 {
		t.Fatalf("Processed = %d after flag cleared, want 1", processed)
	}
}

func TestCoalescer_ConcurrentAdds(t *testing.T) {
	c := NewCoalescer()
	q := fuelsched.NewReadyQueue(128)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				c.AddWake(fuelsched.TaskID(j)) // same 8 IDs from every goroutine
			}
		}(i)
	}
	wg.Wait()

	if c.PendingCount() != 8 {
		t.Fatalf("PendingCount = %d, want 8", c.PendingCount())
	}
	processed, _ := c.ProcessWakes(q)
	if processed != 8 {
		t.Fatalf("Processed = %d, want 8", processed)
	}
}
