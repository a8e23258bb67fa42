package fuelsched

import (
	stderrors "errors"
	"sync"
	"testing"

	scherr "github.com/wippyai/fuel-sched/errors"
)

func TestReadyQueue_PushPopOrder(t *testing.T) {
	q := NewReadyQueue(8)
	for _, id := range []TaskID{3, 1, 2} {
		if err := q.Push(id); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []TaskID{3, 1, 2} {
		id, ok := q.Pop()
		if !ok || id != want {
			t.Fatalf("Pop = %d, want %d", id, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue succeeded")
	}
}

func TestReadyQueue_PushFull(t *testing.T) {
	q := NewReadyQueue(2)
	q.Push(1)
	q.Push(2)
	err := q.Push(3)
	if err == nil {
		t.Fatal("Expected overflow error")
	}
	target := &scherr.Error{Phase: scherr.PhaseWake, Kind: scherr.KindResourceLimitExceeded}
	if !stderrors.Is(err, target) {
		t.Fatalf("Error = %v, want resource limit", err)
	}
}

func TestReadyQueue_PushOrdered(t *testing.T) {
	q := NewReadyQueue(8)
	for _, id := range []TaskID{30, 10, 20, 10} {
		if err := q.PushOrdered(id); err != nil {
			t.Fatal(err)
		}
	}
	got := q.Snapshot()
	want := []TaskID{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("Snapshot = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot = %v, want %v", got, want)
		}
	}
}

func TestReadyQueue_PushBoundedDedups(t *testing.T) {
	q := NewReadyQueue(12)
	// Fill with duplicates so fewer than 10 free slots remain.
	for i := 0; i < 8; i++ {
		q.Push(5)
	}
	if err := q.PushBounded(6, 10); err != nil {
		t.Fatal(err)
	}
	got := q.Snapshot()
	if len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("Snapshot = %v, want [5 6]", got)
	}
}

func TestReadyQueue_PushRetryRecoversFromOverflow(t *testing.T) {
	q := NewReadyQueue(4)
	for _, id := range []TaskID{1, 1, 2, 2} {
		q.Push(id)
	}
	if err := q.PushRetry(3); err != nil {
		t.Fatal(err)
	}
	got := q.Snapshot()
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("Snapshot = %v, want [1 2 3]", got)
	}

	// A full queue of distinct IDs cannot be recovered by dedup.
	q2 := NewReadyQueue(2)
	q2.Push(1)
	q2.Push(2)
	if err := q2.PushRetry(3); err == nil {
		t.Fatal("Expected overflow after failed dedup")
	}
}

func TestReadyQueue_PushAllIfAbsent(t *testing.T) {
	q := NewReadyQueue(8)
	q.Push(2)
	inserted := q.PushAllIfAbsent([]TaskID{1, 2, 3})
	if inserted != 2 {
		t.Fatalf("Inserted = %d, want 2", inserted)
	}
	got := q.Snapshot()
	if len(got) != 3 || got[0] != 2 || got[1] != 1 || got[2] != 3 {
		t.Fatalf("Snapshot = %v, want [2 1 3]", got)
	}
}

func TestReadyQueue_Drain(t *testing.T) {
	q := NewReadyQueue(8)
	q.Push(1)
	q.Push(2)
	ids := q.Drain()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("Drain = %v, want [1 2]", ids)
	}
	if q.Len() != 0 {
		t.Fatal("Queue not empty after drain")
	}
}

func TestReadyQueue_Concurrent(t *testing.T) {
	q := NewReadyQueue(256)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 16; i++ {
				q.PushIfAbsent(TaskID(base*16 + i))
			}
		}(g)
	}
	wg.Wait()
	if q.Len() != 128 {
		t.Fatalf("Len = %d, want 128", q.Len())
	}
}

func TestASILModes(t *testing.T) {
	cases := []struct {
		mode  ASILMode
		level ASILLevel
	}{
		{ModeQM(), LevelQM},
		{ModeA(), LevelA},
		{ModeB(), LevelB},
		{ModeC(), LevelC},
		{ModeD(), LevelD},
	}
	for _, tc := range cases {
		if tc.mode.Level != tc.level {
			t.Fatalf("Mode level = %v, want %v", tc.mode.Level, tc.level)
		}
	}

	d := ModeD()
	if !d.DeterministicExecution || !d.TemporalIsolation || !d.StrictResourceLimits || !d.ErrorDetection {
		t.Fatalf("ModeD = %+v, want all flags set", d)
	}
	qm := ModeQM()
	if qm.DeterministicExecution || qm.StrictResourceLimits {
		t.Fatalf("ModeQM = %+v, want no hard guarantees", qm)
	}

	level, err := ParseASILLevel("D")
	if err != nil || level != LevelD {
		t.Fatalf("ParseASILLevel(D) = %v, %v", level, err)
	}
	if _, err := ParseASILLevel("X"); err == nil {
		t.Fatal("ParseASILLevel accepted unknown level")
	}
}

func TestVerificationCostMultiplier(t *testing.T) {
	cases := map[VerificationLevel]uint64{
		VerifyOff:      4,
		VerifySampled:  5,
		VerifyStandard: 6,
		VerifyFull:     8,
	}
	for level, want := range cases {
		if got := level.CostMultiplier(); got != want {
			t.Fatalf("CostMultiplier(%s) = %d, want %d", level, got, want)
		}
	}
}
