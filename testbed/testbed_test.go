package testbed

import (
	"context"
	"testing"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/executor"
	"github.com/wippyai/fuel-sched/fuel"
	"github.com/wippyai/fuel-sched/sched"
	"github.com/wippyai/fuel-sched/waker"
)

// TestFullPipeline drives the whole stack: a fuel-tracked thread backs an
// executor whose tasks park and wake through both wake paths, then the
// thread joins and the global ledger must balance.
func TestFullPipeline(t *testing.T) {
	mgr := fuel.NewManager()
	mgr.SetGlobalFuelLimit(1_000_000)

	handle, err := mgr.SpawnThreadWithFuel(fuel.SpawnRequest{
		ComponentID: 1,
		Name:        "executor",
		Entry:       func(tc *fuel.ThreadContext) error { return nil },
	}, fuel.Config{InitialFuel: 100_000})
	if err != nil {
		t.Fatalf("spawn thread: %v", err)
	}

	exec := executor.New(executor.Options{
		Policy: sched.PolicyPriorityBased,
		Mode:   fuelsched.ModeD(),
	})
	exec.AttachFuel(mgr, handle.ThreadID())

	// Tasks burn fuel over three polls. Even IDs wake through the
	// coalescer, odd IDs through their own wakers.
	const n = 6
	polls := make(map[fuelsched.TaskID]int)
	wakers := make(map[fuelsched.TaskID]waker.Waker)
	for i := 0; i < n; i++ {
		_, err := exec.Spawn(executor.TaskFunc(func(ctx *executor.Context) (executor.Poll, error) {
			polls[ctx.TaskID()]++
			ctx.ConsumeFuel(100)
			if polls[ctx.TaskID()] < 3 {
				wakers[ctx.TaskID()] = ctx.Waker().Clone()
				return executor.PollPending, nil
			}
			return executor.PollReady, nil
		}), executor.SpawnOptions{
			ComponentID: 1,
			Priority:    fuelsched.PriorityNormal,
			FuelQuota:   1000,
		})
		if err != nil {
			t.Fatalf("spawn task: %v", err)
		}
	}

	for rounds := 0; rounds < 10; rounds++ {
		if _, err := exec.Drain(context.Background()); err != nil {
			t.Fatalf("drain: %v", err)
		}

		pending := false
		for id, wk := range wakers {
			task, ok := exec.Scheduler().Task(id)
			if !ok || task.State != sched.StateWaiting {
				continue
			}
			pending = true
			if uint64(id)%2 == 0 {
				if err := exec.AddWake(id); err != nil {
					t.Fatalf("coalesced wake: %v", err)
				}
			} else {
				wk.Wake()
			}
		}
		if !pending {
			break
		}
	}

	var completed int
	exec.Scheduler().Tasks(func(task sched.Task) {
		if task.State == sched.StateCompleted {
			completed++
		}
		if task.FuelConsumed != 300 {
			t.Fatalf("Task %d consumed %d fuel, want 300", task.ID, task.FuelConsumed)
		}
	})
	if completed != n {
		t.Fatalf("Completed = %d, want %d", completed, n)
	}

	stats := exec.Scheduler().Statistics()
	if stats.TotalFuelConsumed != n*300 {
		t.Fatalf("TotalFuelConsumed = %d, want %d", stats.TotalFuelConsumed, n*300)
	}

	if err := exec.Close(); err != nil {
		t.Fatal(err)
	}

	// Thread fuel saw every poll and every ASIL-D wake debit.
	status, err := mgr.GetThreadFuelStatus(handle.ThreadID())
	if err != nil {
		t.Fatal(err)
	}
	if status.ConsumedFuel < n*300 {
		t.Fatalf("Thread consumed %d fuel, want at least %d", status.ConsumedFuel, n*300)
	}
	if status.InitialFuel != status.ConsumedFuel+status.RemainingFuel {
		t.Fatalf("Thread fuel books out of balance: %d != %d + %d",
			status.InitialFuel, status.ConsumedFuel, status.RemainingFuel)
	}

	res, err := mgr.JoinThreadWithFuel(handle.ThreadID())
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	// After join only the consumed fuel stays charged globally.
	global := mgr.GetGlobalFuelStatus()
	if global.Consumed != res.FuelStatus.ConsumedFuel {
		t.Fatalf("Global consumed = %d, want %d", global.Consumed, res.FuelStatus.ConsumedFuel)
	}
}

// TestDeterministicReplay runs the same workload twice under ASIL-D and
// expects identical execution traces.
func TestDeterministicReplay(t *testing.T) {
	trace := func() []fuelsched.TaskID {
		exec := executor.New(executor.Options{
			Policy: sched.PolicyDeadlineBased,
			Mode:   fuelsched.ModeD(),
		})
		defer exec.Close()

		var order []fuelsched.TaskID
		deadlines := []uint64{400, 100, 0, 250}
		for i := 0; i < len(deadlines); i++ {
			deadline := deadlines[i]
			if _, err := exec.Spawn(executor.TaskFunc(func(ctx *executor.Context) (executor.Poll, error) {
				order = append(order, ctx.TaskID())
				ctx.ConsumeFuel(50)
				return executor.PollReady, nil
			}), executor.SpawnOptions{
				Priority: fuelsched.PriorityNormal,
				Deadline: deadline,
			}); err != nil {
				t.Fatalf("spawn: %v", err)
			}
		}
		if _, err := exec.Drain(context.Background()); err != nil {
			t.Fatalf("drain: %v", err)
		}
		return order
	}

	first := trace()
	second := trace()
	if len(first) != len(second) {
		t.Fatalf("Trace lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Traces diverge at %d: %v vs %v", i, first, second)
		}
	}
	// Earliest deadline first, deadline-less last.
	want := []fuelsched.TaskID{2, 4, 1, 3}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("Execution order = %v, want %v", first, want)
		}
	}
}
