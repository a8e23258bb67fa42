package fuel

import (
	stderrors "errors"
	"sync"
	"testing"

	fuelsched "github.com/wippyai/fuel-sched"
	scherr "github.com/wippyai/fuel-sched/errors"
)

func TestConsumeFuel_ExhaustionIsSticky(t *testing.T) {
	c := NewThreadContext(1, 1, 1000)

	if err := c.ConsumeFuel(100); err != nil {
		t.Fatal(err)
	}
	if c.RemainingFuel() != 900 {
		t.Fatalf("Remaining = %d, want 900", c.RemainingFuel())
	}
	if err := c.ConsumeFuel(900); err != nil {
		t.Fatal(err)
	}
	if c.RemainingFuel() != 0 {
		t.Fatalf("Remaining = %d, want 0", c.RemainingFuel())
	}

	err := c.ConsumeFuel(1)
	if err == nil {
		t.Fatal("Expected exhaustion error")
	}
	target := &scherr.Error{Phase: scherr.PhaseFuel, Kind: scherr.KindFuelExhausted}
	if !stderrors.Is(err, target) {
		t.Fatalf("Error = %v, want fuel exhaustion", err)
	}
	if !c.Exhausted() {
		t.Fatal("Exhausted flag not set")
	}

	// Sticky: even a zero-cost consume fails now.
	if err := c.ConsumeFuel(0); err == nil {
		t.Fatal("Exhausted context accepted consumption")
	}
}

func TestConsumeFuel_FailsWithoutPartialDebit(t *testing.T) {
	c := NewThreadContext(1, 1, 50)
	if err := c.ConsumeFuel(100); err == nil {
		t.Fatal("Expected exhaustion error")
	}
	if c.RemainingFuel() != 50 {
		t.Fatalf("Remaining = %d after failed consume, want 50", c.RemainingFuel())
	}
	if c.ConsumedFuel() != 0 {
		t.Fatalf("Consumed = %d after failed consume, want 0", c.ConsumedFuel())
	}
}

func TestFuelConservation(t *testing.T) {
	c := NewThreadContext(1, 1, 10_000)

	check := func() {
		s := c.Status()
		if s.RemainingFuel+s.ConsumedFuel != s.InitialFuel {
			t.Fatalf("Conservation violated: %d + %d != %d",
				s.RemainingFuel, s.ConsumedFuel, s.InitialFuel)
		}
	}

	for _, amount := range []uint64{1, 17, 400, 3000} {
		if err := c.ConsumeFuel(amount); err != nil {
			t.Fatal(err)
		}
		check()
	}

	c.AddFuel(5000)
	check()
	if c.InitialFuel() != 15_000 {
		t.Fatalf("InitialFuel = %d after AddFuel, want 15000", c.InitialFuel())
	}
}

func TestAddFuel_DoesNotClearExhaustion(t *testing.T) {
	c := NewThreadContext(1, 1, 10)
	c.ConsumeFuel(10)
	if err := c.ConsumeFuel(1); err == nil {
		t.Fatal("Expected exhaustion")
	}

	c.AddFuel(100)
	if !c.Exhausted() {
		t.Fatal("AddFuel cleared the exhaustion flag")
	}
	if err := c.ConsumeFuel(1); err == nil {
		t.Fatal("Exhausted context accepted consumption after AddFuel")
	}
}

func TestConsumeFuel_Concurrent(t *testing.T) {
	c := NewThreadContext(1, 1, 100_000)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.ConsumeFuel(10)
			}
		}()
	}
	wg.Wait()

	s := c.Status()
	if s.ConsumedFuel != 80_000 {
		t.Fatalf("Consumed = %d, want 80000", s.ConsumedFuel)
	}
	if s.RemainingFuel+s.ConsumedFuel != s.InitialFuel {
		t.Fatalf("Conservation violated under concurrency: %d + %d != %d",
			s.RemainingFuel, s.ConsumedFuel, s.InitialFuel)
	}
}

func TestConsumeToExactlyZeroSucceeds(t *testing.T) {
	c := NewThreadContext(1, 1, 100)
	c.SetCheckInterval(100)

	// Landing exactly on zero crosses a checkpoint but is not exhaustion;
	// the failure comes on the next debit.
	if err := c.ConsumeFuel(100); err != nil {
		t.Fatal(err)
	}
	if c.Exhausted() {
		t.Fatal("Exhausted flag set after a successful consume")
	}
	if err := c.ConsumeFuel(1); err == nil {
		t.Fatal("Expected exhaustion on consume past zero")
	}
}

func TestTimeBound(t *testing.T) {
	tb := NewTimeBound(10, 100, false) // 1000 fuel budget
	if err := tb.Check(999); err != nil {
		t.Fatal(err)
	}
	if err := tb.Check(1000); err != nil {
		t.Fatal(err)
	}
	err := tb.Check(1001)
	if err == nil {
		t.Fatal("Expected time limit error")
	}
	target := &scherr.Error{Phase: scherr.PhaseFuel, Kind: scherr.KindTimeLimit}
	if !stderrors.Is(err, target) {
		t.Fatalf("Error = %v, want time limit", err)
	}
}

func TestTimeBound_OneTimeExtension(t *testing.T) {
	tb := NewTimeBound(10, 100, true)

	if err := tb.Check(1001); err != nil {
		t.Fatalf("First violation should extend, got %v", err)
	}
	if !tb.Extended() {
		t.Fatal("Extension not recorded")
	}
	if tb.Limit() != 2000 {
		t.Fatalf("Limit = %d after extension, want 2000", tb.Limit())
	}
	if err := tb.Check(1999); err != nil {
		t.Fatal(err)
	}
	if err := tb.Check(2001); err == nil {
		t.Fatal("Second violation should be final")
	}
}

func TestTimeBound_Unbounded(t *testing.T) {
	tb := NewTimeBound(0, 100, false)
	if err := tb.Check(1 << 40); err != nil {
		t.Fatalf("Unbounded context rejected consumption: %v", err)
	}
}

func TestInstructionCostScaling(t *testing.T) {
	cases := []struct {
		kind  InstructionKind
		level fuelsched.VerificationLevel
		want  uint64
	}{
		{InstrSimpleConstant, fuelsched.VerifyOff, 1},
		{InstrSimpleConstant, fuelsched.VerifyFull, 2},
		{InstrFunctionCall, fuelsched.VerifyOff, 5},
		{InstrFunctionCall, fuelsched.VerifySampled, 6},
		{InstrFunctionCall, fuelsched.VerifyStandard, 7},
		{InstrFunctionCall, fuelsched.VerifyFull, 10},
		{InstrMemoryManagement, fuelsched.VerifyFull, 20},
		{InstrAtomicOperation, fuelsched.VerifyOff, 8},
	}
	for _, tc := range cases {
		got := CostFor(tc.kind, tc.level)
		if got != tc.want {
			t.Fatalf("CostFor(%s, %s) = %d, want %d", tc.kind, tc.level, got, tc.want)
		}
	}
}
