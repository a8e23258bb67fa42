// Package fuelsched provides a fuel-based deterministic task scheduler for
// safety-certifiable WebAssembly component runtimes.
//
// Scheduling decisions are driven by fuel, an abstract unit of computational
// time, instead of a wall clock. This keeps task selection, wake ordering and
// resource accounting reproducible across runs, which is a prerequisite for
// automotive safety-integrity (ASIL A-D) certification.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	fuelsched/           Root package with shared identifiers, ASIL modes,
//	                     the bounded ready queue and the telemetry interfaces
//	├── sched/           Task scheduler: policies, task table, statistics
//	├── waker/           Wake signaling with ASIL-differentiated semantics
//	│                    and wake coalescing
//	├── fuel/            Fuel-tracked thread manager and instruction costs
//	├── executor/        Poll-loop executor tying the pieces together
//	├── engine/          wazero-backed guest execution with fuel metering
//	├── config/          YAML configuration surface
//	├── errors/          Structured error types
//	└── cmd/run/         CLI driver and interactive dashboard
//
// # Quick Start
//
// Schedule a few tasks under the priority policy:
//
//	s := sched.New(sched.PolicyPriorityBased, fuelsched.VerifyStandard)
//	s.AddTask(1, 10, fuelsched.PriorityLow, 1000, 0)
//	s.AddTask(2, 10, fuelsched.PriorityHigh, 1000, 0)
//
//	id, ok := s.NextTask() // id == 2
//
// Spawn a fuel-budgeted thread and account instruction costs against it:
//
//	m := fuel.NewManager()
//	h, err := m.SpawnThreadWithFuel(fuel.SpawnRequest{
//	    ComponentID: 1,
//	    Entry: func(tc *fuel.ThreadContext) error {
//	        return tc.ConsumeFuel(500)
//	    },
//	}, fuel.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := m.JoinThreadWithFuel(h.ThreadID())
//
// # Determinism
//
// All ordered structures iterate in ascending TaskID order, wake insertion
// under ASIL-D preserves ascending TaskID order regardless of arrival order,
// and deadlines are expressed in fuel units (1ms of budget equals one fuel
// unit times the configured fuel-per-millisecond rate). Given the same task
// set and the same fuel trace, every scheduling decision is identical.
package fuelsched
