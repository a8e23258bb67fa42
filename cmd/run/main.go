package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/config"
	"github.com/wippyai/fuel-sched/engine"
	"github.com/wippyai/fuel-sched/executor"
	"github.com/wippyai/fuel-sched/fuel"
	"github.com/wippyai/fuel-sched/sched"
	"github.com/wippyai/fuel-sched/waker"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML config file")
		policyName  = flag.String("policy", "", "Scheduling policy (cooperative, priority, deadline, round_robin)")
		taskCount   = flag.Int("tasks", 8, "Number of demo tasks to spawn")
		steps       = flag.Int("steps", 0, "Maximum scheduling steps (0 = run until idle)")
		wasmFile    = flag.String("wasm", "", "Guest wasm module to run under fuel metering")
		funcName    = flag.String("func", "", "Guest function to call")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *policyName != "" {
		cfg.Policy = *policyName
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		sched.SetLogger(logger)
		fuel.SetLogger(logger)
		executor.SetLogger(logger)
		engine.SetLogger(logger)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg, *taskCount); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *taskCount, *steps, *wasmFile, *funcName); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, taskCount, maxSteps int, wasmFile, funcName string) error {
	ctx := context.Background()

	mgr := fuel.NewManager()
	mgr.SetFuelEnforcement(cfg.FuelEnforcement)
	mgr.SetVerificationLevel(cfg.Verification())
	if cfg.GlobalFuelLimit > 0 {
		mgr.SetGlobalFuelLimit(cfg.GlobalFuelLimit)
	}

	handle, err := mgr.SpawnThreadWithFuel(fuel.SpawnRequest{
		ComponentID: 1,
		Name:        "executor",
		Entry:       func(tc *fuel.ThreadContext) error { return nil },
	}, cfg.FuelConfig())
	if err != nil {
		return fmt.Errorf("spawn executor thread: %w", err)
	}

	exec := executor.New(executor.Options{
		Policy:             cfg.SchedPolicy(),
		Mode:               cfg.ASILMode(),
		VerificationLevel:  cfg.Verification(),
		MaxTasks:           cfg.MaxTasks,
		ReadyQueueCapacity: cfg.ReadyQueueCapacity,
	})
	exec.AttachFuel(mgr, handle.ThreadID())
	defer exec.Close()

	fmt.Printf("Policy: %s\n", cfg.SchedPolicy())
	fmt.Printf("ASIL mode: %s\n", cfg.ASILMode().Level)
	fmt.Printf("Verification: %s\n", cfg.Verification())

	if err := spawnDemoTasks(exec, taskCount); err != nil {
		return err
	}
	fmt.Printf("\nSpawned %d tasks\n", taskCount)

	polled := 0
	for maxSteps == 0 || polled < maxSteps {
		progressed, err := exec.Step()
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		if !progressed {
			break
		}
		polled++
	}

	stats := exec.Scheduler().Statistics()
	fmt.Printf("\nPolls: %d\n", polled)
	fmt.Printf("Schedule time: %d fuel\n", stats.GlobalScheduleTime)
	fmt.Printf("Task fuel consumed: %d\n", stats.TotalFuelConsumed)
	fmt.Printf("Average fuel per task: %.1f\n", stats.AverageFuelPerTask())
	fmt.Printf("Scheduling efficiency: %.1f%%\n", stats.SchedulingEfficiency())

	if wasmFile != "" {
		if err := runGuest(ctx, mgr, handle.ThreadID(), wasmFile, funcName); err != nil {
			return err
		}
	}

	res, err := mgr.JoinThreadWithFuel(handle.ThreadID())
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	fmt.Printf("\nThread fuel: consumed=%d remaining=%d\n",
		res.FuelStatus.ConsumedFuel, res.FuelStatus.RemainingFuel)

	global := mgr.GetGlobalFuelStatus()
	if global.EnforcementEnabled && cfg.GlobalFuelLimit > 0 {
		fmt.Printf("Global fuel: %d/%d (%.1f%%)\n",
			global.Consumed, global.Limit, global.UsagePercentage())
	}
	return nil
}

// spawnDemoTasks creates a mixed workload: each task burns fuel across a
// few polls, parking between them and waking itself through the
// coalescer.
func spawnDemoTasks(exec *executor.Executor, n int) error {
	priorities := []fuelsched.Priority{
		fuelsched.PriorityLow,
		fuelsched.PriorityNormal,
		fuelsched.PriorityHigh,
		fuelsched.PriorityCritical,
	}

	for i := 0; i < n; i++ {
		pollsLeft := 2 + i%3
		cost := uint64(50 + 25*(i%4))
		var wk waker.Waker

		_, err := exec.Spawn(executor.TaskFunc(func(ctx *executor.Context) (executor.Poll, error) {
			ctx.ConsumeFuel(cost)
			pollsLeft--
			if pollsLeft > 0 {
				wk = ctx.Waker().Clone()
				wk.Wake()
				return executor.PollPending, nil
			}
			return executor.PollReady, nil
		}), executor.SpawnOptions{
			ComponentID: 1,
			Priority:    priorities[i%len(priorities)],
			Deadline:    uint64(500 * (1 + i%2)),
		})
		if err != nil {
			return fmt.Errorf("spawn task: %w", err)
		}
	}
	return nil
}

func runGuest(ctx context.Context, mgr *fuel.Manager, threadID fuelsched.ThreadID, wasmFile, funcName string) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	meter := engine.NewMeter()
	meter.Bind(mgr, threadID)

	e := engine.New(ctx, engine.Config{Meter: meter})
	defer e.Close(ctx)

	mod, err := e.LoadModule(ctx, data)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	inst, err := mod.Instantiate(ctx, "")
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	if funcName == "" {
		funcName = "_start"
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	meter.SetAbort(cancel)

	fmt.Printf("\nCalling %s()...\n", funcName)
	results, err := inst.Call(callCtx, funcName)
	if err != nil {
		if meter.Exhausted() {
			return fmt.Errorf("guest fuel exhausted: %w", meter.Err())
		}
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %v\n", results)
	fmt.Printf("Guest function entries metered: %d\n", meter.Calls())
	return nil
}
