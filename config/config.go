// Package config loads and validates runtime configuration.
package config

import (
	"os"

	"github.com/goccy/go-yaml"

	fuelsched "github.com/wippyai/fuel-sched"
	"github.com/wippyai/fuel-sched/errors"
	"github.com/wippyai/fuel-sched/fuel"
	"github.com/wippyai/fuel-sched/sched"
)

// Config is the YAML-backed runtime configuration.
type Config struct {
	// Policy selects the scheduling policy: cooperative, priority,
	// deadline or round_robin.
	Policy string `yaml:"policy"`
	// FuelQuantum is the round-robin fuel allotment per turn.
	FuelQuantum uint64 `yaml:"fuel_quantum"`
	// MaxTasks bounds the scheduler's task table.
	MaxTasks int `yaml:"max_tasks"`
	// ReadyQueueCapacity bounds the shared ready queue.
	ReadyQueueCapacity int `yaml:"ready_queue_capacity"`

	// GlobalFuelLimit caps total fuel across all threads; 0 means no cap.
	GlobalFuelLimit uint64 `yaml:"global_fuel_limit"`
	// FuelEnforcement toggles fuel accounting entirely.
	FuelEnforcement bool `yaml:"fuel_enforcement"`
	// InitialThreadFuel is the default per-thread budget.
	InitialThreadFuel uint64 `yaml:"initial_thread_fuel"`
	// FuelPerMS converts millisecond time budgets into fuel.
	FuelPerMS uint64 `yaml:"fuel_per_ms"`
	// FuelCheckInterval is the consumed-fuel distance between checkpoints.
	FuelCheckInterval uint64 `yaml:"fuel_check_interval"`
	// AllowFuelExtension permits refueling live threads.
	AllowFuelExtension bool `yaml:"allow_fuel_extension"`

	// ASILLevel selects the wake subsystem's execution mode: QM, A, B,
	// C or D.
	ASILLevel string `yaml:"asil_level"`
	// VerificationLevel scales instruction fuel costs: off, sampled,
	// standard or full.
	VerificationLevel string `yaml:"verification_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Policy:             sched.PolicyCooperative.String(),
		FuelQuantum:        sched.DefaultFuelQuantum,
		MaxTasks:           sched.DefaultMaxTasks,
		ReadyQueueCapacity: fuelsched.DefaultReadyQueueCapacity,
		FuelEnforcement:    true,
		InitialThreadFuel:  fuel.MaxFuelPerThread,
		FuelPerMS:          fuel.DefaultFuelPerMS,
		FuelCheckInterval:  fuel.DefaultCheckInterval,
		ASILLevel:          "A",
		VerificationLevel:  "standard",
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field values and cross-field consistency.
func (c Config) Validate() error {
	if _, err := sched.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if _, err := fuelsched.ParseASILLevel(c.ASILLevel); err != nil {
		return err
	}
	if _, err := ParseVerificationLevel(c.VerificationLevel); err != nil {
		return err
	}
	if c.MaxTasks < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "max_tasks must not be negative")
	}
	if c.ReadyQueueCapacity < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "ready_queue_capacity must not be negative")
	}
	if c.FuelEnforcement && c.InitialThreadFuel == 0 {
		return errors.InvalidInput(errors.PhaseConfig, "initial_thread_fuel must be positive when enforcement is on")
	}
	return nil
}

// SchedPolicy returns the parsed scheduling policy.
func (c Config) SchedPolicy() sched.Policy {
	p, err := sched.ParsePolicy(c.Policy)
	if err != nil {
		return sched.PolicyCooperative
	}
	return p
}

// ASILMode returns the execution mode for the configured level.
func (c Config) ASILMode() fuelsched.ASILMode {
	level, err := fuelsched.ParseASILLevel(c.ASILLevel)
	if err != nil {
		return fuelsched.DefaultMode()
	}
	return fuelsched.ModeFor(level)
}

// Verification returns the parsed verification level.
func (c Config) Verification() fuelsched.VerificationLevel {
	v, err := ParseVerificationLevel(c.VerificationLevel)
	if err != nil {
		return fuelsched.VerifyStandard
	}
	return v
}

// FuelConfig returns the per-thread fuel configuration.
func (c Config) FuelConfig() fuel.Config {
	return fuel.Config{
		InitialFuel:        c.InitialThreadFuel,
		FuelPerMS:          c.FuelPerMS,
		CheckInterval:      c.FuelCheckInterval,
		AllowFuelExtension: c.AllowFuelExtension,
	}
}

// ParseVerificationLevel parses a verification level name.
func ParseVerificationLevel(s string) (fuelsched.VerificationLevel, error) {
	switch s {
	case "off":
		return fuelsched.VerifyOff, nil
	case "sampled":
		return fuelsched.VerifySampled, nil
	case "standard", "":
		return fuelsched.VerifyStandard, nil
	case "full":
		return fuelsched.VerifyFull, nil
	default:
		return 0, errors.InvalidInput(errors.PhaseConfig, "unknown verification level: "+s)
	}
}
