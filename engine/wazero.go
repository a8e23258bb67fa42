package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"
)

// Config holds configuration for engine creation.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages
	// (64KB each). 0 means the wazero default.
	MemoryLimitPages uint32

	// Meter enables instruction fuel metering for every compiled
	// function. Guest execution then debits the bound fuel thread and is
	// aborted through context cancellation when the budget runs out.
	Meter *Meter
}

// Engine wraps a wazero runtime configured for fuel-supervised guest
// execution. The runtime closes in-flight calls when their context is
// cancelled, which is how fuel exhaustion interrupts a guest.
type Engine struct {
	runtime wazero.Runtime
	meter   *Meter
}

// New creates an engine. The context is held by the runtime for the
// lifetime of the engine.
func New(ctx context.Context, cfg Config) *Engine {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		meter:   cfg.Meter,
	}
}

// Meter returns the engine's instruction meter, or nil.
func (e *Engine) Meter() *Meter { return e.meter }

// Close releases the runtime and all modules compiled under it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Module is a compiled guest module.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// LoadModule compiles guest bytes into a module. wazero picks the
// function-listener factory up from the compile-time context, so the meter
// is attached here rather than at runtime creation.
func (e *Engine) LoadModule(ctx context.Context, wasmBytes []byte) (*Module, error) {
	if e.meter != nil {
		ctx = experimental.WithFunctionListenerFactory(ctx, e.meter)
	}
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}
	return &Module{engine: e, compiled: compiled}, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instance is a running guest instance.
// It is NOT safe for concurrent use from multiple goroutines.
type Instance struct {
	instance api.Module
}

// Instantiate creates an instance of the module. An empty name keeps the
// instance anonymous so multiple instances can coexist.
func (m *Module) Instantiate(ctx context.Context, name string) (*Instance, error) {
	modConfig := wazero.NewModuleConfig().WithName(name)
	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiate failed: %w", err)
	}
	return &Instance{instance: instance}, nil
}

// Call invokes an exported function. When the engine meters fuel, pass a
// context wired to the meter's abort so exhaustion interrupts the guest.
func (i *Instance) Call(ctx context.Context, funcName string, args ...uint64) ([]uint64, error) {
	fn := i.instance.ExportedFunction(funcName)
	if fn == nil {
		return nil, fmt.Errorf("function %q not found", funcName)
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		Logger().Debug("guest call failed",
			zap.String("func", funcName), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// Memory returns the instance's linear memory, or nil.
func (i *Instance) Memory() api.Memory {
	return i.instance.Memory()
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.instance.Close(ctx)
}
