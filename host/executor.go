package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"

	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/exports"
	wazeroadapter "github.com/coral-dev/coral-go/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// DefaultHostName names a native module loaded without an explicit name.
const DefaultHostName = "native"

// Executor manages the lifecycle of native WASM hosts bound to one Surface.
type Executor struct {
	runtime       wazero.Runtime
	runtimeConfig wazero.RuntimeConfig
	binding       *wazeroadapter.Binding
	surface       *exports.Surface
	stdout        io.Writer
	stderr        io.Writer
	adapterOpts   []wazeroadapter.AdapterOption
	config        entities.Config
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, surface *exports.Surface, opts ...Option) (*Executor, error) {
	if surface == nil {
		return nil, fmt.Errorf("surface is required")
	}

	e := &Executor{surface: surface, config: entities.DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	if e.runtimeConfig == nil {
		e.runtimeConfig = wazero.NewRuntimeConfig()
	}

	rt := wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	e.runtime = rt

	if err := e.registerBridge(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register bridge functions: %w", err)
	}

	return e, nil
}

// Config returns the bridge configuration in effect.
func (e *Executor) Config() entities.Config {
	return e.config
}

// Surface returns the surface native hosts are bound to.
func (e *Executor) Surface() *exports.Surface {
	return e.surface
}

// Binding returns the wazero binding of the bridge host module.
func (e *Executor) Binding() *wazeroadapter.Binding {
	return e.binding
}

// Close releases resources held by the executor, including every loaded host.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// NativeHost represents an instantiated native WASM module.
type NativeHost struct {
	executor *Executor
	module   api.Module
	name     string
}

// Load compiles and instantiates a native module under name. Start functions
// are not run; "_initialize" is called when exported. The module must export
// the allocator functions strings are exchanged through.
func (e *Executor) Load(ctx context.Context, name string, wasmBytes []byte) (*NativeHost, error) {
	if name == "" {
		name = DefaultHostName
	}
	ctx = wazeroadapter.WithHostName(ctx, name)

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module %q: %w", name, err)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, e.moduleConfig(name))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module %q: %w", name, err)
	}

	cfg := e.binding.Config()
	for _, export := range []string{cfg.AllocateExport, cfg.DeallocateExport} {
		if mod.ExportedFunction(export) == nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("module %q does not export %q", name, export)
		}
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	return &NativeHost{executor: e, module: mod, name: name}, nil
}

// Name returns the host name the module was loaded under.
func (h *NativeHost) Name() string {
	return h.name
}

// Module returns the instantiated module.
func (h *NativeHost) Module() api.Module {
	return h.module
}

// Run calls the configured entry point. A WASI exit with code zero is success.
func (h *NativeHost) Run(ctx context.Context) error {
	_, err := h.Call(ctx, h.executor.config.EntryPoint)
	var exit *sys.ExitError
	if stdErrors.As(err, &exit) && exit.ExitCode() == 0 {
		return nil
	}
	return err
}

// Call invokes an exported function of the native module.
func (h *NativeHost) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := h.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found in module %q", name, h.name)
	}
	results, err := fn.Call(wazeroadapter.WithHostName(ctx, h.name), params...)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", h.name, name, err)
	}
	return results, nil
}

// Close drops the module's boundary and closes the module.
func (h *NativeHost) Close(ctx context.Context) error {
	h.executor.binding.Forget(h.module)
	return h.module.Close(ctx)
}
