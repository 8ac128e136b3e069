// Package wazero registers the bridge's exported functions with the wazero runtime.
package wazero

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coral-dev/coral-go/application/exception"
	"github.com/coral-dev/coral-go/exports"
	"github.com/coral-dev/coral-go/internal/abi"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// ModuleName is the host module name the native module imports (default: "coral").
	ModuleName string

	// AllocateExport is the native export used to allocate strings (default: "allocate").
	AllocateExport string

	// DeallocateExport is the native export used to free strings (default: "deallocate").
	DeallocateExport string

	// MaxStringBytes limits a single string read from or written to native memory.
	// Default is 1MB.
	MaxStringBytes uint32

	// MaxLiveStrings limits strings owned by the native side at once.
	MaxLiveStrings int

	// CustomHandlers allows adding additional wazero-specific handlers next to
	// the bridge's exported functions.
	CustomHandlers []CustomHandler
}

// CustomHandler represents an extra wazero handler exported by the host module.
type CustomHandler struct {
	// Name is the exported function name.
	Name string

	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "coral").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		if name != "" {
			c.ModuleName = name
		}
	}
}

// WithAllocatorExports sets the native allocator export names.
func WithAllocatorExports(allocate, deallocate string) AdapterOption {
	return func(c *AdapterConfig) {
		if allocate != "" {
			c.AllocateExport = allocate
		}
		if deallocate != "" {
			c.DeallocateExport = deallocate
		}
	}
}

// WithMaxStringBytes sets the maximum string size exchanged with native memory.
func WithMaxStringBytes(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxStringBytes = size
	}
}

// WithMaxLiveStrings sets the maximum number of strings owned by the native side.
func WithMaxLiveStrings(n int) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxLiveStrings = n
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:       "coral",
		AllocateExport:   "allocate",
		DeallocateExport: "deallocate",
		MaxStringBytes:   abi.DefaultMaxStringBytes,
		MaxLiveStrings:   abi.DefaultMaxLiveStrings,
	}
}

// Binding connects a Surface to the native modules that import the host module.
// Each native module instance gets its own Boundary over its own memory.
type Binding struct {
	surface    *exports.Surface
	host       api.Module
	boundaries sync.Map // map[api.Module]*guestBinding
	config     AdapterConfig
}

// guestBinding is the Boundary of one native module and the memory it runs on.
type guestBinding struct {
	boundary *exports.Boundary
	memory   *GuestMemory
}

// RegisterWithRuntime registers every exported function of the surface with
// a wazero runtime. This creates a host module with the configured name
// (default: "coral").
//
// Each function is wrapped to:
//   - Find or create the Boundary of the calling native module
//   - Pass strings as packed i64 ptr+len into the native module's memory
//   - Allocate returned strings with the native module's "allocate" export
//
// Example:
//
//	surface, _ := exports.NewSurface(types)
//	binding, err := wazero.RegisterWithRuntime(ctx, runtime, surface,
//	    wazero.WithModuleName("coral"),
//	)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, surface *exports.Surface, opts ...AdapterOption) (*Binding, error) {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Binding{surface: surface, config: cfg}
	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)

	for _, e := range surface.Exports() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(b.hostFunc(e), valueTypes(e.Params), valueTypes(e.Results)).
			Export(e.Name)
	}

	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	host, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate host module %q: %w", cfg.ModuleName, err)
	}
	b.host = host
	return b, nil
}

// Config returns the adapter configuration in effect.
func (b *Binding) Config() AdapterConfig {
	return b.config
}

// hostFunc adapts one exported function to wazero's calling convention.
func (b *Binding) hostFunc(e exports.Export) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		g, err := b.bind(ctx, mod)
		if err != nil {
			slog.ErrorContext(ctx, "wazero: cannot bind native module",
				"function", e.Name, "host", GetHostName(ctx, mod), "error", err)
			for i := range e.Results {
				stack[i] = 0
			}
			return
		}
		defer g.memory.Enter(ctx)()
		e.Invoke(g.boundary, stack)
	}
}

// Boundary returns the Boundary for mod, creating it on first use.
func (b *Binding) Boundary(ctx context.Context, mod api.Module) (*exports.Boundary, error) {
	g, err := b.bind(ctx, mod)
	if err != nil {
		return nil, err
	}
	return g.boundary, nil
}

func (b *Binding) bind(ctx context.Context, mod api.Module) (*guestBinding, error) {
	if v, ok := b.boundaries.Load(mod); ok {
		return v.(*guestBinding), nil
	}

	mem, err := NewGuestMemory(mod, b.config.AllocateExport, b.config.DeallocateExport)
	if err != nil {
		return nil, err
	}
	codec := abi.NewCodec(mem,
		abi.WithMaxStringBytes(b.config.MaxStringBytes),
		abi.WithMaxLiveStrings(b.config.MaxLiveStrings),
	)
	g := &guestBinding{
		boundary: b.surface.Bind(codec, exports.WithCallbackResolver(callbackResolver(mem, mod))),
		memory:   mem,
	}

	actual, loaded := b.boundaries.LoadOrStore(mod, g)
	if !loaded {
		slog.DebugContext(ctx, "wazero: native module bound", "host", GetHostName(ctx, mod))
	}
	return actual.(*guestBinding), nil
}

// Forget drops the Boundary of a native module that has been closed.
func (b *Binding) Forget(mod api.Module) {
	b.boundaries.Delete(mod)
}

// Close closes the host module.
func (b *Binding) Close(ctx context.Context) error {
	if b.host == nil {
		return nil
	}
	return b.host.Close(ctx)
}

// callbackResolver resolves exception callbacks among the exports of mod.
// A callback must accept (i32 ptr, i32 len) and runs on the context of the
// host call that reports.
func callbackResolver(mem *GuestMemory, mod api.Module) exports.CallbackResolver {
	return func(name string) (exception.Callback, error) {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return nil, fmt.Errorf("guest module %q has no export %q", mod.Name(), name)
		}
		params := fn.Definition().ParamTypes()
		if len(params) != 2 || params[0] != api.ValueTypeI32 || params[1] != api.ValueTypeI32 {
			return nil, fmt.Errorf("export %q must take (i32, i32)", name)
		}
		return func(msg abi.UnmanagedString) {
			ctx := mem.Context()
			if _, err := fn.Call(ctx, uint64(msg.Ptr), uint64(msg.Len)); err != nil {
				slog.ErrorContext(ctx, "wazero: exception callback failed",
					"callback", name, "host", GetHostName(ctx, mod), "error", err)
			}
		}, nil
	}
}

func valueTypes(vs []exports.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(vs))
	for i, v := range vs {
		switch v {
		case exports.ValueI64:
			out[i] = api.ValueTypeI64
		default:
			out[i] = api.ValueTypeI32
		}
	}
	return out
}
