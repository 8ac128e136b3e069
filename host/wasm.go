package host

import (
	"context"
	"log/slog"

	wazeroadapter "github.com/coral-dev/coral-go/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// registerBridge instantiates the host module carrying the bridge's exported
// functions plus log_message.
func (e *Executor) registerBridge(ctx context.Context) error {
	opts := []wazeroadapter.AdapterOption{
		wazeroadapter.WithModuleName(e.config.ModuleName),
		wazeroadapter.WithMaxStringBytes(e.config.MaxStringBytes),
		wazeroadapter.WithMaxLiveStrings(e.config.MaxLiveStrings),
		wazeroadapter.WithCustomHandler(wazeroadapter.CustomHandler{
			Name:        "log_message",
			Handler:     logMessage(e.config.MaxStringBytes),
			ParamTypes:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			ResultTypes: []api.ValueType{},
		}),
	}
	opts = append(opts, e.adapterOpts...)

	binding, err := wazeroadapter.RegisterWithRuntime(ctx, e.runtime, e.surface, opts...)
	if err != nil {
		return err
	}
	e.binding = binding
	return nil
}

// moduleConfig builds the instantiation config of a native module.
func (e *Executor) moduleConfig(name string) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime()
	if e.stdout != nil {
		cfg = cfg.WithStdout(e.stdout)
	}
	if e.stderr != nil {
		cfg = cfg.WithStderr(e.stderr)
	}
	return cfg
}

// logMessage forwards a (ptr, len) UTF-8 message from the native module to slog.
func logMessage(limit uint32) api.GoModuleFunc {
	return func(ctx context.Context, m api.Module, stack []uint64) {
		ptr, length := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
		host := wazeroadapter.GetHostName(ctx, m)
		if length > limit {
			slog.WarnContext(ctx, "native log message too large", "host", host, "size", length)
			return
		}
		mem := m.Memory()
		if mem == nil {
			return
		}
		payload, ok := mem.Read(ptr, length)
		if !ok {
			slog.WarnContext(ctx, "native log message out of range", "host", host, "ptr", ptr, "size", length)
			return
		}
		slog.InfoContext(ctx, "native log", "host", host, "message", string(payload))
	}
}
