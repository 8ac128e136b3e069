package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var hostNameKey = &contextKey{name: "native_host_name"}

// WithHostName adds the native host name to the context.
// It labels log records produced while the host calls into the bridge.
func WithHostName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, hostNameKey, name)
}

// HostNameFromContext retrieves the native host name from the context.
func HostNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(hostNameKey).(string)
	return name, ok
}

// GetHostName extracts the host name from context, falling back to the module name.
func GetHostName(ctx context.Context, mod api.Module) string {
	if name, ok := HostNameFromContext(ctx); ok {
		return name
	}
	return mod.Name()
}
