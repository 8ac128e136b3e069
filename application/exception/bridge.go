// Package exception delivers failures raised inside exported calls to the
// callback registered by the native side.
package exception

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/coral-dev/coral-go/internal/abi"
)

// Callback receives the full text of one failure. The string is owned by
// the bridge and freed as soon as the callback returns.
type Callback func(message abi.UnmanagedString)

// registration is the immutable content of the callback slot.
type registration struct {
	codec *abi.Codec
	fn    Callback
}

// bridgeConfig holds configuration for the Bridge.
type bridgeConfig struct {
	logger *slog.Logger
}

func defaultBridgeConfig() bridgeConfig {
	return bridgeConfig{
		logger: slog.Default(),
	}
}

// Option configures a Bridge instance.
type Option func(*bridgeConfig)

// WithLogger sets the logger used for failures that cannot be delivered.
func WithLogger(logger *slog.Logger) Option {
	return func(c *bridgeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Bridge holds at most one registered callback.
// Registration and delivery may happen on different goroutines; a reader
// always observes either the previous or the new registration.
type Bridge struct {
	slot      atomic.Pointer[registration]
	config    bridgeConfig
	delivered atomic.Uint64
}

// NewBridge creates a Bridge with no callback registered.
func NewBridge(opts ...Option) *Bridge {
	cfg := defaultBridgeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bridge{config: cfg}
}

// SetCallback replaces the registration unconditionally.
// Messages are encoded through codec. A nil fn clears the registration.
func (b *Bridge) SetCallback(codec *abi.Codec, fn Callback) {
	if fn == nil || codec == nil {
		b.slot.Store(nil)
		return
	}
	b.slot.Store(&registration{codec: codec, fn: fn})
}

// Registered reports whether a callback is currently registered.
func (b *Bridge) Registered() bool {
	return b.slot.Load() != nil
}

// Report delivers err to the registered callback, synchronously.
// It reports whether the callback was invoked and returned normally.
// With no callback registered the failure is only logged.
func (b *Bridge) Report(operation string, err error) bool {
	if err == nil {
		return false
	}
	// Annotate a copy; the detail may be reachable from err.
	detail := new(entities.ErrorDetail)
	*detail = *errors.ToErrorDetail(err)
	if detail.Operation == "" {
		detail.Operation = operation
	}

	reg := b.slot.Load()
	if reg == nil {
		b.config.logger.Debug("exception dropped: no callback registered",
			"operation", operation, "error", err)
		return false
	}

	msg, encErr := reg.codec.Encode(detail.Describe())
	if encErr != nil {
		b.config.logger.Error("exception dropped: message could not be encoded",
			"operation", operation, "error", err, "encode_error", encErr)
		return false
	}
	defer func() {
		if relErr := msg.Release(); relErr != nil {
			b.config.logger.Error("failed to free exception message",
				"operation", operation, "error", relErr)
		}
	}()

	if !b.invoke(operation, reg.fn, msg.Peek()) {
		return false
	}
	b.delivered.Add(1)
	return true
}

// invoke runs the callback and contains any panic it raises.
func (b *Bridge) invoke(operation string, fn Callback, us abi.UnmanagedString) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.config.logger.Error("exception callback panicked",
				"operation", operation, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	fn(us)
	return true
}

// Count returns the number of failures delivered to a callback.
func (b *Bridge) Count() uint64 {
	return b.delivered.Load()
}
