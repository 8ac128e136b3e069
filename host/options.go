package host

import (
	"io"

	"github.com/coral-dev/coral-go/domain/entities"
	wazeroadapter "github.com/coral-dev/coral-go/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithConfig sets the bridge configuration. Zero-valued fields keep their defaults.
func WithConfig(cfg entities.Config) Option {
	return func(e *Executor) {
		cfg.ApplyDefaults()
		e.config = cfg
	}
}

// WithRuntimeConfig sets the wazero runtime configuration.
func WithRuntimeConfig(rc wazero.RuntimeConfig) Option {
	return func(e *Executor) {
		e.runtimeConfig = rc
	}
}

// WithOutput routes the native module's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithAdapterOptions appends options for the wazero adapter. They are
// applied after the ones derived from the bridge configuration.
func WithAdapterOptions(opts ...wazeroadapter.AdapterOption) Option {
	return func(e *Executor) {
		e.adapterOpts = append(e.adapterOpts, opts...)
	}
}
