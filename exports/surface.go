package exports

import (
	"fmt"
	"log/slog"

	"github.com/coral-dev/coral-go/application/catalog"
	"github.com/coral-dev/coral-go/application/exception"
	"github.com/coral-dev/coral-go/application/handles"
	"github.com/coral-dev/coral-go/application/resolver"
	"github.com/coral-dev/coral-go/application/snapshot"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/ports"
	"github.com/coral-dev/coral-go/internal/abi"
)

// surfaceConfig holds configuration for the Surface.
type surfaceConfig struct {
	logger     *slog.Logger
	handles    ports.ObjectRegistry
	expose     []string
	middleware []Middleware
}

func defaultSurfaceConfig() surfaceConfig {
	return surfaceConfig{
		logger: slog.Default(),
	}
}

// Option configures a Surface instance.
type Option func(*surfaceConfig)

// WithLogger sets the logger for diagnostics and undeliverable failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *surfaceConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExpose limits the types resolvable by name. See resolver.WithExpose.
func WithExpose(patterns ...string) Option {
	return func(c *surfaceConfig) {
		c.expose = append(c.expose, patterns...)
	}
}

// WithHandles shares an existing handle registry instead of creating one.
func WithHandles(r ports.ObjectRegistry) Option {
	return func(c *surfaceConfig) {
		c.handles = r
	}
}

// WithMiddleware adds middleware around every exported call.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) Option {
	return func(c *surfaceConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// Surface is the state shared by every Boundary bound from it.
// Create one per process; it is safe for concurrent use.
type Surface struct {
	catalog  *catalog.Catalog
	resolver *resolver.Resolver
	builder  *snapshot.Builder
	handles  ports.ObjectRegistry
	bridge   *exception.Bridge
	invoke   Handler
	config   surfaceConfig
}

// NewSurface creates a Surface over the catalog.
func NewSurface(c *catalog.Catalog, opts ...Option) (*Surface, error) {
	cfg := defaultSurfaceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r, err := resolver.New(c, resolver.WithExpose(cfg.expose...))
	if err != nil {
		return nil, fmt.Errorf("failed to create surface: %w", err)
	}
	reg := cfg.handles
	if reg == nil {
		reg = handles.NewRegistry()
	}

	return &Surface{
		catalog:  c,
		resolver: r,
		builder:  snapshot.NewBuilder(r),
		handles:  reg,
		bridge:   exception.NewBridge(exception.WithLogger(cfg.logger)),
		invoke:   chain(cfg.middleware),
		config:   cfg,
	}, nil
}

// Catalog returns the type catalog.
func (s *Surface) Catalog() *catalog.Catalog { return s.catalog }

// Resolver returns the type resolver.
func (s *Surface) Resolver() *resolver.Resolver { return s.resolver }

// Handles returns the object handle registry.
func (s *Surface) Handles() ports.ObjectRegistry { return s.handles }

// Bridge returns the exception bridge.
func (s *Surface) Bridge() *exception.Bridge { return s.bridge }

// RegisterObject makes obj reachable from the native side.
func (s *Surface) RegisterObject(obj any) (entities.Handle, error) {
	return s.handles.Register(obj)
}

// Close invalidates every handle and drops the exception callback.
func (s *Surface) Close() {
	s.handles.Close()
	s.bridge.SetCallback(nil, nil)
}

// report hands a failure to the exception bridge.
func (s *Surface) report(op string, err error) {
	if !s.bridge.Report(op, err) {
		s.config.logger.Debug("failure not delivered to native side", "operation", op, "error", err)
	}
}

// CallbackResolver turns the name of a native function into a callback.
type CallbackResolver func(name string) (exception.Callback, error)

// BindOption configures a Boundary.
type BindOption func(*Boundary)

// WithCallbackResolver enables SetExceptionCallbackByName.
func WithCallbackResolver(fn CallbackResolver) BindOption {
	return func(b *Boundary) {
		b.callbacks = fn
	}
}

// Bind attaches the Surface to the native memory behind codec.
func (s *Surface) Bind(codec *abi.Codec, opts ...BindOption) *Boundary {
	b := &Boundary{surface: s, codec: codec}
	for _, opt := range opts {
		opt(b)
	}
	return b
}
