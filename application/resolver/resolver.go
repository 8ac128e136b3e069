// Package resolver finds catalogued types by name for the exported surface.
package resolver

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/coral-dev/coral-go/application/catalog"
)

// resolverConfig holds configuration for the Resolver.
type resolverConfig struct {
	expose []string
}

func defaultResolverConfig() resolverConfig {
	return resolverConfig{
		expose: []string{"**"},
	}
}

// Option configures a Resolver instance.
type Option func(*resolverConfig)

// WithExpose limits the types visible by name to those whose full name,
// with "." replaced by "/", matches one of the glob patterns.
// "App/**" exposes everything under the App namespace.
func WithExpose(patterns ...string) Option {
	return func(c *resolverConfig) {
		if len(patterns) > 0 {
			c.expose = patterns
		}
	}
}

// Resolver maps full type names to catalogued types.
// Hits are memoized until the catalog unloads a context or Reset is called.
type Resolver struct {
	catalog    *catalog.Catalog
	cache      sync.Map // map[string]memo
	config     resolverConfig
	generation atomic.Uint64
}

// memo is a hit together with the catalog generation it was resolved under.
// An entry from an older generation is a miss.
type memo struct {
	generation uint64
	t          *catalog.Type
}

// New creates a Resolver over the catalog.
func New(c *catalog.Catalog, opts ...Option) (*Resolver, error) {
	if c == nil {
		return nil, fmt.Errorf("resolver: catalog is required")
	}
	cfg := defaultResolverConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	for _, p := range cfg.expose {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("resolver: invalid expose pattern %q", p)
		}
	}
	r := &Resolver{catalog: c, config: cfg}
	r.generation.Store(c.Generation())
	return r, nil
}

// Catalog returns the underlying catalog.
func (r *Resolver) Catalog() *catalog.Catalog {
	return r.catalog
}

// FindType returns the exposed type with the exact full name, or nil.
func (r *Resolver) FindType(name string) *catalog.Type {
	if name == "" {
		return nil
	}
	gen := r.sync()

	if v, ok := r.cache.Load(name); ok {
		if m := v.(memo); m.generation == gen {
			return m.t
		}
	}

	// gen is read before Lookup, so a context unloaded in between leaves
	// this entry tagged with the older generation.
	t, ok := r.catalog.Lookup(name)
	if !ok || !r.Exposed(name) {
		return nil
	}
	r.cache.Store(name, memo{generation: gen, t: t})
	return t
}

// TypeOf describes a Go type, catalogued or not.
// Pointer types are described by their element type.
func (r *Resolver) TypeOf(rt reflect.Type) *catalog.Type {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return r.catalog.Describe(rt)
}

// TypeOfObject describes the dynamic type of obj.
func (r *Resolver) TypeOfObject(obj any) *catalog.Type {
	if obj == nil {
		return nil
	}
	return r.TypeOf(reflect.TypeOf(obj))
}

// Exposed reports whether a full name passes the expose patterns.
func (r *Resolver) Exposed(fullName string) bool {
	path := strings.ReplaceAll(fullName, ".", "/")
	for _, p := range r.config.expose {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// Reset drops every memoized lookup.
func (r *Resolver) Reset() {
	r.cache.Range(func(k, _ any) bool {
		r.cache.Delete(k)
		return true
	})
}

// sync drops the memo when the catalog has unloaded a context since the
// last lookup, and returns the current generation.
func (r *Resolver) sync() uint64 {
	current := r.catalog.Generation()
	seen := r.generation.Load()
	if current != seen && r.generation.CompareAndSwap(seen, current) {
		r.Reset()
	}
	return current
}
