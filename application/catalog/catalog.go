// Package catalog holds the set of runtime types visible to the boundary,
// grouped the way a managed runtime groups them: load contexts contain
// assemblies, assemblies contain types.
package catalog

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/go-playground/validator/v10"
)

// DefaultContext is the load context used when a TypeSpec names none.
const DefaultContext = "Default"

// validate is a package-level singleton; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("dotted", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		for _, part := range strings.Split(s, ".") {
			if part == "" || strings.ContainsAny(part, " \t/,[]") {
				return false
			}
		}
		return true
	})
	return v
}

// TypeSpec describes one type to register.
type TypeSpec struct {
	// Type is the Go type. Use Of[T]() for interfaces.
	Type reflect.Type `validate:"required"`

	// Context is the load context; DefaultContext when empty.
	Context string `validate:"omitempty,max=128"`

	// Assembly groups related types; it is part of the assembly-qualified name.
	Assembly string `validate:"required,max=256"`

	// Version is the assembly version, e.g. "1.0.0".
	Version string `validate:"omitempty,semver"`

	// Namespace prefixes the simple name, e.g. "App" for "App.Widget".
	Namespace string `validate:"omitempty,dotted"`

	// Name overrides the simple name taken from Type.
	Name string `validate:"omitempty,excludesall=./ "`
}

// Static is a member with no receiver registered alongside a type.
type Static struct {
	Name   string
	Kind   entities.MemberKind
	Access entities.AccessFlags
}

// TypeOption configures a registered type.
type TypeOption func(*Type)

// WithStaticMethod registers a static method.
func WithStaticMethod(name string, access entities.AccessFlags) TypeOption {
	return func(t *Type) {
		t.statics = append(t.statics, Static{Name: name, Kind: entities.MemberMethod, Access: access})
	}
}

// WithStaticField registers a static field.
func WithStaticField(name string, access entities.AccessFlags) TypeOption {
	return func(t *Type) {
		t.statics = append(t.statics, Static{Name: name, Kind: entities.MemberField, Access: access})
	}
}

// WithMemberAccess overrides the access flags of an instance member.
func WithMemberAccess(member string, access entities.AccessFlags) TypeOption {
	return func(t *Type) {
		if t.access == nil {
			t.access = make(map[string]entities.AccessFlags)
		}
		t.access[member] = access
	}
}

// Type is a catalogued runtime type.
type Type struct {
	rtype     reflect.Type
	assembly  *Assembly
	access    map[string]entities.AccessFlags
	name      string
	namespace string
	statics   []Static
}

// Reflect returns the underlying Go type.
func (t *Type) Reflect() reflect.Type { return t.rtype }

// Name returns the simple name.
func (t *Type) Name() string { return t.name }

// Namespace returns the namespace, possibly empty.
func (t *Type) Namespace() string { return t.namespace }

// FullName returns Namespace.Name, or Name when there is no namespace.
func (t *Type) FullName() string {
	if t.namespace == "" {
		return t.name
	}
	return t.namespace + "." + t.name
}

// Assembly returns the owning assembly.
func (t *Type) Assembly() *Assembly { return t.assembly }

// AssemblyQualifiedName returns "FullName, Assembly[, Version=v]".
func (t *Type) AssemblyQualifiedName() string {
	if t.assembly == nil {
		return t.FullName()
	}
	return t.FullName() + ", " + t.assembly.DisplayName()
}

// Statics returns the registered static members in registration order.
func (t *Type) Statics() []Static {
	out := make([]Static, len(t.statics))
	copy(out, t.statics)
	return out
}

// MemberAccess returns the override registered for an instance member.
func (t *Type) MemberAccess(member string) (entities.AccessFlags, bool) {
	f, ok := t.access[member]
	return f, ok
}

// Assembly is a named, versioned group of types.
type Assembly struct {
	context *LoadContext
	name    string
	version string
	types   []*Type
}

// Name returns the assembly name.
func (a *Assembly) Name() string { return a.name }

// Version returns the assembly version.
func (a *Assembly) Version() string { return a.version }

// DisplayName returns "Name, Version=v" or just the name when unversioned.
func (a *Assembly) DisplayName() string {
	if a.version == "" {
		return a.name
	}
	return a.name + ", Version=" + a.version
}

// Context returns the load context holding the assembly.
func (a *Assembly) Context() *LoadContext { return a.context }

// Types returns the types of the assembly in registration order.
func (a *Assembly) Types() []*Type {
	out := make([]*Type, len(a.types))
	copy(out, a.types)
	return out
}

// LoadContext is an isolated set of assemblies.
type LoadContext struct {
	name       string
	assemblies []*Assembly
}

// Name returns the context name.
func (c *LoadContext) Name() string { return c.name }

// Assemblies returns the assemblies of the context in load order.
func (c *LoadContext) Assemblies() []*Assembly {
	out := make([]*Assembly, len(c.assemblies))
	copy(out, c.assemblies)
	return out
}

// Catalog is the thread-safe set of load contexts.
type Catalog struct {
	byName     map[string]*Type
	byType     map[reflect.Type]*Type
	contexts   []*LoadContext
	generation atomic.Uint64
	mu         sync.RWMutex
}

// New creates a catalog containing an empty DefaultContext.
func New() *Catalog {
	return &Catalog{
		byName:   make(map[string]*Type),
		byType:   make(map[reflect.Type]*Type),
		contexts: []*LoadContext{{name: DefaultContext}},
	}
}

// Of returns the reflect.Type of T, including interface types.
func Of[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register adds a type. Full names and Go types must be unique
// across all contexts.
func (c *Catalog) Register(spec TypeSpec, opts ...TypeOption) (*Type, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("catalog: invalid type spec: %w", err)
	}

	rt := spec.Type
	name := spec.Name
	if name == "" {
		name = rt.Name()
	}
	if name == "" {
		return nil, fmt.Errorf("catalog: type %s has no name; set TypeSpec.Name", rt)
	}

	t := &Type{rtype: rt, name: name, namespace: spec.Namespace}
	for _, opt := range opts {
		opt(t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	full := t.FullName()
	if _, exists := c.byName[full]; exists {
		return nil, fmt.Errorf("catalog: type %q already registered", full)
	}
	if prev, exists := c.byType[rt]; exists {
		return nil, fmt.Errorf("catalog: go type %s already registered as %q", rt, prev.FullName())
	}

	asm := c.assemblyLocked(spec.Context, spec.Assembly, spec.Version)
	t.assembly = asm
	asm.types = append(asm.types, t)
	c.byName[full] = t
	c.byType[rt] = t
	return t, nil
}

// MustRegister registers a type or panics. Use this in init() functions.
func (c *Catalog) MustRegister(spec TypeSpec, opts ...TypeOption) *Type {
	t, err := c.Register(spec, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (c *Catalog) assemblyLocked(contextName, name, version string) *Assembly {
	if contextName == "" {
		contextName = DefaultContext
	}
	var lc *LoadContext
	for _, existing := range c.contexts {
		if existing.name == contextName {
			lc = existing
			break
		}
	}
	if lc == nil {
		lc = &LoadContext{name: contextName}
		c.contexts = append(c.contexts, lc)
	}
	for _, a := range lc.assemblies {
		if a.name == name {
			return a
		}
	}
	a := &Assembly{context: lc, name: name, version: version}
	lc.assemblies = append(lc.assemblies, a)
	return a
}

// Lookup finds a type by exact full name.
func (c *Catalog) Lookup(fullName string) (*Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byName[fullName]
	return t, ok
}

// LookupType finds the catalogued entry for a Go type.
func (c *Catalog) LookupType(rt reflect.Type) (*Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byType[rt]
	return t, ok
}

// Describe returns the catalogued entry for rt, or an unregistered
// description derived from the Go type itself: namespace is the package
// name and the assembly is the package path.
func (c *Catalog) Describe(rt reflect.Type) *Type {
	if t, ok := c.LookupType(rt); ok {
		return t
	}
	name := rt.Name()
	if name == "" {
		name = rt.String()
	}
	pkg := rt.PkgPath()
	asm := &Assembly{name: "builtin"}
	namespace := ""
	if pkg != "" {
		asm.name = pkg
		namespace = pkg[strings.LastIndex(pkg, "/")+1:]
	}
	return &Type{rtype: rt, name: name, namespace: namespace, assembly: asm}
}

// Contexts returns the load contexts in creation order.
func (c *Catalog) Contexts() []*LoadContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*LoadContext, len(c.contexts))
	copy(out, c.contexts)
	return out
}

// Names returns every registered full name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered types.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}

// Unload drops a whole load context and its types. It is the reload
// event that invalidates resolver caches; the default context can be
// emptied but not removed.
func (c *Catalog) Unload(contextName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, lc := range c.contexts {
		if lc.name != contextName {
			continue
		}
		for _, a := range lc.assemblies {
			for _, t := range a.types {
				delete(c.byName, t.FullName())
				delete(c.byType, t.rtype)
			}
		}
		if contextName == DefaultContext {
			lc.assemblies = nil
		} else {
			c.contexts = append(c.contexts[:i], c.contexts[i+1:]...)
		}
		c.generation.Add(1)
		return true
	}
	return false
}

// Generation increases every time a context is unloaded.
func (c *Catalog) Generation() uint64 {
	return c.generation.Load()
}
