// Package snapshot builds point-in-time descriptions of catalogued types:
// identity records, member lists, assignability and schemas.
package snapshot

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/coral-dev/coral-go/application/catalog"
	"github.com/coral-dev/coral-go/application/resolver"
	"github.com/coral-dev/coral-go/application/schema"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/errors"
)

// TagName is the struct tag read for member access overrides,
// e.g. `coral:"access=family"`.
const TagName = "coral"

// Builder produces snapshots. It is safe for concurrent use.
type Builder struct {
	resolver *resolver.Resolver
}

// NewBuilder creates a Builder that names base types through r.
func NewBuilder(r *resolver.Resolver) *Builder {
	return &Builder{resolver: r}
}

// Build snapshots the identity of t. It returns nil only for a nil type.
func (b *Builder) Build(t *catalog.Type) *entities.ReflectionType {
	if t == nil {
		return nil
	}
	rt := &entities.ReflectionType{
		FullName:              t.FullName(),
		Name:                  t.Name(),
		Namespace:             t.Namespace(),
		AssemblyQualifiedName: t.AssemblyQualifiedName(),
	}
	if base := BaseOf(t.Reflect()); base != nil {
		rt.BaseTypeName = b.resolver.TypeOf(base).FullName()
	}
	return rt
}

// Methods lists the instance methods of t followed by its registered
// static methods. Instance methods are the method set of *T, sorted by name.
func (b *Builder) Methods(t *catalog.Type) ([]entities.MemberDescriptor, error) {
	rt := t.Reflect()
	set := rt
	if rt.Kind() != reflect.Interface {
		set = reflect.PointerTo(rt)
	}

	out := make([]entities.MemberDescriptor, 0, set.NumMethod())
	for i := 0; i < set.NumMethod(); i++ {
		m := set.Method(i)
		// reflect only reports exported methods.
		flags := entities.AccessPublic
		if f, ok := t.MemberAccess(m.Name); ok {
			flags = f
		}
		out = append(out, entities.MemberDescriptor{Name: m.Name, Visibility: flags.Visibility()})
	}
	return appendStatics(out, t, entities.MemberMethod), nil
}

// Fields lists the declared fields of a struct type in declaration order,
// exported and unexported, followed by registered static fields.
func (b *Builder) Fields(t *catalog.Type) ([]entities.MemberDescriptor, error) {
	rt := t.Reflect()
	var out []entities.MemberDescriptor
	if rt.Kind() == reflect.Struct {
		out = make([]entities.MemberDescriptor, 0, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			flags, err := fieldAccess(t, f)
			if err != nil {
				return nil, fmt.Errorf("fields of %s: %w", t.FullName(), err)
			}
			out = append(out, entities.MemberDescriptor{Name: f.Name, Visibility: flags.Visibility()})
		}
	}
	return appendStatics(out, t, entities.MemberField), nil
}

// Schema returns the JSON schema of t.
func (b *Builder) Schema(t *catalog.Type) ([]byte, error) {
	data, err := schema.Generate(t.Reflect())
	if err != nil {
		return nil, &errors.SchemaError{Type: t.FullName(), Err: err}
	}
	return data, nil
}

// fieldAccess resolves the access flags of a field. A catalog override
// wins over the struct tag, which wins over the export status.
func fieldAccess(t *catalog.Type, f reflect.StructField) (entities.AccessFlags, error) {
	if flags, ok := t.MemberAccess(f.Name); ok {
		return flags, nil
	}
	if tag, ok := f.Tag.Lookup(TagName); ok {
		for _, part := range strings.Split(tag, ",") {
			key, val, found := strings.Cut(strings.TrimSpace(part), "=")
			if !found || key != "access" {
				continue
			}
			flags, err := entities.ParseAccessFlags(val)
			if err != nil {
				return 0, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return flags, nil
		}
	}
	if f.IsExported() {
		return entities.AccessPublic, nil
	}
	return entities.AccessPrivate, nil
}

func appendStatics(out []entities.MemberDescriptor, t *catalog.Type, kind entities.MemberKind) []entities.MemberDescriptor {
	for _, s := range t.Statics() {
		if s.Kind != kind {
			continue
		}
		out = append(out, entities.MemberDescriptor{Name: s.Name, Visibility: s.Access.Visibility(), Static: true})
	}
	return out
}

// BaseOf returns the base of a struct type: the type of its first embedded
// struct (or pointer-to-struct) field. Other kinds have no base.
func BaseOf(rt reflect.Type) reflect.Type {
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			return ft
		}
	}
	return nil
}

// AssignableTo reports whether a value of t can be used where u is expected:
// the types are identical, u is an interface implemented by t or *t, or u
// is in the base chain of t.
func AssignableTo(t, u *catalog.Type) bool {
	if t == nil || u == nil {
		return false
	}
	src, dst := t.Reflect(), u.Reflect()
	if src == dst {
		return true
	}
	if dst.Kind() == reflect.Interface {
		if src.Implements(dst) {
			return true
		}
		return src.Kind() != reflect.Interface && reflect.PointerTo(src).Implements(dst)
	}

	seen := map[reflect.Type]bool{src: true}
	for base := BaseOf(src); base != nil && !seen[base]; base = BaseOf(base) {
		if base == dst {
			return true
		}
		seen[base] = true
	}
	return false
}

// AssignableFrom reports whether a value of u can be used where t is expected.
func AssignableFrom(t, u *catalog.Type) bool {
	return AssignableTo(u, t)
}
