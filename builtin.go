package coral

import (
	"reflect"

	"github.com/coral-dev/coral-go/application/catalog"
	"github.com/coral-dev/coral-go/domain/entities"
)

// Builtin assembly coordinates.
const (
	BuiltinAssembly  = "Coral"
	BuiltinNamespace = "Coral.Bridge"
	Version          = "0.4.0"
)

// BuiltinCatalog returns a catalog holding the bridge's own record types,
// useful for tools that have no application catalog.
func BuiltinCatalog() *catalog.Catalog {
	c := catalog.New()
	for _, rt := range builtinTypes() {
		c.MustRegister(catalog.TypeSpec{
			Type:      rt,
			Assembly:  BuiltinAssembly,
			Version:   Version,
			Namespace: BuiltinNamespace,
		})
	}
	return c
}

func builtinTypes() []reflect.Type {
	return []reflect.Type{
		catalog.Of[entities.ReflectionType](),
		catalog.Of[entities.MemberDescriptor](),
		catalog.Of[entities.ErrorDetail](),
		catalog.Of[entities.Config](),
		catalog.Of[entities.Handle](),
	}
}
