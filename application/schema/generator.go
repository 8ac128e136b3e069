// Package schema provides JSON schema generation for catalogued types.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Generate creates a JSON schema for a Go type.
// It uses the `invopop/jsonschema` library to reflect on the type
// and generate a standard JSON Schema (Draft 2020-12).
// Pointer types are described by their element type.
func Generate(rt reflect.Type) ([]byte, error) {
	if rt == nil {
		return nil, fmt.Errorf("failed to generate schema: nil type")
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() == reflect.Interface || rt.Kind() == reflect.Func || rt.Kind() == reflect.Chan {
		return nil, fmt.Errorf("failed to generate schema: %s values have no JSON form", rt.Kind())
	}

	reflector := jsonschema.Reflector{
		// Expand struct definitions inline; only structs produce a definition.
		ExpandedStruct: rt.Kind() == reflect.Struct,
	}
	s := reflector.ReflectFromType(rt)

	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}
