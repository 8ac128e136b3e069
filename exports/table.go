package exports

import (
	"sort"
	"strings"

	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/internal/abi"
)

// ValueType is the wasm type of one parameter or result slot.
type ValueType byte

const (
	ValueI32 ValueType = iota + 1
	ValueI64
)

func (v ValueType) String() string {
	switch v {
	case ValueI32:
		return "i32"
	case ValueI64:
		return "i64"
	default:
		return "invalid"
	}
}

// Signature renders the export as "Name(i64, i32) -> (i32)".
func (e Export) Signature() string {
	return e.Name + "(" + joinTypes(e.Params) + ") -> (" + joinTypes(e.Results) + ")"
}

func joinTypes(vs []ValueType) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// Export describes one exported function for runtime adapters.
// Invoke reads parameters from stack and writes results back to its head,
// one uint64 slot per value.
type Export struct {
	Invoke  func(b *Boundary, stack []uint64)
	Name    string
	Params  []ValueType
	Results []ValueType
}

var (
	i32 = ValueI32
	i64 = ValueI64
)

// table is immutable after package initialization.
var table = buildTable()

func buildTable() []Export {
	exports := []Export{
		{
			Name: OpInitialize,
			Invoke: func(b *Boundary, _ []uint64) {
				b.Initialize()
			},
		},
		{
			Name:   OpSetExceptionCallback,
			Params: []ValueType{i64},
			Invoke: func(b *Boundary, stack []uint64) {
				b.SetExceptionCallbackByName(abi.UnpackString(stack[0]))
			},
		},
		{
			Name:    OpGetReflectionType,
			Params:  []ValueType{i64, i32},
			Results: []ValueType{i32},
			Invoke: func(b *Boundary, stack []uint64) {
				stack[0] = bool32(b.GetReflectionType(abi.UnpackString(stack[0]), uint32(stack[1])))
			},
		},
		{
			Name:    OpIsTypeAssignableTo,
			Params:  []ValueType{i64, i64},
			Results: []ValueType{i32},
			Invoke: func(b *Boundary, stack []uint64) {
				stack[0] = bool32(b.IsTypeAssignableTo(abi.UnpackString(stack[0]), abi.UnpackString(stack[1])))
			},
		},
		{
			Name:    OpIsTypeAssignableFrom,
			Params:  []ValueType{i64, i64},
			Results: []ValueType{i32},
			Invoke: func(b *Boundary, stack []uint64) {
				stack[0] = bool32(b.IsTypeAssignableFrom(abi.UnpackString(stack[0]), abi.UnpackString(stack[1])))
			},
		},
		{
			Name:    OpGetReflectionTypeFromObject,
			Params:  []ValueType{i64, i32},
			Results: []ValueType{i32},
			Invoke: func(b *Boundary, stack []uint64) {
				stack[0] = bool32(b.GetReflectionTypeFromObject(entities.Handle(stack[0]), uint32(stack[1])))
			},
		},
		{
			Name:   OpGetTypeMethods,
			Params: []ValueType{i64, i32, i32},
			Invoke: func(b *Boundary, stack []uint64) {
				b.GetTypeMethods(abi.UnpackString(stack[0]), uint32(stack[1]), uint32(stack[2]))
			},
		},
		{
			Name:   OpQueryObjectFields,
			Params: []ValueType{i64, i32, i32},
			Invoke: func(b *Boundary, stack []uint64) {
				b.QueryObjectFields(abi.UnpackString(stack[0]), uint32(stack[1]), uint32(stack[2]))
			},
		},
		{
			Name:   OpFreeString,
			Params: []ValueType{i64},
			Invoke: func(b *Boundary, stack []uint64) {
				b.FreeString(abi.UnpackString(stack[0]))
			},
		},
		{
			Name:    OpReleaseObject,
			Params:  []ValueType{i64},
			Results: []ValueType{i32},
			Invoke: func(b *Boundary, stack []uint64) {
				stack[0] = bool32(b.ReleaseObject(entities.Handle(stack[0])))
			},
		},
		{
			Name:    OpGetTypeSchema,
			Params:  []ValueType{i64, i32},
			Results: []ValueType{i32},
			Invoke: func(b *Boundary, stack []uint64) {
				stack[0] = bool32(b.GetTypeSchema(abi.UnpackString(stack[0]), uint32(stack[1])))
			},
		},
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })
	return exports
}

func bool32(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// Table returns the exported functions sorted by name.
func Table() []Export {
	out := make([]Export, len(table))
	copy(out, table)
	return out
}

// Lookup finds an exported function by name.
func Lookup(name string) (Export, bool) {
	i := sort.Search(len(table), func(i int) bool { return table[i].Name >= name })
	if i < len(table) && table[i].Name == name {
		return table[i], true
	}
	return Export{}, false
}

// Names returns the sorted export names.
func Names() []string {
	names := make([]string, len(table))
	for i, e := range table {
		names[i] = e.Name
	}
	return names
}

// Exports returns the export table. It is the same for every Surface.
func (s *Surface) Exports() []Export {
	return Table()
}
