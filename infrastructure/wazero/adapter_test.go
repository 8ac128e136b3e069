package wazero

import (
	"context"
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/coral-dev/coral-go/application/catalog"
	"github.com/coral-dev/coral-go/exports"
	"github.com/coral-dev/coral-go/internal/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

type Control struct{ ID string }

type Widget struct {
	Control
	Label string
}

func newSurface(t *testing.T) *exports.Surface {
	t.Helper()
	c := catalog.New()
	c.MustRegister(catalog.TypeSpec{Type: reflect.TypeOf(Control{}), Assembly: "App", Namespace: "App"})
	c.MustRegister(catalog.TypeSpec{Type: reflect.TypeOf(Widget{}), Assembly: "App", Namespace: "App"})
	s, err := exports.NewSurface(c)
	require.NoError(t, err)
	return s
}

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()

	assert.Equal(t, "coral", cfg.ModuleName)
	assert.Equal(t, "allocate", cfg.AllocateExport)
	assert.Equal(t, "deallocate", cfg.DeallocateExport)
	assert.Equal(t, uint32(abi.DefaultMaxStringBytes), cfg.MaxStringBytes)
	assert.Equal(t, abi.DefaultMaxLiveStrings, cfg.MaxLiveStrings)
}

func TestAdapterOptions(t *testing.T) {
	cfg := defaultAdapterConfig()
	WithModuleName("bridge")(&cfg)
	WithModuleName("")(&cfg)
	WithAllocatorExports("malloc", "")(&cfg)
	WithMaxStringBytes(2048)(&cfg)
	WithMaxLiveStrings(8)(&cfg)
	WithCustomHandler(CustomHandler{Name: "log_message"})(&cfg)

	assert.Equal(t, "bridge", cfg.ModuleName)
	assert.Equal(t, "malloc", cfg.AllocateExport)
	assert.Equal(t, "deallocate", cfg.DeallocateExport)
	assert.Equal(t, uint32(2048), cfg.MaxStringBytes)
	assert.Equal(t, 8, cfg.MaxLiveStrings)
	require.Len(t, cfg.CustomHandlers, 1)
	assert.Equal(t, "log_message", cfg.CustomHandlers[0].Name)
}

func TestValueTypes(t *testing.T) {
	got := valueTypes([]exports.ValueType{exports.ValueI64, exports.ValueI32})
	assert.Equal(t, []api.ValueType{api.ValueTypeI64, api.ValueTypeI32}, got)
	assert.Empty(t, valueTypes(nil))
}

func TestRegisterWithRuntime(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer func() { _ = runtime.Close(ctx) }()

	binding, err := RegisterWithRuntime(ctx, runtime, newSurface(t),
		WithCustomHandler(CustomHandler{
			Name:    "ping",
			Handler: func(context.Context, api.Module, []uint64) {},
		}),
	)
	require.NoError(t, err)

	host := runtime.Module("coral")
	require.NotNil(t, host)

	defs := host.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, append(exports.Names(), "ping"), names)

	params := defs[exports.OpGetTypeMethods].ParamTypes()
	assert.Equal(t, []api.ValueType{api.ValueTypeI64, api.ValueTypeI32, api.ValueTypeI32}, params)
	results := defs[exports.OpGetReflectionType].ResultTypes()
	assert.Equal(t, []api.ValueType{api.ValueTypeI32}, results)

	assert.NoError(t, binding.Close(ctx))
}

func TestRegisterWithRuntime_DuplicateModule(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer func() { _ = runtime.Close(ctx) }()

	_, err := RegisterWithRuntime(ctx, runtime, newSurface(t))
	require.NoError(t, err)
	_, err = RegisterWithRuntime(ctx, runtime, newSurface(t))
	assert.Error(t, err)
}

func TestHostFunc_GetReflectionType(t *testing.T) {
	ctx := context.Background()
	mod := newFakeModule("native")
	b := &Binding{surface: newSurface(t), config: defaultAdapterConfig()}

	name := mod.put("App.Widget")
	out := mod.reserve(abi.ReflectionTypeSize)

	e, ok := exports.Lookup(exports.OpGetReflectionType)
	require.True(t, ok)
	stack := []uint64{name.Pack(), uint64(out)}
	b.hostFunc(e)(ctx, mod, stack)
	require.Equal(t, uint64(1), stack[0])

	full := mod.readString(out)
	assert.Equal(t, "App.Widget", full)
	base := mod.readString(out + 3*abi.UnmanagedStringSize)
	assert.Equal(t, "App.Control", base)
	assert.Equal(t, 5, mod.allocations(), "five strings allocated in the guest")
}

func TestHostFunc_ExceptionCallbackByName(t *testing.T) {
	ctx := context.Background()
	mod := newFakeModule("native")
	var received []string
	mod.exports["on_error"] = &fakeFunction{
		params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		call: func(args []uint64) ([]uint64, error) {
			received = append(received, mod.text(uint32(args[0]), uint32(args[1])))
			return nil, nil
		},
	}
	mod.exports["bad_signature"] = &fakeFunction{params: []api.ValueType{api.ValueTypeI64}}
	b := &Binding{surface: newSurface(t), config: defaultAdapterConfig()}

	set, _ := exports.Lookup(exports.OpSetExceptionCallback)
	release, _ := exports.Lookup(exports.OpReleaseObject)

	b.hostFunc(set)(ctx, mod, []uint64{mod.put("on_error").Pack()})
	stack := []uint64{7}
	b.hostFunc(release)(ctx, mod, stack)
	assert.Equal(t, uint64(0), stack[0])
	require.Len(t, received, 1)
	assert.Contains(t, received[0], "in ReleaseObject")
	assert.Equal(t, 0, mod.allocations(), "message freed after the callback")

	b.hostFunc(set)(ctx, mod, []uint64{mod.put("bad_signature").Pack()})
	require.Len(t, received, 2, "signature failure is reported to the current callback")
	assert.Contains(t, received[1], "must take (i32, i32)")
}

func TestHostFunc_MissingAllocator(t *testing.T) {
	ctx := context.Background()
	mod := newFakeModule("native")
	delete(mod.exports, "allocate")
	b := &Binding{surface: newSurface(t), config: defaultAdapterConfig()}

	e, _ := exports.Lookup(exports.OpGetReflectionType)
	stack := []uint64{mod.put("App.Widget").Pack(), 64}
	b.hostFunc(e)(ctx, mod, stack)
	assert.Equal(t, uint64(0), stack[0])

	_, err := b.Boundary(ctx, mod)
	assert.ErrorContains(t, err, "missing 'allocate' export")
}

func TestBinding_BoundaryPerModule(t *testing.T) {
	ctx := context.Background()
	b := &Binding{surface: newSurface(t), config: defaultAdapterConfig()}
	first := newFakeModule("first")
	second := newFakeModule("second")

	b1, err := b.Boundary(ctx, first)
	require.NoError(t, err)
	again, err := b.Boundary(ctx, first)
	require.NoError(t, err)
	assert.Same(t, b1, again)

	b2, err := b.Boundary(ctx, second)
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)

	b.Forget(first)
	fresh, err := b.Boundary(ctx, first)
	require.NoError(t, err)
	assert.NotSame(t, b1, fresh)
}

func TestGuestMemory(t *testing.T) {
	mod := newFakeModule("native")
	mem, err := NewGuestMemory(mod, "allocate", "deallocate")
	require.NoError(t, err)

	ptr, err := mem.Allocate(4)
	require.NoError(t, err)
	assert.True(t, mem.Write(ptr, []byte("abcd")))
	data, ok := mem.Read(ptr, 4)
	require.True(t, ok)
	assert.Equal(t, "abcd", string(data))
	assert.NoError(t, mem.Free(ptr, 4))
	assert.Equal(t, 0, mod.allocations())

	_, ok = mem.Read(0, 1)
	assert.False(t, ok)
	assert.False(t, mem.Write(0, []byte{1}))
	_, ok = mem.Read(uint32(len(mod.memory.buf)), 1)
	assert.False(t, ok)
}

func TestGuestMemory_AllocatorFailures(t *testing.T) {
	mod := newFakeModule("native")
	mod.exports["allocate"] = &fakeFunction{call: func([]uint64) ([]uint64, error) { return []uint64{0}, nil }}
	mem, err := NewGuestMemory(mod, "allocate", "deallocate")
	require.NoError(t, err)

	_, err = mem.Allocate(8)
	assert.ErrorContains(t, err, "returned null")

	mod.exports["allocate"] = &fakeFunction{call: func([]uint64) ([]uint64, error) { return nil, fmt.Errorf("trap") }}
	mem, err = NewGuestMemory(mod, "allocate", "deallocate")
	require.NoError(t, err)
	_, err = mem.Allocate(8)
	assert.ErrorContains(t, err, "trap")

	_, err = NewGuestMemory(mod, "allocate", "free")
	assert.ErrorContains(t, err, "missing 'free' export")
}

func TestHostFunc_UsesContextOfEachCall(t *testing.T) {
	mod := newFakeModule("native")
	var reported []string
	mod.exports["on_error"] = &fakeFunction{
		params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		call: func(args []uint64) ([]uint64, error) {
			reported = append(reported, mod.text(uint32(args[0]), uint32(args[1])))
			return nil, nil
		},
	}
	b := &Binding{surface: newSurface(t), config: defaultAdapterConfig()}
	e, _ := exports.Lookup(exports.OpGetReflectionType)
	release, _ := exports.Lookup(exports.OpReleaseObject)
	set, _ := exports.Lookup(exports.OpSetExceptionCallback)

	first, cancel := context.WithCancel(context.Background())
	b.hostFunc(set)(first, mod, []uint64{mod.put("on_error").Pack()})
	stack := []uint64{mod.put("App.Widget").Pack(), uint64(mod.reserve(abi.ReflectionTypeSize))}
	b.hostFunc(e)(first, mod, stack)
	require.Equal(t, uint64(1), stack[0])
	cancel()

	out := mod.reserve(abi.ReflectionTypeSize)
	stack = []uint64{mod.put("App.Control").Pack(), uint64(out)}
	b.hostFunc(e)(context.Background(), mod, stack)
	require.Equal(t, uint64(1), stack[0], "a later call with a live context succeeds")
	assert.Equal(t, "App.Control", mod.readString(out))

	b.hostFunc(release)(context.Background(), mod, []uint64{7})
	require.Len(t, reported, 1, "the callback runs on the reporting call's context")
	assert.Contains(t, reported[0], "in ReleaseObject")
}

func TestGuestMemory_Enter(t *testing.T) {
	mem, err := NewGuestMemory(newFakeModule("native"), "allocate", "deallocate")
	require.NoError(t, err)
	assert.Equal(t, context.Background(), mem.Context())

	outer := WithHostName(context.Background(), "outer")
	restoreOuter := mem.Enter(outer)
	inner := WithHostName(context.Background(), "inner")
	restoreInner := mem.Enter(inner)
	assert.Equal(t, inner, mem.Context())
	restoreInner()
	assert.Equal(t, outer, mem.Context())
	restoreOuter()
	assert.Equal(t, context.Background(), mem.Context())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	restore := mem.Enter(cancelled)
	_, err = mem.Allocate(8)
	assert.ErrorIs(t, err, context.Canceled)
	restore()
	_, err = mem.Allocate(8)
	assert.NoError(t, err)
}

func TestHostName(t *testing.T) {
	ctx := context.Background()
	mod := newFakeModule("native")

	assert.Equal(t, "native", GetHostName(ctx, mod))
	ctx = WithHostName(ctx, "renderer")
	assert.Equal(t, "renderer", GetHostName(ctx, mod))
	name, ok := HostNameFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "renderer", name)
}

// fakeModule is a native module with a bump allocator over a byte slice.
type fakeModule struct {
	api.Module
	name    string
	memory  *fakeMemory
	exports map[string]api.Function
	live    map[uint32]uint32
	next    uint32
}

func newFakeModule(name string) *fakeModule {
	m := &fakeModule{
		name:   name,
		memory: &fakeMemory{buf: make([]byte, 1<<16)},
		live:   make(map[uint32]uint32),
		next:   8,
	}
	m.exports = map[string]api.Function{
		"allocate": &fakeFunction{call: func(args []uint64) ([]uint64, error) {
			return []uint64{uint64(m.alloc(uint32(args[0])))}, nil
		}},
		"deallocate": &fakeFunction{call: func(args []uint64) ([]uint64, error) {
			delete(m.live, uint32(args[0]))
			return nil, nil
		}},
	}
	return m
}

func (m *fakeModule) Name() string { return m.name }
func (m *fakeModule) Memory() api.Memory { return m.memory }

func (m *fakeModule) ExportedFunction(name string) api.Function {
	fn, ok := m.exports[name]
	if !ok {
		return nil
	}
	return fn
}

func (m *fakeModule) alloc(size uint32) uint32 {
	ptr := m.next
	m.next += (size + 7) &^ 7
	m.live[ptr] = size
	return ptr
}

func (m *fakeModule) allocations() int { return len(m.live) }

// reserve returns space outside the tracked allocations.
func (m *fakeModule) reserve(size uint32) uint32 {
	ptr := m.next
	m.next += (size + 8) &^ 7
	return ptr
}

// put stores caller-owned text outside the tracked allocations.
func (m *fakeModule) put(s string) abi.UnmanagedString {
	ptr := m.reserve(uint32(len(s)))
	copy(m.memory.buf[ptr:], s)
	return abi.UnmanagedString{Ptr: ptr, Len: uint32(len(s))}
}

func (m *fakeModule) text(ptr, length uint32) string {
	return string(m.memory.buf[ptr : ptr+length])
}

// readString dereferences the UnmanagedString record stored at ptr.
func (m *fakeModule) readString(ptr uint32) string {
	p := binary.LittleEndian.Uint32(m.memory.buf[ptr:])
	l := binary.LittleEndian.Uint32(m.memory.buf[ptr+4:])
	return m.text(p, l)
}

type fakeMemory struct {
	api.Memory
	buf []byte
}

func (f *fakeMemory) Size() uint32 { return uint32(len(f.buf)) }

func (f *fakeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if uint64(offset)+uint64(byteCount) > uint64(len(f.buf)) {
		return nil, false
	}
	return f.buf[offset : offset+byteCount], true
}

func (f *fakeMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(f.buf)) {
		return false
	}
	copy(f.buf[offset:], v)
	return true
}

type fakeFunction struct {
	api.Function
	call   func(args []uint64) ([]uint64, error)
	params []api.ValueType
}

func (f *fakeFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.call == nil {
		return nil, nil
	}
	return f.call(params)
}

func (f *fakeFunction) Definition() api.FunctionDefinition {
	return &fakeDefinition{params: f.params}
}

type fakeDefinition struct {
	api.FunctionDefinition
	params []api.ValueType
}

func (d *fakeDefinition) ParamTypes() []api.ValueType { return d.params }
