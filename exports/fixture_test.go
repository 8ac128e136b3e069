package exports

import (
	"reflect"
	"sync"
	"testing"

	"github.com/coral-dev/coral-go/application/catalog"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/internal/abi"
	"github.com/stretchr/testify/require"
)

type Control struct {
	ID      string `json:"id"`
	enabled bool
}

type Widget struct {
	Control
	Label string `json:"label"`
	clicks int   `coral:"access=family"`
}

func (w Widget) Describe() string { return w.Label }

func (w *Widget) Render() string { return w.ID + ":" + w.Label }

type Renderer interface {
	Render() string
}

type Broken struct {
	Size int `coral:"access=sometimes"`
}

func newTestCatalog() *catalog.Catalog {
	c := catalog.New()
	for _, rt := range []reflect.Type{
		reflect.TypeOf(Control{}),
		reflect.TypeOf(Widget{}),
		catalog.Of[Renderer](),
		reflect.TypeOf(Broken{}),
	} {
		c.MustRegister(catalog.TypeSpec{Type: rt, Assembly: "App", Version: "1.0.0", Namespace: "App"})
	}
	return c
}

// native plays the native host: it owns a linear memory, passes strings
// it allocated itself and frees the strings it receives.
type native struct {
	t        *testing.T
	mem      *abi.HeapMemory
	codec    *abi.Codec
	surface  *Surface
	boundary *Boundary
	mu       sync.Mutex
	failures []string
}

func newNative(t *testing.T, opts ...Option) *native {
	t.Helper()
	s, err := NewSurface(newTestCatalog(), opts...)
	require.NoError(t, err)

	mem := abi.NewHeapMemory()
	n := &native{t: t, mem: mem, codec: abi.NewCodec(mem), surface: s}
	n.boundary = s.Bind(n.codec)
	n.boundary.SetExceptionCallback(n.onException)
	return n
}

func (n *native) onException(msg abi.UnmanagedString) {
	text, err := n.codec.Decode(msg)
	if err != nil {
		text = "undecodable: " + err.Error()
	}
	n.mu.Lock()
	n.failures = append(n.failures, text)
	n.mu.Unlock()
}

func (n *native) failureCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failures)
}

func (n *native) lastFailure() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.failures) == 0 {
		return ""
	}
	return n.failures[len(n.failures)-1]
}

// str places caller-owned text in native memory.
func (n *native) str(s string) abi.UnmanagedString {
	n.t.Helper()
	if s == "" {
		return abi.UnmanagedString{}
	}
	ptr, err := n.mem.Allocate(uint32(len(s)))
	require.NoError(n.t, err)
	require.True(n.t, n.mem.Write(ptr, []byte(s)))
	return abi.UnmanagedString{Ptr: ptr, Len: uint32(len(s))}
}

func (n *native) buffer(size uint32) uint32 {
	n.t.Helper()
	ptr, err := n.mem.Allocate(size)
	require.NoError(n.t, err)
	return ptr
}

func (n *native) counter(initial int32) uint32 {
	n.t.Helper()
	ptr := n.buffer(abi.Int32Size)
	require.NoError(n.t, abi.WriteInt32(n.mem, ptr, initial))
	return ptr
}

func (n *native) readCount(ptr uint32) int32 {
	n.t.Helper()
	v, err := abi.ReadInt32(n.mem, ptr)
	require.NoError(n.t, err)
	return v
}

// takeType decodes the record at ptr and frees its strings through the boundary.
func (n *native) takeType(ptr uint32) entities.ReflectionType {
	n.t.Helper()
	l, err := abi.ReadReflectionType(n.mem, ptr)
	require.NoError(n.t, err)
	rt, err := n.codec.DecodeReflectionType(l)
	require.NoError(n.t, err)
	for _, s := range []abi.UnmanagedString{l.FullName, l.Name, l.Namespace, l.BaseTypeName, l.AssemblyQualifiedName} {
		n.boundary.FreeString(s)
	}
	return rt
}

// takeMembers decodes count descriptors at ptr and frees their names.
func (n *native) takeMembers(ptr uint32, count int32) []entities.MemberDescriptor {
	n.t.Helper()
	layouts, err := abi.ReadMembers(n.mem, ptr, int(count))
	require.NoError(n.t, err)
	out := make([]entities.MemberDescriptor, len(layouts))
	for i, l := range layouts {
		name, err := n.codec.Decode(l.Name)
		require.NoError(n.t, err)
		out[i] = entities.MemberDescriptor{Name: name, Visibility: l.Visibility}
		n.boundary.FreeString(l.Name)
	}
	return out
}

// methods runs the two-phase protocol for GetTypeMethods.
func (n *native) methods(name string) []entities.MemberDescriptor {
	n.t.Helper()
	count := n.counter(-1)
	n.boundary.GetTypeMethods(n.str(name), 0, count)
	c := n.readCount(count)
	arr := n.buffer(uint32(c)*abi.MemberSize + 1)
	n.boundary.GetTypeMethods(n.str(name), arr, count)
	require.Equal(n.t, c, n.readCount(count))
	return n.takeMembers(arr, c)
}
