package coral

import (
	stdErrors "errors"
	"testing"

	"github.com/coral-dev/coral-go/application/catalog"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/coral-dev/coral-go/exports"
	"github.com/coral-dev/coral-go/internal/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Shape interface {
	Area() float64
}

type Base struct {
	ID string
}

func (b *Base) Identify() string { return b.ID }

type Circle struct {
	Base
	Radius float64
	secret int
}

func (c *Circle) Area() float64 { return 3 * c.Radius * c.Radius }

func newLocal(t *testing.T, opts ...Option) *Local {
	t.Helper()
	c := catalog.New()
	c.MustRegister(catalog.TypeSpec{Type: catalog.Of[Base](), Assembly: "App", Version: "1.0.0", Namespace: "App"})
	c.MustRegister(catalog.TypeSpec{Type: catalog.Of[Circle](), Assembly: "App", Version: "1.0.0", Namespace: "App"})
	c.MustRegister(catalog.TypeSpec{Type: catalog.Of[Shape](), Assembly: "App", Version: "1.0.0", Namespace: "App"})

	l, err := NewLocal(c, opts...)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func TestLocal_TypeOf(t *testing.T) {
	l := newLocal(t)

	rt, err := l.TypeOf("App.Circle")
	require.NoError(t, err)
	assert.Equal(t, "App.Circle", rt.FullName)
	assert.Equal(t, "Circle", rt.Name)
	assert.Equal(t, "App", rt.Namespace)
	assert.Equal(t, "App.Base", rt.BaseTypeName)
	assert.Contains(t, rt.AssemblyQualifiedName, "App.Circle, App")
	assert.Zero(t, l.Live())
}

func TestLocal_MembersGrowBetweenCalls(t *testing.T) {
	l := newLocal(t)

	// The first count sees App.Base (one field); every later call sees
	// App.Circle (three fields), as if the type had been reloaded.
	base, doneBase, err := l.arg("App.Base")
	require.NoError(t, err)
	defer doneBase()
	circle, doneCircle, err := l.arg("App.Circle")
	require.NoError(t, err)
	defer doneCircle()

	calls := 0
	list := func(_ abi.UnmanagedString, arr, count uint32) {
		calls++
		name := circle
		if calls == 1 {
			name = base
		}
		l.boundary.QueryObjectFields(name, arr, count)
	}

	fields, err := l.members("App.Circle", list)
	require.NoError(t, err)
	assert.Equal(t, []string{"Base", "Radius", "secret"}, memberNames(fields))
	assert.Equal(t, 4, calls, "one refused fill, then a fresh count and fill")
	assert.Zero(t, l.Live())
}

func TestFencedMemory(t *testing.T) {
	mem := &fencedMemory{HeapMemory: abi.NewHeapMemory()}
	arr, err := mem.Allocate(8)
	require.NoError(t, err)
	next, err := mem.Allocate(8)
	require.NoError(t, err)

	mem.fence(arr, 8)
	assert.True(t, mem.Write(arr, make([]byte, 8)))
	assert.True(t, mem.Write(next, []byte("abc")), "writes outside the fence pass")
	assert.False(t, mem.Write(arr+4, make([]byte, 8)))
	assert.True(t, mem.unfence())

	assert.True(t, mem.Write(arr, make([]byte, 16)), "no fence, no refusal")
	mem.fence(arr, 8)
	assert.False(t, mem.unfence())
}

func memberNames(members []entities.MemberDescriptor) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}

func TestLocal_TypeOf_NotFound(t *testing.T) {
	l := newLocal(t)

	_, err := l.TypeOf("App.Square")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = l.TypeOf("")
	assert.True(t, errors.IsNotFound(err))
}

func TestLocal_Members(t *testing.T) {
	l := newLocal(t)

	methods, err := l.Methods("App.Circle")
	require.NoError(t, err)
	assert.Equal(t, []entities.MemberDescriptor{
		{Name: "Area", Visibility: entities.VisibilityPublic},
		{Name: "Identify", Visibility: entities.VisibilityPublic},
	}, methods)

	fields, err := l.Fields("App.Circle")
	require.NoError(t, err)
	assert.Equal(t, []entities.MemberDescriptor{
		{Name: "Base", Visibility: entities.VisibilityPublic},
		{Name: "Radius", Visibility: entities.VisibilityPublic},
		{Name: "secret", Visibility: entities.VisibilityPrivate},
	}, fields)

	none, err := l.Methods("App.Square")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Zero(t, l.Live())
}

func TestLocal_Assignability(t *testing.T) {
	l := newLocal(t)

	tests := []struct {
		a, b string
		to   bool
		from bool
	}{
		{a: "App.Circle", b: "App.Shape", to: true, from: false},
		{a: "App.Circle", b: "App.Base", to: true, from: false},
		{a: "App.Base", b: "App.Circle", to: false, from: true},
		{a: "App.Circle", b: "App.Circle", to: true, from: true},
		{a: "App.Circle", b: "App.Square", to: false, from: false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			to, err := l.IsAssignableTo(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)

			from, err := l.IsAssignableFrom(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.from, from)
		})
	}
}

func TestLocal_Schema(t *testing.T) {
	l := newLocal(t)

	text, err := l.Schema("App.Circle")
	require.NoError(t, err)
	assert.Contains(t, text, `"Radius"`)
	assert.Zero(t, l.Live())

	_, err = l.Schema("App.Square")
	assert.True(t, errors.IsNotFound(err))
}

func TestLocal_Objects(t *testing.T) {
	l := newLocal(t)

	h, err := l.Register(&Circle{Radius: 2})
	require.NoError(t, err)

	rt, err := l.TypeOfObject(h)
	require.NoError(t, err)
	assert.Equal(t, "App.Circle", rt.FullName)

	require.NoError(t, l.Release(h))

	err = l.Release(h)
	var f *Failure
	require.True(t, stdErrors.As(err, &f))
	assert.Contains(t, f.Message, "stale")

	_, err = l.TypeOfObject(h)
	require.Error(t, err)
	assert.False(t, errors.IsNotFound(err))
}

func TestLocal_SurfaceOptions(t *testing.T) {
	l := newLocal(t, WithSurfaceOptions(exports.WithExpose("App/Base")))

	_, err := l.TypeOf("App.Base")
	require.NoError(t, err)

	_, err = l.TypeOf("App.Circle")
	assert.True(t, errors.IsNotFound(err))
}

func TestBuiltinCatalog(t *testing.T) {
	l, err := NewLocal(BuiltinCatalog())
	require.NoError(t, err)
	defer l.Close()

	for _, name := range []string{
		"Coral.Bridge.ReflectionType",
		"Coral.Bridge.MemberDescriptor",
		"Coral.Bridge.ErrorDetail",
		"Coral.Bridge.Config",
		"Coral.Bridge.Handle",
	} {
		rt, err := l.TypeOf(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, rt.FullName)
	}

	schema, err := l.Schema("Coral.Bridge.Config")
	require.NoError(t, err)
	assert.Contains(t, schema, "module_name")

	methods, err := l.Methods("Coral.Bridge.ErrorDetail")
	require.NoError(t, err)
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	assert.Contains(t, names, "Describe")
	assert.Contains(t, names, "Error")
}
