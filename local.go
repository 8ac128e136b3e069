package coral

import (
	"fmt"
	"sync"

	"github.com/coral-dev/coral-go/application/catalog"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/coral-dev/coral-go/exports"
	"github.com/coral-dev/coral-go/internal/abi"
)

// localConfig holds configuration for a Local.
type localConfig struct {
	surface []exports.Option
	heap    []abi.HeapOption
	codec   []abi.CodecOption
}

// Option configures a Local.
type Option func(*localConfig)

// WithSurfaceOptions passes options to the underlying exports.Surface.
func WithSurfaceOptions(opts ...exports.Option) Option {
	return func(c *localConfig) {
		c.surface = append(c.surface, opts...)
	}
}

// WithMaxStringBytes limits a single string exchanged with the heap.
func WithMaxStringBytes(n uint32) Option {
	return func(c *localConfig) {
		c.codec = append(c.codec, abi.WithMaxStringBytes(n))
	}
}

// WithMaxLiveStrings limits the strings handed out and not yet freed.
func WithMaxLiveStrings(n int) Option {
	return func(c *localConfig) {
		c.codec = append(c.codec, abi.WithMaxLiveStrings(n))
	}
}

// WithMaxHeapBytes limits the total bytes allocated in the in-process heap.
func WithMaxHeapBytes(limit int) Option {
	return func(c *localConfig) {
		c.heap = append(c.heap, abi.WithMaxTotalAllocations(limit))
	}
}

// Local drives the exported call surface from Go, playing the native side
// against an in-process heap. Calls are serialized so that a failure
// reported through the exception callback is attributed to its call.
type Local struct {
	surface  *exports.Surface
	mem      *fencedMemory
	codec    *abi.Codec
	boundary *exports.Boundary

	mu      sync.Mutex
	failure string
	failed  bool
}

// NewLocal creates a Local over the catalog and runs Initialize.
func NewLocal(c *catalog.Catalog, opts ...Option) (*Local, error) {
	var cfg localConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := exports.NewSurface(c, cfg.surface...)
	if err != nil {
		return nil, err
	}
	mem := &fencedMemory{HeapMemory: abi.NewHeapMemory(cfg.heap...)}
	l := &Local{surface: s, mem: mem, codec: abi.NewCodec(mem, cfg.codec...)}
	l.boundary = s.Bind(l.codec)
	l.boundary.SetExceptionCallback(l.onException)
	l.boundary.Initialize()
	return l, nil
}

// Surface returns the underlying surface.
func (l *Local) Surface() *exports.Surface {
	return l.surface
}

// Live returns the number of bridge-allocated strings not yet freed.
func (l *Local) Live() int {
	return l.codec.Live()
}

func (l *Local) onException(msg abi.UnmanagedString) {
	text, err := l.codec.Decode(msg)
	if err != nil {
		text = err.Error()
	}
	l.failure, l.failed = text, true
}

// call runs fn with the lock held and converts a false result into an
// error: the reported failure if there was one, otherwise ErrNotFound.
func (l *Local) call(what string, fn func() bool) error {
	l.failure, l.failed = "", false
	if fn() {
		return nil
	}
	if l.failed {
		return &Failure{Message: l.failure}
	}
	return fmt.Errorf("%s: %w", what, errors.ErrNotFound)
}

// arg copies text into native memory; release frees it.
func (l *Local) arg(text string) (abi.UnmanagedString, func(), error) {
	if text == "" {
		return abi.UnmanagedString{}, func() {}, nil
	}
	size := uint32(len(text)) //nolint:gosec // G115: bounded by the codec limit
	ptr, err := l.mem.Allocate(size)
	if err != nil {
		return abi.UnmanagedString{}, nil, err
	}
	l.mem.Write(ptr, []byte(text))
	return abi.UnmanagedString{Ptr: ptr, Len: size}, func() { _ = l.mem.Free(ptr, size) }, nil
}

func (l *Local) scratch(size uint32) (uint32, func(), error) {
	ptr, err := l.mem.Allocate(size)
	if err != nil {
		return 0, nil, err
	}
	return ptr, func() { _ = l.mem.Free(ptr, size) }, nil
}

// takeType decodes the record at ptr and frees its strings.
func (l *Local) takeType(ptr uint32) (entities.ReflectionType, error) {
	layout, err := abi.ReadReflectionType(l.mem, ptr)
	if err != nil {
		return entities.ReflectionType{}, err
	}
	rt, err := l.codec.DecodeReflectionType(layout)
	for _, s := range []abi.UnmanagedString{
		layout.FullName, layout.Name, layout.Namespace, layout.BaseTypeName, layout.AssemblyQualifiedName,
	} {
		l.boundary.FreeString(s)
	}
	return rt, err
}

// TypeOf returns the snapshot of the named type.
func (l *Local) TypeOf(name string) (entities.ReflectionType, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	arg, done, err := l.arg(name)
	if err != nil {
		return entities.ReflectionType{}, err
	}
	defer done()
	out, free, err := l.scratch(abi.ReflectionTypeSize)
	if err != nil {
		return entities.ReflectionType{}, err
	}
	defer free()

	if err := l.call("type "+name, func() bool { return l.boundary.GetReflectionType(arg, out) }); err != nil {
		return entities.ReflectionType{}, err
	}
	return l.takeType(out)
}

// TypeOfObject returns the snapshot of the dynamic type behind h.
func (l *Local) TypeOfObject(h entities.Handle) (entities.ReflectionType, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out, free, err := l.scratch(abi.ReflectionTypeSize)
	if err != nil {
		return entities.ReflectionType{}, err
	}
	defer free()

	if err := l.call(h.String(), func() bool { return l.boundary.GetReflectionTypeFromObject(h, out) }); err != nil {
		return entities.ReflectionType{}, err
	}
	return l.takeType(out)
}

// IsAssignableTo reports whether a value of type a can be used as type b.
func (l *Local) IsAssignableTo(a, b string) (bool, error) {
	return l.assignable(a, b, l.boundary.IsTypeAssignableTo)
}

// IsAssignableFrom reports whether a value of type b can be used as type a.
func (l *Local) IsAssignableFrom(a, b string) (bool, error) {
	return l.assignable(a, b, l.boundary.IsTypeAssignableFrom)
}

func (l *Local) assignable(a, b string, rel func(a, b abi.UnmanagedString) bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sa, doneA, err := l.arg(a)
	if err != nil {
		return false, err
	}
	defer doneA()
	sb, doneB, err := l.arg(b)
	if err != nil {
		return false, err
	}
	defer doneB()

	l.failure, l.failed = "", false
	if rel(sa, sb) {
		return true, nil
	}
	if l.failed {
		return false, &Failure{Message: l.failure}
	}
	return false, nil
}

// Methods lists the methods of the named type. An unknown type has none.
func (l *Local) Methods(name string) ([]entities.MemberDescriptor, error) {
	return l.members(name, l.boundary.GetTypeMethods)
}

// Fields lists the fields of the named type. An unknown type has none.
func (l *Local) Fields(name string) ([]entities.MemberDescriptor, error) {
	return l.members(name, l.boundary.QueryObjectFields)
}

// memberAttempts bounds the retries when a type's members change between
// the counting call and the filling call.
const memberAttempts = 3

func (l *Local) members(name string, list func(name abi.UnmanagedString, arr, count uint32)) ([]entities.MemberDescriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	arg, done, err := l.arg(name)
	if err != nil {
		return nil, err
	}
	defer done()
	count, free, err := l.scratch(abi.Int32Size)
	if err != nil {
		return nil, err
	}
	defer free()

	for attempt := 0; attempt < memberAttempts; attempt++ {
		out, grown, err := l.fillMembers(arg, count, list)
		if !grown {
			return out, err
		}
	}
	return nil, fmt.Errorf("members of %s kept changing during the call", name)
}

// fillMembers runs both phases once. grown reports that the second phase
// needed more room than the first announced.
func (l *Local) fillMembers(arg abi.UnmanagedString, count uint32, list func(name abi.UnmanagedString, arr, count uint32)) (
	out []entities.MemberDescriptor, grown bool, err error,
) {
	l.failure, l.failed = "", false
	list(arg, 0, count)
	if l.failed {
		return nil, false, &Failure{Message: l.failure}
	}
	n, err := abi.ReadInt32(l.mem, count)
	if err != nil || n <= 0 {
		return nil, false, err
	}

	size := uint32(n) * abi.MemberSize //nolint:gosec // G115: n > 0
	arr, freeArr, err := l.scratch(size)
	if err != nil {
		return nil, false, err
	}
	defer freeArr()

	l.mem.fence(arr, size)
	list(arg, arr, count)
	overflow := l.mem.unfence()
	if overflow {
		return nil, true, nil
	}
	if l.failed {
		return nil, false, &Failure{Message: l.failure}
	}
	filled, err := abi.ReadInt32(l.mem, count)
	if err != nil {
		return nil, false, err
	}
	if filled > n {
		return nil, true, nil
	}

	layouts, err := abi.ReadMembers(l.mem, arr, int(filled))
	if err != nil {
		return nil, false, err
	}
	out = make([]entities.MemberDescriptor, len(layouts))
	for i, m := range layouts {
		text, derr := l.codec.Decode(m.Name)
		if derr != nil && err == nil {
			err = derr
		}
		out[i] = entities.MemberDescriptor{Name: text, Visibility: m.Visibility}
		l.boundary.FreeString(m.Name)
	}
	return out, false, err
}

// fencedMemory refuses writes that start inside the fenced region and run
// past its end, so a member array cannot spill into other allocations.
type fencedMemory struct {
	*abi.HeapMemory

	mu       sync.Mutex
	lo, hi   uint32
	active   bool
	overflow bool
}

func (m *fencedMemory) fence(ptr, size uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lo, m.hi, m.active, m.overflow = ptr, ptr+size, true, false
}

// unfence lifts the fence and reports whether a write was refused.
func (m *fencedMemory) unfence() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	return m.overflow
}

func (m *fencedMemory) Write(ptr uint32, data []byte) bool {
	m.mu.Lock()
	if m.active && ptr >= m.lo && ptr < m.hi && uint64(ptr)+uint64(len(data)) > uint64(m.hi) {
		m.overflow = true
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()
	return m.HeapMemory.Write(ptr, data)
}

// Schema returns the JSON schema of the named type.
func (l *Local) Schema(name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	arg, done, err := l.arg(name)
	if err != nil {
		return "", err
	}
	defer done()
	out, free, err := l.scratch(abi.UnmanagedStringSize)
	if err != nil {
		return "", err
	}
	defer free()

	if err := l.call("schema "+name, func() bool { return l.boundary.GetTypeSchema(arg, out) }); err != nil {
		return "", err
	}
	s, err := abi.ReadString(l.mem, out)
	if err != nil {
		return "", err
	}
	text, err := l.codec.Decode(s)
	l.boundary.FreeString(s)
	return text, err
}

// Register makes obj reachable by handle.
func (l *Local) Register(obj any) (entities.Handle, error) {
	return l.surface.RegisterObject(obj)
}

// Release invalidates h through ReleaseObject.
func (l *Local) Release(h entities.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.call(h.String(), func() bool { return l.boundary.ReleaseObject(h) })
}

// Close invalidates every handle and frees the in-process memory.
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.surface.Close()
	l.mem.FreeAll()
}

// Failure is a failure the bridge reported through the exception callback.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}
