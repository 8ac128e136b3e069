package abi

import (
	stdErrors "errors"
	"sync"
	"unicode/utf8"

	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/coral-dev/coral-go/domain/ports"
)

// Default codec limits.
const (
	DefaultMaxStringBytes = 1 << 20
	DefaultMaxLiveStrings = 1 << 16
)

// ErrInvalidText marks native text that is not valid UTF-8.
var ErrInvalidText = stdErrors.New("invalid utf-8")

type codecConfig struct {
	maxStringBytes uint32
	maxLive        int
}

func defaultCodecConfig() codecConfig {
	return codecConfig{
		maxStringBytes: DefaultMaxStringBytes,
		maxLive:        DefaultMaxLiveStrings,
	}
}

// CodecOption configures a Codec.
type CodecOption func(*codecConfig)

// WithMaxStringBytes bounds the length of a single encoded or decoded string.
func WithMaxStringBytes(n uint32) CodecOption {
	return func(c *codecConfig) {
		if n > 0 {
			c.maxStringBytes = n
		}
	}
}

// WithMaxLiveStrings bounds the number of strings handed out and not yet freed.
func WithMaxLiveStrings(n int) CodecOption {
	return func(c *codecConfig) {
		if n > 0 {
			c.maxLive = n
		}
	}
}

// Codec converts between Go strings and UnmanagedStrings in one native memory.
// It tracks every allocation it hands out so that each can be freed exactly once.
type Codec struct {
	mem      ports.NativeMemory
	live     map[uint32]uint32 // ptr -> allocation size
	reserved int               // Encodes past the limit check, not yet live
	cfg      codecConfig
	mu       sync.Mutex
}

// NewCodec creates a Codec over mem.
func NewCodec(mem ports.NativeMemory, opts ...CodecOption) *Codec {
	cfg := defaultCodecConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Codec{
		mem:  mem,
		live: make(map[uint32]uint32),
		cfg:  cfg,
	}
}

// Memory returns the native memory the codec writes to.
func (c *Codec) Memory() ports.NativeMemory {
	return c.mem
}

// Encode copies s into a fresh native allocation.
// The empty string yields the empty representation without allocating.
func (c *Codec) Encode(s string) (*OwnedString, error) {
	if s == "" {
		return &OwnedString{codec: c}, nil
	}
	if uint64(len(s)) > uint64(c.cfg.maxStringBytes) {
		return nil, &errors.LimitError{Requested: len(s), Limit: int(c.cfg.maxStringBytes)}
	}

	// The slot is reserved under the lock; the native allocator may
	// re-enter the bridge, so it runs unlocked.
	c.mu.Lock()
	live := len(c.live) + c.reserved
	if live >= c.cfg.maxLive {
		c.mu.Unlock()
		return nil, &errors.LimitError{Requested: 1, Current: live, Limit: c.cfg.maxLive}
	}
	c.reserved++
	c.mu.Unlock()

	size := uint32(len(s)) + 1 //nolint:gosec // G115: bounded by maxStringBytes
	ptr, err := c.mem.Allocate(size)
	if err != nil {
		c.unreserve()
		return nil, &errors.MemoryError{Operation: "allocate", Size: size, Reason: "encode string", Err: err}
	}

	buf := make([]byte, size)
	copy(buf, s)
	if !c.mem.Write(ptr, buf) {
		c.unreserve()
		freeErr := c.mem.Free(ptr, size)
		return nil, &errors.MemoryError{
			Operation: "write", Ptr: ptr, Size: size, Reason: "encode string out of range", Err: freeErr,
		}
	}

	c.mu.Lock()
	c.reserved--
	c.live[ptr] = size
	c.mu.Unlock()
	return &OwnedString{
		codec: c,
		value: UnmanagedString{Ptr: ptr, Len: size - 1},
	}, nil
}

func (c *Codec) unreserve() {
	c.mu.Lock()
	c.reserved--
	c.mu.Unlock()
}

// Decode reads caller-owned text. Ownership is not affected.
func (c *Codec) Decode(s UnmanagedString) (string, error) {
	if s.IsEmpty() {
		return "", nil
	}
	if s.Ptr == 0 {
		return "", &errors.MemoryError{Operation: "read", Size: s.Len, Reason: "null pointer with non-zero length"}
	}
	if s.Len > c.cfg.maxStringBytes {
		return "", &errors.LimitError{Requested: int(s.Len), Limit: int(c.cfg.maxStringBytes)}
	}
	if s.Len == 0 {
		return "", nil
	}

	data, ok := c.mem.Read(s.Ptr, s.Len)
	if !ok {
		return "", &errors.MemoryError{Operation: "read", Ptr: s.Ptr, Size: s.Len, Reason: "out of range"}
	}
	if !utf8.Valid(data) {
		return "", &errors.MemoryError{Operation: "read", Ptr: s.Ptr, Size: s.Len, Reason: "decode string", Err: ErrInvalidText}
	}
	return string(data), nil
}

// Free releases a string previously produced by Encode and detached to
// the native side. Freeing the empty representation is a no-op. A pointer
// the codec does not own, including one already freed, is an error.
func (c *Codec) Free(s UnmanagedString) error {
	if s.IsEmpty() {
		return nil
	}

	c.mu.Lock()
	size, ok := c.live[s.Ptr]
	if !ok {
		c.mu.Unlock()
		return &errors.MemoryError{Operation: "free", Ptr: s.Ptr, Size: s.Len, Reason: "double free or foreign pointer"}
	}
	if size != s.Len+1 {
		c.mu.Unlock()
		return &errors.MemoryError{Operation: "free", Ptr: s.Ptr, Size: s.Len, Reason: "length does not match allocation"}
	}
	delete(c.live, s.Ptr)
	c.mu.Unlock()

	if err := c.mem.Free(s.Ptr, size); err != nil {
		return &errors.MemoryError{Operation: "free", Ptr: s.Ptr, Size: size, Reason: "native free failed", Err: err}
	}
	return nil
}

// Live returns the number of strings handed out and not yet freed.
func (c *Codec) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// noCopy makes go vet's copylocks check flag copies of the embedding struct.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// OwnedString is an UnmanagedString still owned by the Go side.
// It must be either detached, which hands ownership to the native side,
// or released. It is used through a pointer and must not be copied.
type OwnedString struct {
	_     noCopy
	codec *Codec
	value UnmanagedString
	done  bool
}

// Peek lends the raw value without transferring ownership.
func (o *OwnedString) Peek() UnmanagedString {
	if o == nil {
		return UnmanagedString{}
	}
	return o.value
}

// Detach moves ownership out. The caller becomes responsible for Codec.Free.
// Later Release calls are no-ops.
func (o *OwnedString) Detach() UnmanagedString {
	if o == nil || o.done {
		return UnmanagedString{}
	}
	o.done = true
	return o.value
}

// Release frees the string. Only the first Release (and none after Detach) frees.
func (o *OwnedString) Release() error {
	if o == nil || o.done {
		return nil
	}
	o.done = true
	return o.codec.Free(o.value)
}

// OwnedSet collects owned strings produced for one output so they can be
// handed over together or released together.
type OwnedSet struct {
	_     noCopy
	codec *Codec
	items []*OwnedString
}

// NewOwnedSet creates an empty set encoding through codec.
func NewOwnedSet(codec *Codec) *OwnedSet {
	return &OwnedSet{codec: codec}
}

// Encode encodes s, keeps ownership in the set and returns the raw value.
func (s *OwnedSet) Encode(text string) (UnmanagedString, error) {
	owned, err := s.codec.Encode(text)
	if err != nil {
		return UnmanagedString{}, err
	}
	s.items = append(s.items, owned)
	return owned.Peek(), nil
}

// Len returns the number of strings in the set.
func (s *OwnedSet) Len() int {
	return len(s.items)
}

// DetachAll hands every string to the native side.
func (s *OwnedSet) DetachAll() {
	for _, item := range s.items {
		item.Detach()
	}
	s.items = nil
}

// ReleaseAll frees every string still owned by the set.
func (s *OwnedSet) ReleaseAll() error {
	var errs []error
	for _, item := range s.items {
		if err := item.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	s.items = nil
	return stdErrors.Join(errs...)
}
