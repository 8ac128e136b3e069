package abi

import (
	"sync"

	"github.com/coral-dev/coral-go/domain/errors"
)

// DefaultMaxTotalAllocations is the default ceiling for live bytes in a HeapMemory.
const DefaultMaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// heapAlign is the alignment of every HeapMemory allocation.
const heapAlign = 8

// HeapMemory is an in-process native address space. It backs native hosts
// that live in the same process and the package tests. Allocation is a bump
// pointer: addresses are never reused, so a stale pointer can never alias a
// newer allocation.
type HeapMemory struct {
	allocs         map[uint32]uint32 // ptr -> requested size
	buf            []byte
	next           uint32
	totalAllocated int
	limit          int
	mu             sync.Mutex
}

// HeapOption configures a HeapMemory.
type HeapOption func(*HeapMemory)

// WithMaxTotalAllocations sets the maximum live bytes.
// Non-positive values are ignored.
func WithMaxTotalAllocations(limit int) HeapOption {
	return func(h *HeapMemory) {
		if limit > 0 {
			h.limit = limit
		}
	}
}

// WithInitialCapacity preallocates the backing buffer.
func WithInitialCapacity(n int) HeapOption {
	return func(h *HeapMemory) {
		if n > len(h.buf) {
			grown := make([]byte, len(h.buf), n)
			copy(grown, h.buf)
			h.buf = grown
		}
	}
}

// NewHeapMemory creates an empty HeapMemory. Address 0 is reserved as null.
func NewHeapMemory(opts ...HeapOption) *HeapMemory {
	h := &HeapMemory{
		allocs: make(map[uint32]uint32),
		buf:    make([]byte, heapAlign),
		next:   heapAlign,
		limit:  DefaultMaxTotalAllocations,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Allocate reserves size bytes.
func (h *HeapMemory) Allocate(size uint32) (uint32, error) {
	if size == 0 {
		return 0, &errors.MemoryError{Operation: "allocate", Reason: "zero-size allocation"}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalAllocated+int(size) > h.limit {
		return 0, &errors.LimitError{Requested: int(size), Current: h.totalAllocated, Limit: h.limit}
	}

	ptr := h.next
	end := uint64(ptr) + uint64(size)
	aligned := (end + heapAlign - 1) &^ (heapAlign - 1)
	if aligned > uint64(^uint32(0)) {
		return 0, &errors.MemoryError{Operation: "allocate", Size: size, Reason: "address space exhausted"}
	}
	if int(aligned) > len(h.buf) {
		h.buf = append(h.buf, make([]byte, int(aligned)-len(h.buf))...)
	}

	h.next = uint32(aligned)
	h.allocs[ptr] = size
	h.totalAllocated += int(size)
	return ptr, nil
}

// Free releases an allocation. Untracked pointers are an error.
// The accounting uses the stored size, not the caller's.
func (h *HeapMemory) Free(ptr, size uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored, ok := h.allocs[ptr]
	if !ok {
		return &errors.MemoryError{Operation: "free", Ptr: ptr, Size: size, Reason: "untracked pointer"}
	}
	delete(h.allocs, ptr)
	h.totalAllocated -= int(stored)
	if h.totalAllocated < 0 {
		h.totalAllocated = 0
	}
	return nil
}

// Read returns a view of size bytes at ptr.
func (h *HeapMemory) Read(ptr, size uint32) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.inBounds(ptr, size) {
		return nil, false
	}
	return h.buf[ptr : ptr+size : ptr+size], true
}

// Write copies data into memory at ptr.
func (h *HeapMemory) Write(ptr uint32, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.inBounds(ptr, uint32(len(data))) { //nolint:gosec // G115: bounded by inBounds
		return false
	}
	copy(h.buf[ptr:], data)
	return true
}

func (h *HeapMemory) inBounds(ptr, size uint32) bool {
	if ptr == 0 {
		return false
	}
	return uint64(ptr)+uint64(size) <= uint64(len(h.buf))
}

// Stats returns the number of live allocations and their total size.
func (h *HeapMemory) Stats() (count int, totalBytes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.allocs), h.totalAllocated
}

// FreeAll drops every live allocation. Used on teardown.
func (h *HeapMemory) FreeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ptr := range h.allocs {
		delete(h.allocs, ptr)
	}
	h.totalAllocated = 0
}
