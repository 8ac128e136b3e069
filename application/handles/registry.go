// Package handles implements the object-handle registry: an arena of slots
// mapping generation-tagged handles to live objects.
//
// Releasing a handle bumps its slot's generation before the slot is reused,
// so a stale handle fails resolution instead of naming the slot's next
// occupant.
package handles

import (
	"fmt"
	"sync"

	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/coral-dev/coral-go/domain/ports"
)

var _ ports.ObjectRegistry = (*Registry)(nil)

type slot struct {
	value      any
	generation uint32
	live       bool
}

// Registry is a thread-safe handle arena. The zero value is not usable;
// create one with NewRegistry.
type Registry struct {
	slots    []slot
	freeList []uint32
	live     int
	mu       sync.RWMutex
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		slots:    make([]slot, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Register stores obj and returns a fresh handle for it.
func (r *Registry) Register(obj any) (entities.Handle, error) {
	if obj == nil {
		return entities.InvalidHandle, fmt.Errorf("handles: cannot register nil object")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return entities.InvalidHandle, &errors.HandleError{Operation: "register", Reason: errors.HandleClosed}
	}

	if n := len(r.freeList); n > 0 {
		idx := r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		s := &r.slots[idx]
		s.value = obj
		s.live = true
		r.live++
		return entities.NewHandle(idx, s.generation), nil
	}

	if uint64(len(r.slots)) >= uint64(^uint32(0)) {
		return entities.InvalidHandle, fmt.Errorf("handles: arena exhausted")
	}
	r.slots = append(r.slots, slot{value: obj, live: true})
	r.live++
	return entities.NewHandle(uint32(len(r.slots)-1), 0), nil //nolint:gosec // G115: bounded above
}

// Resolve returns the object named by h. It never mutates the registry.
func (r *Registry) Resolve(h entities.Handle) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.lookup("resolve", h)
	if err != nil {
		return nil, err
	}
	return s.value, nil
}

// Release invalidates h and makes its slot available for reuse.
func (r *Registry) Release(h entities.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup("release", h)
	if err != nil {
		return err
	}

	idx, _ := h.Slot()
	s.value = nil
	s.live = false
	s.generation++
	r.live--
	// A slot whose generation wrapped could alias a handle issued long ago;
	// retire it instead of recycling.
	if s.generation != 0 {
		r.freeList = append(r.freeList, idx)
	}
	return nil
}

func (r *Registry) lookup(op string, h entities.Handle) (*slot, error) {
	if r.closed {
		return nil, &errors.HandleError{Operation: op, Handle: h, Reason: errors.HandleClosed}
	}
	idx, ok := h.Slot()
	if !ok {
		return nil, &errors.HandleError{Operation: op, Handle: h, Reason: errors.HandleZero}
	}
	if int(idx) >= len(r.slots) {
		return nil, &errors.HandleError{Operation: op, Handle: h, Reason: errors.HandleUnknown}
	}
	s := &r.slots[idx]
	if s.generation != h.Generation() {
		return nil, &errors.HandleError{Operation: op, Handle: h, Reason: errors.HandleStale}
	}
	if !s.live {
		return nil, &errors.HandleError{Operation: op, Handle: h, Reason: errors.HandleUnknown}
	}
	return s, nil
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Close releases every handle. Later calls fail with a closed-handle error.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for i := range r.slots {
		r.slots[i].value = nil
		r.slots[i].live = false
	}
	r.slots = nil
	r.freeList = nil
	r.live = 0
}
