package entities

import "fmt"

// Handle is an opaque token naming one live object across the boundary.
// The low 32 bits hold the slot index plus one, the high 32 bits the slot
// generation. The zero Handle is never issued.
type Handle uint64

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

// NewHandle packs a slot index and generation into a Handle.
func NewHandle(slot uint32, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(slot+1))
}

// Slot returns the arena index encoded in the handle and false for the zero handle.
func (h Handle) Slot() (uint32, bool) {
	low := uint32(h) //nolint:gosec // G115: low half is the slot by construction
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

// Generation returns the generation encoded in the handle.
func (h Handle) Generation() uint32 {
	return uint32(h >> 32) //nolint:gosec // G115: high half is the generation by construction
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == InvalidHandle
}

func (h Handle) String() string {
	slot, ok := h.Slot()
	if !ok {
		return "handle(0)"
	}
	return fmt.Sprintf("handle(%d@%d)", slot, h.Generation())
}
