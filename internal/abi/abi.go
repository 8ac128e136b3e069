// Package abi implements the boundary representation of bridge values:
// unmanaged strings with explicit ownership, the fixed record layouts
// written into native memory, and an in-process native memory.
package abi

import "fmt"

// PtrHighBits is the shift of the pointer half in a packed pointer/length pair.
const PtrHighBits = 32

// UnmanagedString is text living in native memory: UTF-8 bytes at Ptr,
// Len bytes long, followed by one NUL byte that Len does not count.
// The zero value is the empty string and owns no allocation.
type UnmanagedString struct {
	Ptr uint32
	Len uint32
}

// IsEmpty reports whether s is the empty representation.
func (s UnmanagedString) IsEmpty() bool {
	return s.Ptr == 0 && s.Len == 0
}

// Pack returns s as a single packed uint64 (ptr<<32 | len).
func (s UnmanagedString) Pack() uint64 {
	return PackPtrLen(s.Ptr, s.Len)
}

func (s UnmanagedString) String() string {
	return fmt.Sprintf("unmanaged(0x%x,%d)", s.Ptr, s.Len)
}

// UnpackString splits a packed pointer/length pair into an UnmanagedString.
// It never panics; validity is checked when the string is decoded.
func UnpackString(packed uint64) UnmanagedString {
	return UnmanagedString{
		Ptr: uint32(packed >> PtrHighBits), //nolint:gosec // G115: high half is the pointer
		Len: uint32(packed),                //nolint:gosec // G115: low half is the length
	}
}

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Panics if ptr is 0 and length > 0, indicating an invalid packed value.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	s := UnpackString(packed)
	if s.Ptr == 0 && s.Len > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", s.Len))
	}
	return s.Ptr, s.Len
}
