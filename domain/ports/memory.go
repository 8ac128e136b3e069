package ports

// NativeMemory is the linear address space owned by the native side.
// Pointers are 32-bit offsets; zero is the null pointer and is never
// returned by a successful Allocate.
type NativeMemory interface {
	// Allocate reserves size bytes and returns their address.
	Allocate(size uint32) (uint32, error)

	// Free releases an allocation returned by Allocate. size is the size
	// originally requested.
	Free(ptr, size uint32) error

	// Read returns a view of size bytes at ptr, or false when out of range.
	Read(ptr, size uint32) ([]byte, bool)

	// Write copies data to ptr, or returns false when out of range.
	Write(ptr uint32, data []byte) bool
}
