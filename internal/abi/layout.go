package abi

import (
	"encoding/binary"

	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/coral-dev/coral-go/domain/ports"
)

// Record sizes in native memory. All records are 4-byte aligned,
// little-endian, with no padding between fields.
const (
	UnmanagedStringSize = 8
	ReflectionTypeSize  = 5 * UnmanagedStringSize
	MemberSize          = UnmanagedStringSize + 4
	Bool32Size          = 4
	Int32Size           = 4
)

// ReflectionTypeLayout is the native record for a type snapshot.
//
//	offset 0  FullName
//	offset 8  Name
//	offset 16 Namespace
//	offset 24 BaseTypeName
//	offset 32 AssemblyQualifiedName
type ReflectionTypeLayout struct {
	FullName              UnmanagedString
	Name                  UnmanagedString
	Namespace             UnmanagedString
	BaseTypeName          UnmanagedString
	AssemblyQualifiedName UnmanagedString
}

func (l ReflectionTypeLayout) fields() [5]UnmanagedString {
	return [5]UnmanagedString{l.FullName, l.Name, l.Namespace, l.BaseTypeName, l.AssemblyQualifiedName}
}

// MemberLayout is the native record for one method or field descriptor.
//
//	offset 0 Name
//	offset 8 Visibility (i32)
type MemberLayout struct {
	Name       UnmanagedString
	Visibility entities.TypeVisibility
}

func putString(b []byte, s UnmanagedString) {
	binary.LittleEndian.PutUint32(b[0:4], s.Ptr)
	binary.LittleEndian.PutUint32(b[4:8], s.Len)
}

func getString(b []byte) UnmanagedString {
	return UnmanagedString{
		Ptr: binary.LittleEndian.Uint32(b[0:4]),
		Len: binary.LittleEndian.Uint32(b[4:8]),
	}
}

// MarshalReflectionType encodes l into its native byte layout.
func MarshalReflectionType(l ReflectionTypeLayout) []byte {
	b := make([]byte, ReflectionTypeSize)
	for i, s := range l.fields() {
		putString(b[i*UnmanagedStringSize:], s)
	}
	return b
}

// UnmarshalReflectionType decodes a native ReflectionType record.
func UnmarshalReflectionType(b []byte) ReflectionTypeLayout {
	return ReflectionTypeLayout{
		FullName:              getString(b[0:]),
		Name:                  getString(b[8:]),
		Namespace:             getString(b[16:]),
		BaseTypeName:          getString(b[24:]),
		AssemblyQualifiedName: getString(b[32:]),
	}
}

// MarshalMembers encodes descriptors as a contiguous array.
func MarshalMembers(members []MemberLayout) []byte {
	b := make([]byte, len(members)*MemberSize)
	for i, m := range members {
		off := i * MemberSize
		putString(b[off:], m.Name)
		binary.LittleEndian.PutUint32(b[off+UnmanagedStringSize:], uint32(m.Visibility)) //nolint:gosec // G115: enum fits
	}
	return b
}

// UnmarshalMembers decodes n contiguous descriptors.
func UnmarshalMembers(b []byte, n int) []MemberLayout {
	out := make([]MemberLayout, n)
	for i := range out {
		off := i * MemberSize
		out[i] = MemberLayout{
			Name:       getString(b[off:]),
			Visibility: entities.TypeVisibility(binary.LittleEndian.Uint32(b[off+UnmanagedStringSize:])), //nolint:gosec // G115: enum fits
		}
	}
	return out
}

func write(mem ports.NativeMemory, ptr uint32, data []byte, what string) error {
	if ptr == 0 {
		return &errors.MemoryError{Operation: "write", Size: uint32(len(data)), Reason: what + ": null pointer"} //nolint:gosec // G115: record sizes are small
	}
	if !mem.Write(ptr, data) {
		return &errors.MemoryError{Operation: "write", Ptr: ptr, Size: uint32(len(data)), Reason: what + ": out of range"} //nolint:gosec // G115: record sizes are small
	}
	return nil
}

func read(mem ports.NativeMemory, ptr, size uint32, what string) ([]byte, error) {
	data, ok := mem.Read(ptr, size)
	if !ok {
		return nil, &errors.MemoryError{Operation: "read", Ptr: ptr, Size: size, Reason: what + ": out of range"}
	}
	return data, nil
}

// WriteReflectionType stores l at ptr.
func WriteReflectionType(mem ports.NativeMemory, ptr uint32, l ReflectionTypeLayout) error {
	return write(mem, ptr, MarshalReflectionType(l), "reflection type")
}

// ReadReflectionType loads the record stored at ptr.
func ReadReflectionType(mem ports.NativeMemory, ptr uint32) (ReflectionTypeLayout, error) {
	data, err := read(mem, ptr, ReflectionTypeSize, "reflection type")
	if err != nil {
		return ReflectionTypeLayout{}, err
	}
	return UnmarshalReflectionType(data), nil
}

// WriteMembers stores descriptors contiguously starting at ptr.
func WriteMembers(mem ports.NativeMemory, ptr uint32, members []MemberLayout) error {
	if len(members) == 0 {
		return nil
	}
	return write(mem, ptr, MarshalMembers(members), "member array")
}

// ReadMembers loads n descriptors starting at ptr.
func ReadMembers(mem ports.NativeMemory, ptr uint32, n int) ([]MemberLayout, error) {
	if n == 0 {
		return nil, nil
	}
	data, err := read(mem, ptr, uint32(n*MemberSize), "member array") //nolint:gosec // G115: n is a reported count
	if err != nil {
		return nil, err
	}
	return UnmarshalMembers(data, n), nil
}

// WriteInt32 stores v at ptr.
func WriteInt32(mem ports.NativeMemory, ptr uint32, v int32) error {
	b := make([]byte, Int32Size)
	binary.LittleEndian.PutUint32(b, uint32(v)) //nolint:gosec // G115: two's complement round trip
	return write(mem, ptr, b, "int32")
}

// ReadInt32 loads the int32 stored at ptr.
func ReadInt32(mem ports.NativeMemory, ptr uint32) (int32, error) {
	data, err := read(mem, ptr, Int32Size, "int32")
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(data)), nil //nolint:gosec // G115: two's complement round trip
}

// WriteString stores the UnmanagedString record s at ptr.
func WriteString(mem ports.NativeMemory, ptr uint32, s UnmanagedString) error {
	b := make([]byte, UnmanagedStringSize)
	putString(b, s)
	return write(mem, ptr, b, "string")
}

// ReadString loads the UnmanagedString record stored at ptr.
func ReadString(mem ports.NativeMemory, ptr uint32) (UnmanagedString, error) {
	data, err := read(mem, ptr, UnmanagedStringSize, "string")
	if err != nil {
		return UnmanagedString{}, err
	}
	return getString(data), nil
}
