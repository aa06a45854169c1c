package wasm

import (
	"unsafe"
)

// Buffer is a (pointer, length) pair packed into a single uint64 so that it can
// cross the guest boundary in one return value. The pointer occupies the high
// 32 bits and the length the low 32 bits. A zero Buffer is the canonical
// "no data" signal: either side must treat it as an empty payload and never
// dereference it.
type Buffer uint64

// Pack combines a guest memory address and a byte length into a Buffer.
// A zero address or zero length always yields the zero Buffer.
func Pack(ptr, length uint32) Buffer {
	if ptr == 0 || length == 0 {
		return 0
	}
	return Buffer(uint64(ptr)<<32 | uint64(length))
}

// FromSlice packs the address and length of value. Empty slices pack to the
// zero Buffer so that the "null-or-empty means no data" convention holds
// uniformly.
//
// The caller is responsible for keeping value reachable for as long as the
// receiving side may read it. See the guest arena's Leak.
func FromSlice(value []byte) Buffer {
	if len(value) == 0 {
		return 0
	}
	ptr := uint32(uintptr(unsafe.Pointer(&value[0])))
	return Pack(ptr, uint32(len(value)))
}

func (buffer Buffer) Address() uint32 {
	return uint32(buffer >> 32)
}

func (buffer Buffer) Length() uint32 {
	return uint32(buffer)
}

func (buffer Buffer) IsEmpty() bool {
	return buffer.Address() == 0 || buffer.Length() == 0
}

// Slice returns a copy of the data from the underlying Buffer by reading the
// data at the buffer address for its length. Once read, the buffer is safe to
// be released.
func (buffer Buffer) Slice() []byte {
	if buffer.IsEmpty() {
		return nil
	}
	return append([]byte{}, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(buffer.Address()))), buffer.Length())...)
}

func (buffer Buffer) String() string {
	return string(buffer.Slice())
}
