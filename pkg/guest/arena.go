// Package guest implements the boundary layer a wasm library needs to serve
// calls from a RelayDB host: linear-memory allocation primitives, the module
// manifest, and the generic dispatch path that turns raw (pointer, length)
// pairs into typed handler calls and back.
//
// A guest module wires this package to its wasm exports: the fixed allocate,
// release and module_manifest exports are provided here (see exports_wasip1.go),
// and the module author adds one export per route, each a thin wrapper over
// Dispatch. See examples/hello.
package guest

import (
	"sync"
	"unsafe"

	"github.com/relaydb/wasmlib/internal/wasm"
)

// arena tracks every buffer this module has handed across the boundary.
// Holding the slice in the map pins it: the GC cannot reclaim memory the host
// may still be reading. Memory is reclaimed only by an explicit Free, which is
// the protocol's release primitive; there is no automatic reclamation.
//
// The arena is the sole mutator of allocation state on the guest side. The
// host serializes calls into a given instance, but the mutex keeps the arena
// correct even if a handler touches it from another goroutine.
type arena struct {
	mu     sync.Mutex
	pinned map[uint32][]byte
}

var mem = &arena{pinned: map[uint32][]byte{}}

// Alloc reserves a zeroed buffer of exactly size bytes in linear memory and
// returns its address. The caller owns the buffer from this instant. Requests
// for zero or negative sizes return the null address and write nothing.
func Alloc(size int32) uint32 {
	if size <= 0 {
		return 0
	}
	buffer := make([]byte, size)
	return mem.pin(buffer)
}

// Free releases a buffer previously produced by Alloc or Leak. Null pointers
// and non-positive lengths are always a safe no-op. Releasing a pointer that
// does not correspond to a prior allocation is the caller's misuse; the arena
// cannot detect it and ignores unknown pointers.
func Free(ptr uint32, size int32) {
	if ptr == 0 || size <= 0 {
		return
	}
	mem.unpin(ptr)
}

// Leak transfers ownership of buffer to whatever receives the returned pair.
// The arena will never free it on its own: the receiver must eventually
// request release via Free. An empty buffer leaks as the zero Buffer so the
// "null-or-empty means no data" convention holds.
func Leak(buffer []byte) wasm.Buffer {
	if len(buffer) == 0 {
		return 0
	}
	ptr := mem.pin(buffer)
	return wasm.Pack(ptr, uint32(len(buffer)))
}

// read copies size bytes of guest memory at ptr. Buffers passed into the
// guest are read-only; the copy keeps that contract. Null or empty regions
// yield nil. Pointers the arena allocated are served from its pin table;
// anything else is read straight out of linear memory.
func read(ptr uint32, size int32) []byte {
	if ptr == 0 || size <= 0 {
		return nil
	}

	mem.mu.Lock()
	buffer, ok := mem.pinned[ptr]
	mem.mu.Unlock()

	if ok && len(buffer) >= int(size) {
		return append([]byte{}, buffer[:size]...)
	}
	return wasm.Pack(ptr, uint32(size)).Slice()
}

func (a *arena) pin(buffer []byte) uint32 {
	ptr := uint32(uintptr(unsafe.Pointer(&buffer[0])))

	a.mu.Lock()
	a.pinned[ptr] = buffer
	a.mu.Unlock()

	return ptr
}

func (a *arena) unpin(ptr uint32) {
	a.mu.Lock()
	delete(a.pinned, ptr)
	a.mu.Unlock()
}
