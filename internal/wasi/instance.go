package wasi

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/relaydb/wasmlib/internal/wasm"
)

// Export names every guest module carries regardless of its route table.
const (
	exportAllocate = "allocate"
	exportRelease  = "release"
	exportManifest = "module_manifest"
)

// Instance is a live guest module. It is not safe for concurrent calls; the
// boundary provides no cross-call scheduler, so the mutex serializes calls
// into this instance the way the protocol expects the host to.
type Instance struct {
	module api.Module
	stderr *bytes.Buffer
	mu     sync.Mutex
}

func (instance *Instance) Close(ctx context.Context) error {
	return instance.module.Close(ctx)
}

// Manifest calls the module_manifest export and copies the encoded manifest
// out of guest memory, releasing the guest buffer once read.
func (instance *Instance) Manifest(ctx context.Context) ([]byte, error) {
	instance.mu.Lock()
	defer instance.mu.Unlock()

	fn := instance.module.ExportedFunction(exportManifest)
	if fn == nil {
		return nil, fmt.Errorf("module does not export %q", exportManifest)
	}

	results, err := fn.Call(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w%s", exportManifest, err, stderrDetails(instance.stderr))
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("%s returned %d values, want a packed buffer", exportManifest, len(results))
	}

	return instance.readAndRelease(ctx, wasm.Buffer(results[0]))
}

// Call writes the header and body into guest memory, invokes the route's
// export, and copies the response payload back out. All guest buffers - the
// two inputs and the returned payload - are released before returning: the
// host must request release of everything it owns or guest memory grows
// unbounded.
func (instance *Instance) Call(ctx context.Context, export string, header, body []byte) ([]byte, error) {
	instance.mu.Lock()
	defer instance.mu.Unlock()

	fn := instance.module.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("module does not export %q", export)
	}

	headerPtr, err := instance.write(ctx, header)
	if err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	defer instance.release(ctx, headerPtr, uint32(len(header)))

	bodyPtr, err := instance.write(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	defer instance.release(ctx, bodyPtr, uint32(len(body)))

	results, err := fn.Call(ctx,
		uint64(headerPtr), uint64(uint32(len(header))),
		uint64(bodyPtr), uint64(uint32(len(body))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w%s", export, err, stderrDetails(instance.stderr))
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("%s returned %d values, want a packed buffer", export, len(results))
	}

	return instance.readAndRelease(ctx, wasm.Buffer(results[0]))
}

// write allocates guest memory via the allocate export and copies data into
// it. Empty payloads are passed as the null region without any allocation.
func (instance *Instance) write(ctx context.Context, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}

	alloc := instance.module.ExportedFunction(exportAllocate)
	if alloc == nil {
		return 0, fmt.Errorf("module does not export %q", exportAllocate)
	}

	results, err := alloc.Call(ctx, uint64(uint32(len(data))))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %d bytes: %w", len(data), err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("%s returned %d values, want an address", exportAllocate, len(results))
	}

	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocator returned null for %d bytes", len(data))
	}

	if !instance.module.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write %d bytes at %d: out of bounds", len(data), ptr)
	}
	return ptr, nil
}

// readAndRelease copies a guest-owned buffer out of linear memory and then
// releases it. From the moment the guest leaked it, the buffer is exclusively
// ours; release is how we signal completion.
func (instance *Instance) readAndRelease(ctx context.Context, buffer wasm.Buffer) ([]byte, error) {
	if buffer.IsEmpty() {
		return nil, nil
	}
	defer instance.release(ctx, buffer.Address(), buffer.Length())

	data, ok := instance.module.Memory().Read(buffer.Address(), buffer.Length())
	if !ok {
		return nil, fmt.Errorf("failed to read %d bytes at %d: out of bounds", buffer.Length(), buffer.Address())
	}
	return append([]byte{}, data...), nil
}

func (instance *Instance) release(ctx context.Context, ptr, length uint32) {
	if ptr == 0 || length == 0 {
		return
	}
	if free := instance.module.ExportedFunction(exportRelease); free != nil {
		_, _ = free.Call(ctx, uint64(ptr), uint64(length))
	}
}
