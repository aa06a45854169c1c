package guest

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relaydb/wasmlib/internal/wasm"
	"github.com/relaydb/wasmlib/pkg/wire"
)

// Library combines a module's schema with its static route table. It is
// immutable after construction: no route may be added or removed while the
// module is resident. The encoded manifest is built lazily on first use and
// cached for the lifetime of the instance.
type Library struct {
	schema   wire.Schema
	routes   []wire.RouteExport
	manifest func() []byte
}

// NewLibrary builds a library from its schema and route table. Dependencies
// are normalized so that a schema without any still renders an empty list
// rather than the null token.
func NewLibrary(schema wire.Schema, routes ...wire.RouteExport) *Library {
	if schema.Dependencies == nil {
		schema.Dependencies = []string{}
	}

	lib := &Library{
		schema: schema,
		routes: append([]wire.RouteExport{}, routes...),
	}
	lib.manifest = sync.OnceValue(lib.buildManifest)
	return lib
}

func (lib *Library) Schema() wire.Schema { return lib.schema }

func (lib *Library) Routes() []wire.RouteExport {
	return append([]wire.RouteExport{}, lib.routes...)
}

// ManifestBytes returns the encoded manifest document. The manifest is built
// from static, compile-time data, so an encoding failure is a programmer
// error and panics rather than returning a recoverable error.
func (lib *Library) ManifestBytes() []byte {
	return lib.manifest()
}

func (lib *Library) buildManifest() []byte {
	data, err := json.Marshal(wire.Manifest{Schema: lib.schema, Routes: lib.routes})
	if err != nil {
		panic(fmt.Sprintf("guest: failed to encode manifest: %v", err))
	}
	return data
}

// library is the module's registered Library. Process-wide with a single
// initialization and no teardown: the instance's address space is reclaimed
// by the host when the module is unloaded.
var library atomic.Pointer[Library]

// Init registers the module's library. A guest module calls it once from an
// init function so that the module_manifest export can serve the manifest.
func Init(lib *Library) {
	library.Store(lib)
}

// ManifestBuffer leaks the encoded manifest and returns its packed
// (pointer, length) pair. Without a registered library there is no manifest
// to describe and the zero Buffer is returned.
func ManifestBuffer() wasm.Buffer {
	lib := library.Load()
	if lib == nil {
		return 0
	}
	return Leak(lib.ManifestBytes())
}
