package host

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaydb/wasmlib/internal/wasi"
	"github.com/relaydb/wasmlib/pkg/wire"
)

// The tests below run against a hand-assembled guest module rather than a
// prebuilt binary: a bump allocator, a no-op release, and constant-returning
// module_manifest and route exports over a data segment. Small enough to
// encode by hand, real enough to drive the whole allocate/write/invoke/read
// dance through wazero.

const (
	guestDataStart = 8
	guestHeapStart = 4096
)

type guestModule struct {
	manifest []byte
	response []byte
	failure  []byte

	// brokenAllocator builds the allocate export without a result, modelling
	// a module that violates the allocation contract.
	brokenAllocator bool
}

func (g guestModule) assemble() []byte {
	data := concat(g.manifest, g.response, g.failure)

	manifestPtr := guestDataStart
	responsePtr := manifestPtr + len(g.manifest)
	failurePtr := responsePtr + len(g.response)

	types := vec(5, concat(
		[]byte{0x60, 0x00, 0x01, 0x7E}, // () -> i64
		[]byte{0x60, 0x01, 0x7F, 0x01, 0x7F}, // (i32) -> i32
		[]byte{0x60, 0x02, 0x7F, 0x7F, 0x00}, // (i32, i32) -> ()
		[]byte{0x60, 0x04, 0x7F, 0x7F, 0x7F, 0x7F, 0x01, 0x7E}, // (i32 x4) -> i64
		[]byte{0x60, 0x01, 0x7F, 0x00}, // (i32) -> ()
	))

	allocType := byte(1)
	allocBody := funcBody(
		[]byte{0x01, 0x01, 0x7F}, // one scratch i32 local
		[]byte{
			0x23, 0x00, // global.get heap
			0x21, 0x01, // local.set scratch
			0x23, 0x00, // global.get heap
			0x20, 0x00, // local.get size
			0x6A,       // i32.add
			0x24, 0x00, // global.set heap
			0x20, 0x01, // local.get scratch
			0x0B,
		},
	)
	if g.brokenAllocator {
		allocType = 4
		allocBody = funcBody([]byte{0x00}, []byte{0x0B})
	}

	funcs := vec(5, []byte{allocType, 2, 0, 3, 3})

	memory := vec(1, []byte{0x00, 0x01}) // one page, no max

	global := vec(1, concat([]byte{0x7F, 0x01, 0x41}, sleb(guestHeapStart), []byte{0x0B}))

	exports := vec(6, concat(
		exportName("memory"), []byte{0x02, 0x00},
		exportName("allocate"), []byte{0x00, 0x00},
		exportName("release"), []byte{0x00, 0x01},
		exportName("module_manifest"), []byte{0x00, 0x02},
		exportName("hello"), []byte{0x00, 0x03},
		exportName("fail"), []byte{0x00, 0x04},
	))

	code := vec(5, concat(
		allocBody,
		funcBody([]byte{0x00}, []byte{0x0B}), // release is a no-op
		funcBody([]byte{0x00}, append(i64Const(manifestPtr, len(g.manifest)), 0x0B)),
		funcBody([]byte{0x00}, append(i64Const(responsePtr, len(g.response)), 0x0B)),
		funcBody([]byte{0x00}, append(i64Const(failurePtr, len(g.failure)), 0x0B)),
	))

	segment := vec(1, concat(
		[]byte{0x00, 0x41}, sleb(guestDataStart), []byte{0x0B},
		uleb(uint64(len(data))), data,
	))

	return concat(
		emptyModule, // magic + version
		wasmSection(1, types),
		wasmSection(3, funcs),
		wasmSection(5, memory),
		wasmSection(6, global),
		wasmSection(7, exports),
		wasmSection(10, code),
		wasmSection(11, segment),
	)
}

func wasmSection(id byte, content []byte) []byte {
	return concat([]byte{id}, uleb(uint64(len(content))), content)
}

func vec(count int, content []byte) []byte {
	return concat(uleb(uint64(count)), content)
}

func exportName(s string) []byte {
	return concat(uleb(uint64(len(s))), []byte(s))
}

func funcBody(locals, instrs []byte) []byte {
	content := concat(locals, instrs)
	return concat(uleb(uint64(len(content))), content)
}

// i64Const encodes an i64.const of the packed (pointer, length) pair.
func i64Const(ptr, length int) []byte {
	return append([]byte{0x42}, sleb(int64(uint64(ptr)<<32|uint64(length)))...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

func testGuestManifest(t *testing.T) []byte {
	t.Helper()

	manifest, err := json.Marshal(wire.Manifest{
		Schema: wire.Schema{ID: "/lib/test", Version: "0.1.0", Dependencies: []string{}},
		Routes: []wire.RouteExport{
			{Path: "/hello", Export: "hello"},
			{Path: "/fail", Export: "fail"},
		},
	})
	require.NoError(t, err)
	return manifest
}

func TestClientCallRoundTrip(t *testing.T) {
	ctx := context.Background()

	guest := guestModule{
		manifest: testGuestManifest(t),
		response: []byte(`"hi"`),
		failure:  wire.ErrorPayload("boom"),
	}

	binary := guest.assemble()
	require.NoError(t, ValidatePreamble(binary))

	mod, err := wasi.Compile(ctx, wasi.CompileParams{Wasm: binary})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, mod.Close(ctx)) })

	client, err := NewClient(ctx, ClientParams{Module: mod, Name: "test-guest"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, client.Close(ctx)) })

	manifest := client.Manifest()
	require.Equal(t, "/lib/test", manifest.Schema.ID)
	require.Equal(t, "0.1.0", manifest.Schema.Version)

	export, ok := manifest.Route("/hello")
	require.True(t, ok)
	require.Equal(t, "hello", export)

	header := wire.Header{ID: "txn-1", Timestamp: 1700000000}

	t.Run("successful call", func(t *testing.T) {
		response, err := client.Call(ctx, "/hello", header, []byte(`"World"`))
		require.NoError(t, err)

		text, err := wire.DecodeText(response)
		require.NoError(t, err)
		require.Equal(t, "hi", text)
	})

	t.Run("error payload surfaces as route error", func(t *testing.T) {
		_, err := client.Call(ctx, "/fail", header, nil)

		var routeErr RouteError
		require.ErrorAs(t, err, &routeErr)
		require.Equal(t, "/fail", routeErr.Route)
		require.Equal(t, "boom", routeErr.Message)
	})

	t.Run("unknown route", func(t *testing.T) {
		_, err := client.Call(ctx, "/missing", header, nil)
		require.ErrorContains(t, err, "does not expose route")
	})
}

func TestClientCallBrokenAllocator(t *testing.T) {
	ctx := context.Background()

	guest := guestModule{
		manifest:        testGuestManifest(t),
		response:        []byte(`"hi"`),
		failure:         wire.ErrorPayload("boom"),
		brokenAllocator: true,
	}

	mod, err := wasi.Compile(ctx, wasi.CompileParams{Wasm: guest.assemble()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, mod.Close(ctx)) })

	// The manifest export allocates nothing, so the client still comes up.
	client, err := NewClient(ctx, ClientParams{Module: mod, Name: "broken-alloc"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, client.Close(ctx)) })

	_, err = client.Call(ctx, "/hello", wire.Header{ID: "txn-1", Timestamp: 1}, nil)
	require.ErrorContains(t, err, "allocate returned 0 values")
}
