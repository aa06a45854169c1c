package host

import (
	"context"
	"sync"

	"github.com/davidmdm/x/xerr"
	"github.com/davidmdm/x/xsync"

	"github.com/relaydb/wasmlib/internal"
	"github.com/relaydb/wasmlib/internal/wasi"
)

// ModuleCache compiles guest modules at most once per content, keyed by a
// hash of the module bytes. Compilation is the expensive step; instances stay
// cheap and callers create one per concurrent caller via NewClient.
type ModuleCache struct {
	mods     *xsync.Map[string, *cachedModule]
	cacheDir string
}

type cachedModule struct {
	mu  sync.Mutex
	mod *wasi.Module
}

// NewModuleCache creates a cache. cacheDir, when non-empty, also enables
// wazero's on-disk compilation cache.
func NewModuleCache(cacheDir string) *ModuleCache {
	return &ModuleCache{
		mods:     new(xsync.Map[string, *cachedModule]),
		cacheDir: cacheDir,
	}
}

// Get returns the compiled module for source, compiling it on first sight.
// Concurrent callers for the same content share one compilation.
func (cache *ModuleCache) Get(ctx context.Context, source []byte) (wasi.Module, error) {
	entry, _ := cache.mods.LoadOrStore(internal.SHA256HexString(source), &cachedModule{})

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.mod != nil {
		return *entry.mod, nil
	}

	mod, err := wasi.Compile(ctx, wasi.CompileParams{Wasm: source, CacheDir: cache.cacheDir})
	if err != nil {
		return wasi.Module{}, err
	}

	entry.mod = &mod
	return mod, nil
}

// Close releases every compiled module in the cache.
func (cache *ModuleCache) Close(ctx context.Context) error {
	var errs []error
	for key, entry := range cache.mods.All() {
		entry.mu.Lock()
		if entry.mod != nil {
			errs = append(errs, entry.mod.Close(ctx))
			entry.mod = nil
		}
		entry.mu.Unlock()
		cache.mods.Delete(key)
	}
	return xerr.MultiErrFrom("failed to close module cache", errs...)
}
