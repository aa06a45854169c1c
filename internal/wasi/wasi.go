// Package wasi compiles and instantiates guest modules with wazero and exposes
// the calling conventions of the boundary: writing payloads into guest memory
// through the module's allocate export, invoking route exports, and reading
// packed (pointer, length) results back out.
package wasi

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/davidmdm/x/xerr"

	"github.com/relaydb/wasmlib/internal"
)

type CompileParams struct {
	Wasm     []byte
	CacheDir string
}

type Module struct {
	wazero.CompiledModule
	wazero.Runtime
}

func Compile(ctx context.Context, params CompileParams) (Module, error) {
	defer internal.DebugTimer(ctx, "wasm compile")()

	cfg := wazero.
		NewRuntimeConfig().
		WithCloseOnContextDone(true)

	if params.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(params.CacheDir)
		if err != nil {
			return Module{}, fmt.Errorf("failed to instantiate compilation cache: %w", err)
		}
		cfg = cfg.WithCompilationCache(cache)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)

	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	mod, err := runtime.CompileModule(ctx, params.Wasm)
	if err != nil {
		return Module{}, xerr.MultiErrFrom("", err, runtime.Close(ctx))
	}

	return Module{Runtime: runtime, CompiledModule: mod}, nil
}

func (mod Module) Close(ctx context.Context) error {
	return xerr.MultiErrFrom("",
		func() error {
			if mod.CompiledModule == nil {
				return nil
			}
			return mod.CompiledModule.Close(ctx)
		}(),
		func() error {
			if mod.Runtime == nil {
				return nil
			}
			return mod.Runtime.Close(ctx)
		}(),
	)
}

type InstantiateParams struct {
	Name string
	Env  map[string]string
}

// Instantiate creates a live instance of the module without invoking a start
// function; guest modules are reactors, initialized via their _initialize
// export when present. Stderr is captured so that guest panics surface in
// errors rather than vanishing.
func (mod Module) Instantiate(ctx context.Context, params InstantiateParams) (*Instance, error) {
	defer internal.DebugTimer(ctx, "instantiate wasm module")()

	stderr := new(bytes.Buffer)

	cfg := wazero.
		NewModuleConfig().
		WithName(params.Name).
		WithStderr(stderr).
		WithRandSource(rand.Reader).
		WithSysNanosleep().
		WithSysNanotime().
		WithSysWalltime().
		WithStartFunctions()

	for key, value := range params.Env {
		cfg = cfg.WithEnv(key, value)
	}

	module, err := mod.InstantiateModule(ctx, mod.CompiledModule, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w%s", err, stderrDetails(stderr))
	}

	instance := &Instance{module: module, stderr: stderr}

	if initialize := module.ExportedFunction("_initialize"); initialize != nil {
		if _, err := initialize.Call(ctx); err != nil {
			return nil, xerr.MultiErrFrom("",
				fmt.Errorf("failed to initialize module: %w%s", err, stderrDetails(stderr)),
				module.Close(ctx),
			)
		}
	}

	return instance, nil
}

func stderrDetails(stderr *bytes.Buffer) string {
	if stderr.Len() == 0 {
		return ""
	}
	return ": stderr: " + stderr.String()
}
