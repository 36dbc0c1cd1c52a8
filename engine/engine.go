package engine

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

//go:embed quickjs.wasm
var quickjsWasm []byte

// HostFunc handles a guest call into the host. args are borrowed for the
// duration of the call; the returned value transfers ownership to the guest.
type HostFunc func(ctx context.Context, jsctx ContextPtr, args []ValuePtr) ValuePtr

// FinalizeFunc is invoked when the guest garbage-collects an embedded
// resource object. handle is the pin-table handle stored in the object.
type FinalizeFunc func(handle int32)

// LoadModuleFunc resolves an import specifier to module source. ok=false
// makes the guest import fail with a resolvable error.
type LoadModuleFunc func(ctx context.Context, jsctx ContextPtr, name string) (source string, ok bool)

// RejectionFunc observes unhandled (and later-handled) promise rejections.
// promise and reason are borrowed for the duration of the call; the shim
// frees them afterwards. Dup them to keep them.
type RejectionFunc func(ctx context.Context, jsctx ContextPtr, promise, reason ValuePtr, handled bool)

// Engine runs the QuickJS shim inside a wazero runtime and exposes its
// exports as typed calls. One Engine owns one guest JSRuntime; contexts are
// created on top of it. An Engine is confined to a single owning goroutine,
// except for callback registration which is mutex-guarded.
type Engine struct {
	wasmRT wazero.Runtime
	cache  wazero.CompilationCache
	mod    api.Module
	mem    api.Memory
	exp    *exports

	rt RuntimePtr

	mu         sync.Mutex
	nextFuncID int32
	callbacks  map[int32]HostFunc

	finalize   FinalizeFunc
	loadModule LoadModuleFunc
	rejection  RejectionFunc

	resourceClass ClassID
	closed        bool
}

// New boots the shim and creates the guest runtime.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	e := &Engine{
		wasmRT:    rt,
		cache:     cache,
		callbacks: make(map[int32]HostFunc),
	}

	fail := func(err error) (*Engine, error) {
		rt.Close(ctx)
		if cache != nil {
			cache.Close(ctx)
		}
		return nil, err
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return fail(fmt.Errorf("instantiate WASI: %w", err))
	}

	if err := e.instantiateHostModule(ctx, rt); err != nil {
		return fail(fmt.Errorf("instantiate host module: %w", err))
	}

	wasm := cfg.wasm
	if wasm == nil {
		wasm = quickjsWasm
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName("quickjs").
		WithStartFunctions("_initialize")

	mod, err := rt.InstantiateWithConfig(ctx, wasm, moduleConfig)
	if err != nil {
		return fail(fmt.Errorf("instantiate shim: %w", err))
	}
	e.mod = mod
	e.mem = mod.Memory()

	exp, err := resolveExports(mod)
	if err != nil {
		return fail(err)
	}
	e.exp = exp

	res, err := exp.newRuntime.Call(ctx)
	if err != nil {
		return fail(fmt.Errorf("create runtime: %w", err))
	}
	e.rt = RuntimePtr(int32(uint32(res[0])))
	if e.rt.IsNull() {
		return fail(fmt.Errorf("create runtime: shim returned null"))
	}

	return e, nil
}

// RegisterCallback adds fn to the dispatch table and returns its id. Entries
// live until ClearCallbacks; individual removal is not supported because the
// guest may hold function objects bound to the id indefinitely.
func (e *Engine) RegisterCallback(fn HostFunc) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextFuncID++
	id := e.nextFuncID
	e.callbacks[id] = fn
	return id
}

// ClearCallbacks drops every registered callback. Only valid when no guest
// code that could call them is reachable anymore (context reset or teardown).
func (e *Engine) ClearCallbacks() {
	e.mu.Lock()
	e.callbacks = make(map[int32]HostFunc)
	e.mu.Unlock()
}

func (e *Engine) lookupCallback(id int32) (HostFunc, bool) {
	e.mu.Lock()
	fn, ok := e.callbacks[id]
	e.mu.Unlock()
	return fn, ok
}

// SetFinalizeHook installs the resource finalizer dispatch target.
func (e *Engine) SetFinalizeHook(fn FinalizeFunc) { e.finalize = fn }

// SetModuleLoaderHook installs the module source resolver and switches the
// guest runtime to host-driven module loading.
func (e *Engine) SetModuleLoaderHook(ctx context.Context, fn LoadModuleFunc) error {
	e.loadModule = fn
	_, err := e.exp.enableModuleLoader.Call(ctx, e.rtArg())
	if err != nil {
		return fmt.Errorf("enable module loader: %w", err)
	}
	return nil
}

// SetRejectionHook installs the promise rejection observer. Passing nil
// detaches the host observer but leaves the guest tracker armed; rejections
// are then dropped.
func (e *Engine) SetRejectionHook(ctx context.Context, fn RejectionFunc) error {
	e.rejection = fn
	if fn == nil {
		return nil
	}
	_, err := e.exp.enableRejectionTracker.Call(ctx, e.rtArg())
	if err != nil {
		return fmt.Errorf("enable rejection tracker: %w", err)
	}
	return nil
}

// Close tears down the guest runtime and the wazero runtime. Idempotent.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if !e.rt.IsNull() {
		if _, err := e.exp.freeRuntime.Call(ctx, e.rtArg()); err != nil {
			errs = append(errs, fmt.Errorf("free runtime: %w", err))
		}
		e.rt = 0
	}
	if err := e.wasmRT.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (e *Engine) rtArg() uint64 { return u32(int32(e.rt)) }

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "quickjs")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "quickjs")
	}
	return filepath.Join(os.TempDir(), "quickjs-cache")
}
