package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// Context is a guest evaluation context plus the host-side state attached to
// it: the callback registry, the resource pin table, the module loader, and
// the rejection tracker. A Context is confined to one owning goroutine.
type Context struct {
	eng *engine.Engine
	ptr engine.ContextPtr

	resources  map[int32]*value.Resource
	nextHandle int32

	loader  ModuleLoader
	tracker RejectionTracker
	console consoleBackend
}

// New boots a fresh runtime and creates a context on it.
func New(ctx context.Context, opts ...Option) (*Context, error) {
	cfg := defaultContextConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	eng, err := engine.New(ctx, cfg.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeCreation, err)
	}

	c := &Context{
		eng:       eng,
		resources: make(map[int32]*value.Resource),
	}

	// GC finalizers only unpin; they must not re-enter the engine.
	eng.SetFinalizeHook(func(handle int32) {
		delete(c.resources, handle)
	})

	ptr, err := eng.NewContext(ctx)
	if err != nil {
		eng.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrContextCreation, err)
	}
	c.ptr = ptr

	if cfg.memoryLimit > 0 {
		if err := eng.SetMemoryLimit(ctx, cfg.memoryLimit); err != nil {
			c.Close(ctx)
			return nil, fmt.Errorf("%w: %v", ErrContextCreation, err)
		}
	}
	if cfg.loader != nil {
		if err := c.SetModuleLoader(ctx, cfg.loader); err != nil {
			c.Close(ctx)
			return nil, err
		}
	}
	if cfg.console != nil {
		c.console = cfg.console
		if err := c.installConsole(ctx); err != nil {
			c.Close(ctx)
			return nil, err
		}
	}

	return c, nil
}

// Engine exposes the underlying engine for advanced embedding.
func (c *Context) Engine() *engine.Engine { return c.eng }

// EvalOption adjusts a single evaluation.
type EvalOption func(*evalConfig)

type evalConfig struct {
	filename string
	module   bool
}

// WithFilename sets the script name used in stack traces.
func WithFilename(name string) EvalOption {
	return func(c *evalConfig) {
		c.filename = name
	}
}

// AsModule evaluates the code as an ES module instead of a script.
func AsModule() EvalOption {
	return func(c *evalConfig) {
		c.module = true
	}
}

// Eval runs code and returns the resolved result. Plain objects come back as
// Opaque references; use Properties to expand them. Promises are returned as
// Opaque values without being awaited; drive them with ExecutePendingJob.
func (c *Context) Eval(ctx context.Context, code string, opts ...EvalOption) (value.Value, error) {
	cfg := evalConfig{filename: "script.js"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if strings.ContainsRune(cfg.filename, 0) {
		return value.Value{}, fmt.Errorf("filename: %w", value.ErrNulByte)
	}

	flags := int32(engine.EvalGlobal)
	if cfg.module {
		flags = engine.EvalModule
	}

	raw, err := c.eng.Eval(ctx, c.ptr, code, cfg.filename, flags)
	if err != nil {
		return value.Value{}, err
	}
	return c.resolveValue(ctx, raw)
}

// resolveValue classifies and converts a raw evaluation result, consuming it.
func (c *Context) resolveValue(ctx context.Context, raw engine.ValuePtr) (value.Value, error) {
	tag, err := c.eng.GetTag(ctx, raw)
	if err != nil {
		c.eng.FreeValue(ctx, c.ptr, raw)
		return value.Value{}, err
	}
	if tag == engine.TagException {
		c.eng.FreeValue(ctx, c.ptr, raw)
		return value.Value{}, c.pendingException(ctx)
	}

	v, err := c.deserialize(ctx, raw)
	c.eng.FreeValue(ctx, c.ptr, raw)
	return v, err
}

// pendingException takes the context's pending exception and turns it into
// an error. Exceptions whose string form names an out of memory condition
// collapse to ErrOutOfMemory.
func (c *Context) pendingException(ctx context.Context) error {
	exc, err := c.eng.GetException(ctx, c.ptr)
	if err != nil {
		return err
	}
	defer c.eng.FreeValue(ctx, c.ptr, exc)

	var message string
	if msg, err := c.eng.ToStringBytes(ctx, c.ptr, exc); err == nil {
		message = string(msg)
		if strings.Contains(message, "out of memory") {
			return ErrOutOfMemory
		}
	}

	v, err := c.deserialize(ctx, exc)
	if err != nil {
		return fmt.Errorf("convert exception: %w", err)
	}
	return &GuestError{Value: v, Message: message}
}

// ExecutePendingJob runs at most one queued microtask or module job. It
// reports whether a job ran; a job that threw surfaces as an error.
func (c *Context) ExecutePendingJob(ctx context.Context) (bool, error) {
	status, err := c.eng.ExecutePendingJob(ctx)
	if err != nil {
		return false, err
	}
	switch {
	case status > 0:
		return true, nil
	case status == 0:
		return false, nil
	default:
		return false, c.pendingException(ctx)
	}
}

// Drain runs pending jobs until the queue is empty, stopping at the first
// failing job.
func (c *Context) Drain(ctx context.Context) error {
	for {
		ran, err := c.ExecutePendingJob(ctx)
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
	}
}

// Global returns the global object as an Opaque reference.
func (c *Context) Global(ctx context.Context) (value.Value, error) {
	raw, err := c.eng.GetGlobalObject(ctx, c.ptr)
	if err != nil {
		return value.Value{}, err
	}
	return value.Opaque(c.newRef(raw)), nil
}

// SetGlobal binds v under name on the global object.
func (c *Context) SetGlobal(ctx context.Context, name string, v value.Value) error {
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("global name: %w", value.ErrNulByte)
	}

	raw, err := c.serialize(ctx, v)
	if err != nil {
		return err
	}

	global, err := c.eng.GetGlobalObject(ctx, c.ptr)
	if err != nil {
		c.eng.FreeValue(ctx, c.ptr, raw)
		return err
	}
	defer c.eng.FreeValue(ctx, c.ptr, global)

	status, err := c.eng.SetProperty(ctx, c.ptr, global, name, raw)
	if err != nil {
		return err
	}
	if status < 0 {
		return c.pendingException(ctx)
	}
	return nil
}

// GetGlobal reads a binding from the global object.
func (c *Context) GetGlobal(ctx context.Context, name string) (value.Value, error) {
	global, err := c.eng.GetGlobalObject(ctx, c.ptr)
	if err != nil {
		return value.Value{}, err
	}
	defer c.eng.FreeValue(ctx, c.ptr, global)

	raw, err := c.eng.GetProperty(ctx, c.ptr, global, name)
	if err != nil {
		return value.Value{}, err
	}
	return c.resolveValue(ctx, raw)
}

// CallFunction invokes a callable Opaque value with the given arguments.
func (c *Context) CallFunction(ctx context.Context, fn value.Value, args ...value.Value) (value.Value, error) {
	ref, err := c.ownRef(fn)
	if err != nil {
		return value.Value{}, err
	}

	rawArgs := make([]engine.ValuePtr, 0, len(args))
	free := func() {
		for _, ra := range rawArgs {
			c.eng.FreeValue(ctx, c.ptr, ra)
		}
	}
	for _, a := range args {
		ra, err := c.serialize(ctx, a)
		if err != nil {
			free()
			return value.Value{}, err
		}
		rawArgs = append(rawArgs, ra)
	}

	this, err := c.eng.NewUndefined(ctx, c.ptr)
	if err != nil {
		free()
		return value.Value{}, err
	}

	raw, err := c.eng.Call(ctx, c.ptr, ref.handle, this, rawArgs)
	c.eng.FreeValue(ctx, c.ptr, this)
	free()
	if err != nil {
		return value.Value{}, err
	}
	return c.resolveValue(ctx, raw)
}

// Properties fully expands an Opaque object into its own enumerable string
// and symbol keyed properties.
func (c *Context) Properties(ctx context.Context, v value.Value) (map[string]value.Value, error) {
	ref, err := c.ownRef(v)
	if err != nil {
		return nil, err
	}
	return c.deserializeObject(ctx, ref.handle)
}

// Reset tears down the guest context and creates a fresh one on the same
// runtime. Registered callbacks and pinned resources are dropped; the module
// loader and memory limit live on the runtime and survive. The console shim
// is reinstalled when one was configured.
func (c *Context) Reset(ctx context.Context) error {
	if err := c.eng.FreeContext(ctx, c.ptr); err != nil {
		return err
	}
	c.ptr = 0
	c.eng.ClearCallbacks()
	c.resources = make(map[int32]*value.Resource)

	ptr, err := c.eng.NewContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContextCreation, err)
	}
	c.ptr = ptr

	if c.console != nil {
		return c.installConsole(ctx)
	}
	return nil
}

// Close releases the context and the runtime under it. The rejection tracker
// is detached first so teardown cannot fire it.
func (c *Context) Close(ctx context.Context) error {
	c.tracker = nil
	c.eng.SetRejectionHook(ctx, nil)

	if !c.ptr.IsNull() {
		if err := c.eng.FreeContext(ctx, c.ptr); err != nil {
			return err
		}
		c.ptr = 0
	}
	return c.eng.Close(ctx)
}

// ToString renders v the way guest code would (String(v)). Opaque and
// Exception references are converted inside the guest; plain host values use
// their host rendering.
func (c *Context) ToString(ctx context.Context, v value.Value) (string, error) {
	if s, ok := v.AsString(); ok {
		return s, nil
	}
	ref, err := c.ownRef(v)
	if err != nil {
		return v.String(), nil
	}
	b, err := c.eng.ToStringBytes(ctx, c.ptr, ref.handle)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RunGC forces a guest garbage collection pass.
func (c *Context) RunGC(ctx context.Context) error {
	return c.eng.RunGC(ctx)
}
