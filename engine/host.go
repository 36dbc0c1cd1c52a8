package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// instantiateHostModule builds the "env" module the shim imports for
// guest-to-host re-entry: callback dispatch, resource finalization, module
// loading, and promise rejection tracking.
func (e *Engine) instantiateHostModule(ctx context.Context, rt wazero.Runtime) error {
	i32t := api.ValueTypeI32

	_, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostCall),
			[]api.ValueType{i32t, i32t, i32t, i32t}, []api.ValueType{i32t}).
		Export("host_call").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostFinalize),
			[]api.ValueType{i32t}, nil).
		Export("host_finalize").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostLoadModule),
			[]api.ValueType{i32t, i32t, i32t}, []api.ValueType{i32t}).
		Export("host_load_module").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostPromiseRejection),
			[]api.ValueType{i32t, i32t, i32t, i32t}, nil).
		Export("host_promise_rejection").
		Instantiate(ctx)
	return err
}

// hostCall dispatches a guest call to a registered callback. Returning a
// null handle makes the shim throw a generic host failure in the guest; the
// callbacks themselves throw richer errors through Throw before returning.
func (e *Engine) hostCall(ctx context.Context, _ api.Module, stack []uint64) {
	jsctx := ContextPtr(i32(stack[0]))
	funcID := i32(stack[1])
	argc := i32(stack[2])
	argv := uint32(stack[3])

	fn, ok := e.lookupCallback(funcID)
	if !ok {
		stack[0] = 0
		return
	}

	args := make([]ValuePtr, argc)
	for i := int32(0); i < argc; i++ {
		raw, err := e.readUint32(argv + uint32(i)*4)
		if err != nil {
			stack[0] = 0
			return
		}
		args[i] = ValuePtr(int32(raw))
	}

	stack[0] = u32(int32(fn(ctx, jsctx, args)))
}

func (e *Engine) hostFinalize(_ context.Context, _ api.Module, stack []uint64) {
	if e.finalize != nil {
		e.finalize(i32(stack[0]))
	}
}

// hostLoadModule resolves a module specifier through the loader hook. The
// returned source is allocated in guest memory with a trailing NUL; the shim
// takes ownership and frees it after compiling. A null return fails the
// import in the guest.
func (e *Engine) hostLoadModule(ctx context.Context, _ api.Module, stack []uint64) {
	jsctx := ContextPtr(i32(stack[0]))
	namePtr := uint32(stack[1])
	nameLen := uint32(stack[2])

	stack[0] = 0
	if e.loadModule == nil {
		return
	}

	name, err := e.readBytes(namePtr, nameLen)
	if err != nil {
		return
	}

	source, ok := e.loadModule(ctx, jsctx, string(name))
	if !ok {
		return
	}

	srcPtr, err := e.allocCString(ctx, source)
	if err != nil {
		return
	}
	stack[0] = uint64(srcPtr)
}

// hostPromiseRejection forwards a tracker notification. promise and reason
// are borrowed for the duration of the call; the shim frees them afterwards.
func (e *Engine) hostPromiseRejection(ctx context.Context, _ api.Module, stack []uint64) {
	if e.rejection == nil {
		return
	}
	e.rejection(ctx,
		ContextPtr(i32(stack[0])),
		ValuePtr(i32(stack[1])),
		ValuePtr(i32(stack[2])),
		i32(stack[3]) != 0,
	)
}
