package engine

import (
	"context"
	"fmt"
	"math"
)

// NewContext creates a fresh guest context on the engine's runtime.
func (e *Engine) NewContext(ctx context.Context) (ContextPtr, error) {
	res, err := e.exp.newContext.Call(ctx, e.rtArg())
	if err != nil {
		return 0, fmt.Errorf("new context: %w", err)
	}
	c := ContextPtr(i32(res[0]))
	if c.IsNull() {
		return 0, fmt.Errorf("new context: shim returned null")
	}
	return c, nil
}

func (e *Engine) FreeContext(ctx context.Context, c ContextPtr) error {
	_, err := e.exp.freeContext.Call(ctx, u32(int32(c)))
	return err
}

// SetMemoryLimit caps the guest heap in bytes. Applies runtime-wide.
func (e *Engine) SetMemoryLimit(ctx context.Context, limit uint64) error {
	_, err := e.exp.setMemoryLimit.Call(ctx, e.rtArg(), limit)
	return err
}

func (e *Engine) RunGC(ctx context.Context) error {
	_, err := e.exp.runGC.Call(ctx, e.rtArg())
	return err
}

// ExecutePendingJob runs at most one queued job. Returns 1 when a job ran,
// 0 when the queue was empty, and a negative status when the job threw.
func (e *Engine) ExecutePendingJob(ctx context.Context) (int32, error) {
	res, err := e.exp.executePendingJob.Call(ctx, e.rtArg())
	if err != nil {
		return 0, fmt.Errorf("execute pending job: %w", err)
	}
	return i32(res[0]), nil
}

// Eval compiles and runs code under the given filename. flags selects global
// or module evaluation. The result may be the exception sentinel.
func (e *Engine) Eval(ctx context.Context, c ContextPtr, code, filename string, flags int32) (ValuePtr, error) {
	codePtr, err := e.allocBytes(ctx, []byte(code))
	if err != nil {
		return 0, err
	}
	defer e.freePtr(ctx, codePtr)

	namePtr, err := e.allocCString(ctx, filename)
	if err != nil {
		return 0, err
	}
	defer e.freePtr(ctx, namePtr)

	res, err := e.exp.eval.Call(ctx, u32(int32(c)), uint64(codePtr), uint64(len(code)), uint64(namePtr), u32(flags))
	if err != nil {
		return 0, fmt.Errorf("eval: %w", err)
	}
	return ValuePtr(i32(res[0])), nil
}

func (e *Engine) NewUndefined(ctx context.Context, c ContextPtr) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newUndefined, u32(int32(c)))
}

func (e *Engine) NewNull(ctx context.Context, c ContextPtr) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newNull, u32(int32(c)))
}

func (e *Engine) NewBool(ctx context.Context, c ContextPtr, b bool) (ValuePtr, error) {
	var v int32
	if b {
		v = 1
	}
	return e.value1(ctx, e.exp.newBool, u32(int32(c)), u32(v))
}

func (e *Engine) NewInt32(ctx context.Context, c ContextPtr, v int32) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newInt32, u32(int32(c)), u32(v))
}

func (e *Engine) NewFloat64(ctx context.Context, c ContextPtr, v float64) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newFloat64, u32(int32(c)), math.Float64bits(v))
}

func (e *Engine) NewString(ctx context.Context, c ContextPtr, s string) (ValuePtr, error) {
	ptr, err := e.allocBytes(ctx, []byte(s))
	if err != nil {
		return 0, err
	}
	defer e.freePtr(ctx, ptr)
	return e.value1(ctx, e.exp.newStringLen, u32(int32(c)), uint64(ptr), uint64(len(s)))
}

func (e *Engine) NewObject(ctx context.Context, c ContextPtr) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newObject, u32(int32(c)))
}

func (e *Engine) NewArray(ctx context.Context, c ContextPtr) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newArray, u32(int32(c)))
}

// NewDate builds a Date from a millisecond unix timestamp.
func (e *Engine) NewDate(ctx context.Context, c ContextPtr, epochMillis float64) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newDate, u32(int32(c)), math.Float64bits(epochMillis))
}

func (e *Engine) NewBigInt64(ctx context.Context, c ContextPtr, v int64) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newBigInt64, u32(int32(c)), uint64(v))
}

// SetProperty defines obj[key] = val with the usual writable/enumerable/
// configurable flags, consuming val. A negative status means the define threw.
func (e *Engine) SetProperty(ctx context.Context, c ContextPtr, obj ValuePtr, key string, val ValuePtr) (int32, error) {
	keyPtr, err := e.allocCString(ctx, key)
	if err != nil {
		return -1, err
	}
	defer e.freePtr(ctx, keyPtr)

	res, err := e.exp.setProperty.Call(ctx, u32(int32(c)), u32(int32(obj)), uint64(keyPtr), u32(int32(val)))
	if err != nil {
		return -1, fmt.Errorf("set property: %w", err)
	}
	return i32(res[0]), nil
}

// SetPropertyUint32 defines obj[idx] = val, consuming val.
func (e *Engine) SetPropertyUint32(ctx context.Context, c ContextPtr, obj ValuePtr, idx uint32, val ValuePtr) (int32, error) {
	res, err := e.exp.setPropertyUint32.Call(ctx, u32(int32(c)), u32(int32(obj)), uint64(idx), u32(int32(val)))
	if err != nil {
		return -1, fmt.Errorf("set property: %w", err)
	}
	return i32(res[0]), nil
}

func (e *Engine) GetProperty(ctx context.Context, c ContextPtr, obj ValuePtr, key string) (ValuePtr, error) {
	keyPtr, err := e.allocCString(ctx, key)
	if err != nil {
		return 0, err
	}
	defer e.freePtr(ctx, keyPtr)
	return e.value1(ctx, e.exp.getProperty, u32(int32(c)), u32(int32(obj)), uint64(keyPtr))
}

func (e *Engine) GetPropertyUint32(ctx context.Context, c ContextPtr, obj ValuePtr, idx uint32) (ValuePtr, error) {
	return e.value1(ctx, e.exp.getPropertyUint32, u32(int32(c)), u32(int32(obj)), uint64(idx))
}

func (e *Engine) GetGlobalObject(ctx context.Context, c ContextPtr) (ValuePtr, error) {
	return e.value1(ctx, e.exp.getGlobalObject, u32(int32(c)))
}

// GetOwnPropertyNames returns a guest array of obj's own keys selected by
// flags (GPN constants). The result may be the exception sentinel.
func (e *Engine) GetOwnPropertyNames(ctx context.Context, c ContextPtr, obj ValuePtr, flags int32) (ValuePtr, error) {
	return e.value1(ctx, e.exp.getOwnPropertyNames, u32(int32(c)), u32(int32(obj)), u32(flags))
}

func (e *Engine) GetTag(ctx context.Context, v ValuePtr) (int32, error) {
	res, err := e.exp.getTag.Call(ctx, u32(int32(v)))
	if err != nil {
		return 0, fmt.Errorf("get tag: %w", err)
	}
	return i32(res[0]), nil
}

func (e *Engine) IsFunction(ctx context.Context, c ContextPtr, v ValuePtr) (bool, error) {
	return e.bool1(ctx, e.exp.isFunction, u32(int32(c)), u32(int32(v)))
}

func (e *Engine) IsArray(ctx context.Context, c ContextPtr, v ValuePtr) (bool, error) {
	return e.bool1(ctx, e.exp.isArray, u32(int32(c)), u32(int32(v)))
}

func (e *Engine) IsDate(ctx context.Context, c ContextPtr, v ValuePtr) (bool, error) {
	return e.bool1(ctx, e.exp.isDate, u32(int32(c)), u32(int32(v)))
}

// IsFloat64 reports whether a value with an unrecognized tag carries a
// float64 payload.
func (e *Engine) IsFloat64(ctx context.Context, v ValuePtr) (bool, error) {
	return e.bool1(ctx, e.exp.isFloat64, u32(int32(v)))
}

func (e *Engine) ToBool(ctx context.Context, c ContextPtr, v ValuePtr) (bool, error) {
	return e.bool1(ctx, e.exp.toBool, u32(int32(c)), u32(int32(v)))
}

func (e *Engine) ToInt32(ctx context.Context, c ContextPtr, v ValuePtr) (int32, error) {
	res, err := e.exp.toInt32.Call(ctx, u32(int32(c)), u32(int32(v)))
	if err != nil {
		return 0, fmt.Errorf("to int32: %w", err)
	}
	return i32(res[0]), nil
}

func (e *Engine) ToFloat64(ctx context.Context, c ContextPtr, v ValuePtr) (float64, error) {
	res, err := e.exp.toFloat64.Call(ctx, u32(int32(c)), u32(int32(v)))
	if err != nil {
		return 0, fmt.Errorf("to float64: %w", err)
	}
	return math.Float64frombits(res[0]), nil
}

// ToBigInt64 extracts a bigint as a signed 64-bit integer. ok is false when
// the value does not fit, in which case the caller reads the string form.
func (e *Engine) ToBigInt64(ctx context.Context, c ContextPtr, v ValuePtr) (n int64, ok bool, err error) {
	out, err := e.allocBytes(ctx, make([]byte, 8))
	if err != nil {
		return 0, false, err
	}
	defer e.freePtr(ctx, out)

	res, err := e.exp.toBigInt64.Call(ctx, u32(int32(c)), u32(int32(v)), uint64(out))
	if err != nil {
		return 0, false, fmt.Errorf("to bigint64: %w", err)
	}
	if i32(res[0]) != 0 {
		return 0, false, nil
	}
	raw, err := e.readUint64(out)
	if err != nil {
		return 0, false, err
	}
	return int64(raw), true, nil
}

// ToStringBytes returns the raw bytes of the value's string form. Validation
// of the encoding is the caller's concern.
func (e *Engine) ToStringBytes(ctx context.Context, c ContextPtr, v ValuePtr) ([]byte, error) {
	lenOut, err := e.allocBytes(ctx, make([]byte, 4))
	if err != nil {
		return nil, err
	}
	defer e.freePtr(ctx, lenOut)

	res, err := e.exp.toCStringLen.Call(ctx, u32(int32(c)), u32(int32(v)), uint64(lenOut))
	if err != nil {
		return nil, fmt.Errorf("to string: %w", err)
	}
	strPtr := uint32(res[0])
	if strPtr == 0 {
		return nil, fmt.Errorf("to string: conversion failed")
	}
	defer func() {
		_, _ = e.exp.freeCString.Call(ctx, u32(int32(c)), uint64(strPtr))
	}()

	strLen, err := e.readUint32(lenOut)
	if err != nil {
		return nil, err
	}
	return e.readBytes(strPtr, strLen)
}

// Call invokes fn with the given this binding and arguments. Arguments are
// borrowed; the result may be the exception sentinel.
func (e *Engine) Call(ctx context.Context, c ContextPtr, fn, this ValuePtr, args []ValuePtr) (ValuePtr, error) {
	argv, err := e.allocValueArray(ctx, args)
	if err != nil {
		return 0, err
	}
	defer e.freePtr(ctx, argv)

	return e.value1(ctx, e.exp.call, u32(int32(c)), u32(int32(fn)), u32(int32(this)), u32(int32(len(args))), uint64(argv))
}

// DupValue acquires an additional reference to v.
func (e *Engine) DupValue(ctx context.Context, c ContextPtr, v ValuePtr) (ValuePtr, error) {
	return e.value1(ctx, e.exp.dupValue, u32(int32(c)), u32(int32(v)))
}

// FreeValue gives back one reference to v.
func (e *Engine) FreeValue(ctx context.Context, c ContextPtr, v ValuePtr) error {
	_, err := e.exp.freeValue.Call(ctx, u32(int32(c)), u32(int32(v)))
	return err
}

// GetException takes the context's pending exception.
func (e *Engine) GetException(ctx context.Context, c ContextPtr) (ValuePtr, error) {
	return e.value1(ctx, e.exp.getException, u32(int32(c)))
}

// Throw raises v as the pending exception, consuming it, and returns the
// exception sentinel.
func (e *Engine) Throw(ctx context.Context, c ContextPtr, v ValuePtr) (ValuePtr, error) {
	return e.value1(ctx, e.exp.throw, u32(int32(c)), u32(int32(v)))
}

// NewHostFunction creates a guest function that dispatches to the registered
// callback funcID when called.
func (e *Engine) NewHostFunction(ctx context.Context, c ContextPtr, funcID, arity int32, name string) (ValuePtr, error) {
	namePtr, err := e.allocCString(ctx, name)
	if err != nil {
		return 0, err
	}
	defer e.freePtr(ctx, namePtr)
	return e.value1(ctx, e.exp.newHostFunction, u32(int32(c)), u32(funcID), u32(arity), uint64(namePtr))
}

// NewPromiseCapability creates a promise plus its resolve and reject
// functions. All three are owned by the caller.
func (e *Engine) NewPromiseCapability(ctx context.Context, c ContextPtr) (promise, resolve, reject ValuePtr, err error) {
	out, err := e.allocBytes(ctx, make([]byte, 8))
	if err != nil {
		return 0, 0, 0, err
	}
	defer e.freePtr(ctx, out)

	res, err := e.exp.newPromiseCapability.Call(ctx, u32(int32(c)), uint64(out))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("new promise capability: %w", err)
	}
	promise = ValuePtr(i32(res[0]))
	if promise.IsNull() {
		return 0, 0, 0, fmt.Errorf("new promise capability: shim returned null")
	}

	r0, err := e.readUint32(out)
	if err != nil {
		return 0, 0, 0, err
	}
	r1, err := e.readUint32(out + 4)
	if err != nil {
		return 0, 0, 0, err
	}
	return promise, ValuePtr(int32(r0)), ValuePtr(int32(r1)), nil
}

// ResourceClass returns the engine's resource object class, registering it on
// first use. The class finalizer reports collected objects through the
// finalize hook.
func (e *Engine) ResourceClass(ctx context.Context) (ClassID, error) {
	if e.resourceClass != 0 {
		return e.resourceClass, nil
	}

	res, err := e.exp.newClassID.Call(ctx, e.rtArg())
	if err != nil {
		return 0, fmt.Errorf("new class id: %w", err)
	}
	id := ClassID(i32(res[0]))

	namePtr, err := e.allocCString(ctx, "HostResource")
	if err != nil {
		return 0, err
	}
	defer e.freePtr(ctx, namePtr)

	res, err = e.exp.newClass.Call(ctx, e.rtArg(), u32(int32(id)), uint64(namePtr))
	if err != nil {
		return 0, fmt.Errorf("new class: %w", err)
	}
	if i32(res[0]) < 0 {
		return 0, fmt.Errorf("new class: registration failed")
	}

	e.resourceClass = id
	return id, nil
}

// RegisteredResourceClass returns the resource class if it has been
// registered, zero otherwise. Never registers.
func (e *Engine) RegisteredResourceClass() ClassID { return e.resourceClass }

func (e *Engine) NewObjectClass(ctx context.Context, c ContextPtr, cls ClassID) (ValuePtr, error) {
	return e.value1(ctx, e.exp.newObjectClass, u32(int32(c)), u32(int32(cls)))
}

// SetOpaque stores a host handle in the object's opaque slot.
func (e *Engine) SetOpaque(ctx context.Context, v ValuePtr, handle int32) error {
	_, err := e.exp.setOpaque.Call(ctx, u32(int32(v)), u32(handle))
	return err
}

// GetOpaque reads the host handle from an object of the given class. Returns
// zero when the object is of a different class.
func (e *Engine) GetOpaque(ctx context.Context, c ContextPtr, v ValuePtr, cls ClassID) (int32, error) {
	res, err := e.exp.getOpaque.Call(ctx, u32(int32(c)), u32(int32(v)), u32(int32(cls)))
	if err != nil {
		return 0, fmt.Errorf("get opaque: %w", err)
	}
	return i32(res[0]), nil
}

func (e *Engine) GetClassID(ctx context.Context, v ValuePtr) (ClassID, error) {
	res, err := e.exp.getClassID.Call(ctx, u32(int32(v)))
	if err != nil {
		return 0, fmt.Errorf("get class id: %w", err)
	}
	return ClassID(i32(res[0])), nil
}

// RefCount reports the guest reference count of a heap value. Only used to
// verify reference accounting in tests.
func (e *Engine) RefCount(ctx context.Context, v ValuePtr) (int32, error) {
	res, err := e.exp.refCount.Call(ctx, u32(int32(v)))
	if err != nil {
		return 0, fmt.Errorf("ref count: %w", err)
	}
	return i32(res[0]), nil
}

func (e *Engine) value1(ctx context.Context, fn callable, args ...uint64) (ValuePtr, error) {
	res, err := fn.Call(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("guest call: %w", err)
	}
	return ValuePtr(i32(res[0])), nil
}

func (e *Engine) bool1(ctx context.Context, fn callable, args ...uint64) (bool, error) {
	res, err := fn.Call(ctx, args...)
	if err != nil {
		return false, fmt.Errorf("guest call: %w", err)
	}
	return i32(res[0]) != 0, nil
}

type callable interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}
