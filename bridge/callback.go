package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// Callback is a host function callable from guest code.
type Callback func(args []value.Value) (value.Value, error)

// Function creates a guest-callable function dispatching to fn. The returned
// Opaque value can be bound to globals, passed as an argument, or stored in
// guest data structures. The callback entry lives until Reset or Close.
//
// An error returned by fn is thrown in the guest with the error's message.
// Argument conversion failures, result conversion failures, and panics are
// thrown as "failed to call [name]" errors instead, so script code can tell
// an application error from a broken bridge.
func (c *Context) Function(ctx context.Context, name string, arity int, fn Callback) (value.Value, error) {
	id := c.eng.RegisterCallback(c.trampoline(name, fn))

	raw, err := c.eng.NewHostFunction(ctx, c.ptr, id, int32(arity), name)
	raw, err = c.checked(ctx, raw, err)
	if err != nil {
		return value.Value{}, err
	}
	return value.Opaque(c.newRef(raw)), nil
}

// RegisterCallback creates a function for fn and binds it as a global under
// name.
func (c *Context) RegisterCallback(ctx context.Context, name string, arity int, fn Callback) error {
	v, err := c.Function(ctx, name, arity, fn)
	if err != nil {
		return err
	}
	defer v.Release()
	return c.SetGlobal(ctx, name, v)
}

func (c *Context) trampoline(name string, fn Callback) engine.HostFunc {
	return func(ctx context.Context, jsctx engine.ContextPtr, rawArgs []engine.ValuePtr) engine.ValuePtr {
		args := make([]value.Value, 0, len(rawArgs))
		for i, ra := range rawArgs {
			a, err := c.deserialize(ctx, ra)
			if err != nil {
				value.Array(args).Release()
				return c.throwString(ctx, fmt.Sprintf("failed to call [%s]: could not convert argument %d: %v", name, i, err))
			}
			args = append(args, a)
		}

		result, err := invokeCallback(fn, args)
		if err != nil {
			value.Array(args).Release()
			var pe *panicError
			if errors.As(err, &pe) {
				return c.throwString(ctx, fmt.Sprintf("failed to call [%s]: %v", name, pe))
			}
			return c.throwString(ctx, err.Error())
		}

		// The result may alias a reference from args; serialize before
		// releasing either.
		raw, serr := c.serialize(ctx, result)
		result.Release()
		value.Array(args).Release()
		if serr != nil {
			return c.throwString(ctx, fmt.Sprintf("failed to call [%s]: could not convert result: %v", name, serr))
		}
		return raw
	}
}

// panicError marks a contained callback panic so the trampoline can route it
// through the bridge-failure channel rather than the application one.
type panicError struct {
	cause any
}

func (e *panicError) Error() string { return fmt.Sprintf("callback panicked: %v", e.cause) }

// invokeCallback runs fn with panic containment.
func invokeCallback(fn Callback, args []value.Value) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = value.Value{}
			err = &panicError{cause: r}
		}
	}()
	return fn(args)
}

// throwString raises a plain string exception and returns the sentinel the
// shim expects from a failed host call.
func (c *Context) throwString(ctx context.Context, msg string) engine.ValuePtr {
	str, err := c.eng.NewString(ctx, c.ptr, msg)
	if err != nil {
		return 0
	}
	exc, err := c.eng.Throw(ctx, c.ptr, str)
	if err != nil {
		return 0
	}
	return exc
}

// RegisterFunc binds a plain Go function as a global, deriving arity and
// argument conversion from its signature via reflection. Supported parameter
// types: bool, int, int32, int64, float64, string, time.Time, *big.Int and
// value.Value. The function may return nothing, a value, an error, or a
// value and an error.
func (c *Context) RegisterFunc(ctx context.Context, name string, fn any) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("%w: RegisterFunc needs a func, got %T", value.ErrUnexpectedType, fn)
	}
	if t.IsVariadic() {
		return fmt.Errorf("%w: variadic functions are not supported", value.ErrUnexpectedType)
	}

	errType := reflect.TypeOf((*error)(nil)).Elem()
	returnsErr := t.NumOut() > 0 && t.Out(t.NumOut()-1) == errType
	valueOuts := t.NumOut()
	if returnsErr {
		valueOuts--
	}
	if valueOuts > 1 {
		return fmt.Errorf("%w: at most one non-error result is supported", value.ErrUnexpectedType)
	}

	fnVal := reflect.ValueOf(fn)
	adapter := func(args []value.Value) (value.Value, error) {
		if len(args) != t.NumIn() {
			return value.Value{}, fmt.Errorf("expected %d arguments, got %d", t.NumIn(), len(args))
		}
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			conv, err := convertArg(t.In(i), a)
			if err != nil {
				return value.Value{}, fmt.Errorf("could not convert argument %d: %v", i, err)
			}
			in[i] = conv
		}

		out := fnVal.Call(in)
		if returnsErr {
			if errOut := out[len(out)-1]; !errOut.IsNil() {
				return value.Value{}, errOut.Interface().(error)
			}
			out = out[:len(out)-1]
		}
		if len(out) == 0 {
			return value.Undefined(), nil
		}
		return convertResult(out[0].Interface())
	}

	return c.RegisterCallback(ctx, name, t.NumIn(), adapter)
}

func convertArg(t reflect.Type, v value.Value) (reflect.Value, error) {
	mismatch := func(want string) (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("expected %s, got %s", want, v.Type())
	}

	switch t.Kind() {
	case reflect.Bool:
		b, ok := v.AsBool()
		if !ok {
			return mismatch("bool")
		}
		return reflect.ValueOf(b), nil
	case reflect.Int32:
		i, ok := v.AsInt()
		if !ok {
			return mismatch("int32")
		}
		return reflect.ValueOf(i), nil
	case reflect.Int, reflect.Int64:
		n, ok := v.Number()
		if !ok || n != math.Trunc(n) {
			return mismatch("integer")
		}
		return reflect.ValueOf(int64(n)).Convert(t), nil
	case reflect.Float64:
		n, ok := v.Number()
		if !ok {
			return mismatch("number")
		}
		return reflect.ValueOf(n), nil
	case reflect.String:
		s, ok := v.AsString()
		if !ok {
			return mismatch("string")
		}
		return reflect.ValueOf(s), nil
	}

	switch t {
	case reflect.TypeOf(time.Time{}):
		d, ok := v.AsDate()
		if !ok {
			return mismatch("date")
		}
		return reflect.ValueOf(d), nil
	case reflect.TypeOf((*big.Int)(nil)):
		n, ok := v.AsBigInt()
		if !ok {
			return mismatch("bigint")
		}
		return reflect.ValueOf(n), nil
	case reflect.TypeOf(value.Value{}):
		return reflect.ValueOf(v), nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
}

func convertResult(v any) (value.Value, error) {
	switch r := v.(type) {
	case nil:
		return value.Undefined(), nil
	case bool:
		return value.Bool(r), nil
	case int32:
		return value.Int(r), nil
	case int:
		if r >= math.MinInt32 && r <= math.MaxInt32 {
			return value.Int(int32(r)), nil
		}
		return value.Float(float64(r)), nil
	case int64:
		return value.BigInt(big.NewInt(r)), nil
	case float64:
		return value.Float(r), nil
	case string:
		return value.String(r), nil
	case time.Time:
		return value.Date(r), nil
	case *big.Int:
		return value.BigInt(r), nil
	case value.Value:
		return r, nil
	}
	return value.Value{}, fmt.Errorf("unsupported result type %T", v)
}
