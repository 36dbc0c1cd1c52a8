package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// serialize materializes v inside the guest and returns an owned handle.
// On failure everything allocated so far is freed before returning, so a
// failed serialization never leaks guest references.
func (c *Context) serialize(ctx context.Context, v value.Value) (engine.ValuePtr, error) {
	switch v.Kind() {
	case value.KindUndefined:
		return c.eng.NewUndefined(ctx, c.ptr)
	case value.KindNull:
		return c.eng.NewNull(ctx, c.ptr)
	case value.KindBool:
		b, _ := v.AsBool()
		return c.eng.NewBool(ctx, c.ptr, b)
	case value.KindInt:
		i, _ := v.AsInt()
		return c.eng.NewInt32(ctx, c.ptr, i)
	case value.KindFloat:
		f, _ := v.AsFloat()
		return c.eng.NewFloat64(ctx, c.ptr, f)
	case value.KindString:
		s, _ := v.AsString()
		raw, err := c.eng.NewString(ctx, c.ptr, s)
		return c.checked(ctx, raw, err)
	case value.KindArray:
		arr, _ := v.AsArray()
		return c.serializeArray(ctx, arr)
	case value.KindObject:
		obj, _ := v.AsObject()
		return c.serializeObject(ctx, obj)
	case value.KindDate:
		t, _ := v.AsDate()
		millis := float64(t.UnixNano()) / float64(1e6)
		raw, err := c.eng.NewDate(ctx, c.ptr, millis)
		return c.checked(ctx, raw, err)
	case value.KindBigInt:
		return c.serializeBigInt(ctx, v)
	case value.KindResource:
		r, _ := v.AsResource()
		return c.createResource(ctx, r)
	case value.KindOpaque, value.KindException:
		ref, err := c.ownRef(v)
		if err != nil {
			return 0, err
		}
		return c.eng.DupValue(ctx, c.ptr, ref.handle)
	}
	return 0, fmt.Errorf("%w: cannot serialize %s", value.ErrUnexpectedType, v.Type())
}

// checked turns an exception-sentinel result into the pending exception.
func (c *Context) checked(ctx context.Context, raw engine.ValuePtr, err error) (engine.ValuePtr, error) {
	if err != nil {
		return 0, err
	}
	tag, err := c.eng.GetTag(ctx, raw)
	if err != nil {
		c.eng.FreeValue(ctx, c.ptr, raw)
		return 0, err
	}
	if tag == engine.TagException {
		c.eng.FreeValue(ctx, c.ptr, raw)
		return 0, c.pendingException(ctx)
	}
	return raw, nil
}

func (c *Context) serializeArray(ctx context.Context, elems []value.Value) (engine.ValuePtr, error) {
	arr, err := c.eng.NewArray(ctx, c.ptr)
	arr, err = c.checked(ctx, arr, err)
	if err != nil {
		return 0, err
	}

	for i, e := range elems {
		raw, err := c.serialize(ctx, e)
		if err != nil {
			c.eng.FreeValue(ctx, c.ptr, arr)
			return 0, err
		}
		status, err := c.eng.SetPropertyUint32(ctx, c.ptr, arr, uint32(i), raw)
		if err != nil {
			c.eng.FreeValue(ctx, c.ptr, arr)
			return 0, err
		}
		if status < 0 {
			excErr := c.pendingException(ctx)
			c.eng.FreeValue(ctx, c.ptr, arr)
			return 0, excErr
		}
	}
	return arr, nil
}

func (c *Context) serializeObject(ctx context.Context, fields map[string]value.Value) (engine.ValuePtr, error) {
	obj, err := c.eng.NewObject(ctx, c.ptr)
	obj, err = c.checked(ctx, obj, err)
	if err != nil {
		return 0, err
	}

	for k, e := range fields {
		if strings.ContainsRune(k, 0) {
			c.eng.FreeValue(ctx, c.ptr, obj)
			return 0, fmt.Errorf("object key %q: %w", k, value.ErrNulByte)
		}
		raw, err := c.serialize(ctx, e)
		if err != nil {
			c.eng.FreeValue(ctx, c.ptr, obj)
			return 0, err
		}
		status, err := c.eng.SetProperty(ctx, c.ptr, obj, k, raw)
		if err != nil {
			c.eng.FreeValue(ctx, c.ptr, obj)
			return 0, err
		}
		if status < 0 {
			excErr := c.pendingException(ctx)
			c.eng.FreeValue(ctx, c.ptr, obj)
			return 0, excErr
		}
	}
	return obj, nil
}

// serializeBigInt takes the int64 fast path when the value fits, and goes
// through the global BigInt function with a decimal string otherwise.
func (c *Context) serializeBigInt(ctx context.Context, v value.Value) (engine.ValuePtr, error) {
	n, _ := v.AsBigInt()
	if n.IsInt64() {
		return c.eng.NewBigInt64(ctx, c.ptr, n.Int64())
	}

	str, err := c.eng.NewString(ctx, c.ptr, n.String())
	str, err = c.checked(ctx, str, err)
	if err != nil {
		return 0, err
	}
	defer c.eng.FreeValue(ctx, c.ptr, str)

	global, err := c.eng.GetGlobalObject(ctx, c.ptr)
	if err != nil {
		return 0, err
	}
	defer c.eng.FreeValue(ctx, c.ptr, global)

	bigintFn, err := c.eng.GetProperty(ctx, c.ptr, global, "BigInt")
	bigintFn, err = c.checked(ctx, bigintFn, err)
	if err != nil {
		return 0, err
	}
	defer c.eng.FreeValue(ctx, c.ptr, bigintFn)

	this, err := c.eng.NewNull(ctx, c.ptr)
	if err != nil {
		return 0, err
	}
	raw, err := c.eng.Call(ctx, c.ptr, bigintFn, this, []engine.ValuePtr{str})
	raw, err = c.checked(ctx, raw, err)
	c.eng.FreeValue(ctx, c.ptr, this)
	if err != nil {
		return 0, err
	}

	tag, err := c.eng.GetTag(ctx, raw)
	if err != nil || tag != engine.TagBigInt {
		c.eng.FreeValue(ctx, c.ptr, raw)
		if err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("bigint conversion produced tag %d", tag)
	}
	return raw, nil
}
