package bridge

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// deserialize converts a guest value into its host representation. raw is
// borrowed; Opaque results acquire their own reference.
func (c *Context) deserialize(ctx context.Context, raw engine.ValuePtr) (value.Value, error) {
	tag, err := c.eng.GetTag(ctx, raw)
	if err != nil {
		return value.Value{}, err
	}

	switch tag {
	case engine.TagUndefined:
		return value.Undefined(), nil
	case engine.TagNull:
		return value.Null(), nil
	case engine.TagBool:
		b, err := c.eng.ToBool(ctx, c.ptr, raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(b), nil
	case engine.TagInt:
		i, err := c.eng.ToInt32(ctx, c.ptr, raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(i), nil
	case engine.TagFloat64:
		f, err := c.eng.ToFloat64(ctx, c.ptr, raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case engine.TagString:
		b, err := c.eng.ToStringBytes(ctx, c.ptr, raw)
		if err != nil {
			return value.Value{}, err
		}
		if !utf8.Valid(b) {
			return value.Value{}, value.ErrInvalidString
		}
		return value.String(string(b)), nil
	case engine.TagBigInt:
		return c.deserializeBigInt(ctx, raw)
	case engine.TagObject:
		return c.deserializeObjectTag(ctx, raw)
	default:
		// Unrecognized tags: floats that did not fit the common tags come
		// back as Float, everything else is kept by reference.
		isFloat, err := c.eng.IsFloat64(ctx, raw)
		if err != nil {
			return value.Value{}, err
		}
		if isFloat {
			f, err := c.eng.ToFloat64(ctx, c.ptr, raw)
			if err != nil {
				return value.Value{}, err
			}
			return value.Float(f), nil
		}
		return c.opaque(ctx, raw)
	}
}

// deserializeObjectTag disambiguates object-tagged values. The check order
// matters: callables first (Date and resource objects are not callable, but
// proxies may be), then arrays, then the resource class before the Date
// check so an embedded resource can never be mistaken for a date, then
// dates, with plain objects kept opaque.
func (c *Context) deserializeObjectTag(ctx context.Context, raw engine.ValuePtr) (value.Value, error) {
	isFn, err := c.eng.IsFunction(ctx, c.ptr, raw)
	if err != nil {
		return value.Value{}, err
	}
	if isFn {
		return c.opaque(ctx, raw)
	}

	isArr, err := c.eng.IsArray(ctx, c.ptr, raw)
	if err != nil {
		return value.Value{}, err
	}
	if isArr {
		return c.deserializeArray(ctx, raw)
	}

	if res, ok, err := c.extractResource(ctx, raw); err != nil {
		return value.Value{}, err
	} else if ok {
		return value.Resourced(res), nil
	}

	isDate, err := c.eng.IsDate(ctx, c.ptr, raw)
	if err != nil {
		return value.Value{}, err
	}
	if isDate {
		return c.deserializeDate(ctx, raw)
	}

	return c.opaque(ctx, raw)
}

func (c *Context) opaque(ctx context.Context, raw engine.ValuePtr) (value.Value, error) {
	ref, err := c.dupRef(ctx, raw)
	if err != nil {
		return value.Value{}, err
	}
	return value.Opaque(ref), nil
}

func (c *Context) deserializeArray(ctx context.Context, raw engine.ValuePtr) (value.Value, error) {
	lenRaw, err := c.eng.GetProperty(ctx, c.ptr, raw, "length")
	if err != nil {
		return value.Value{}, err
	}
	// Proxies can report any length; only an integer tag is acceptable.
	lenTag, err := c.eng.GetTag(ctx, lenRaw)
	if err == nil && lenTag != engine.TagInt {
		err = fmt.Errorf("array length is not an integer")
	}
	if err != nil {
		c.eng.FreeValue(ctx, c.ptr, lenRaw)
		return value.Value{}, err
	}
	length, err := c.eng.ToInt32(ctx, c.ptr, lenRaw)
	c.eng.FreeValue(ctx, c.ptr, lenRaw)
	if err != nil {
		return value.Value{}, err
	}
	if length < 0 {
		return value.Value{}, fmt.Errorf("array length %d", length)
	}

	elems := make([]value.Value, 0, length)
	for i := int32(0); i < length; i++ {
		elemRaw, err := c.eng.GetPropertyUint32(ctx, c.ptr, raw, uint32(i))
		if err != nil {
			value.Array(elems).Release()
			return value.Value{}, err
		}
		tag, err := c.eng.GetTag(ctx, elemRaw)
		if err == nil && tag == engine.TagException {
			err = c.pendingException(ctx)
		}
		if err != nil {
			c.eng.FreeValue(ctx, c.ptr, elemRaw)
			value.Array(elems).Release()
			return value.Value{}, err
		}

		elem, err := c.deserialize(ctx, elemRaw)
		c.eng.FreeValue(ctx, c.ptr, elemRaw)
		if err != nil {
			value.Array(elems).Release()
			return value.Value{}, err
		}
		elems = append(elems, elem)
	}
	return value.Array(elems), nil
}

// deserializeDate reads the millisecond timestamp through getTime so the
// result honors whatever the object actually reports.
func (c *Context) deserializeDate(ctx context.Context, raw engine.ValuePtr) (value.Value, error) {
	getter, err := c.eng.GetProperty(ctx, c.ptr, raw, "getTime")
	getter, err = c.checked(ctx, getter, err)
	if err != nil {
		return value.Value{}, err
	}
	defer c.eng.FreeValue(ctx, c.ptr, getter)

	tsRaw, err := c.eng.Call(ctx, c.ptr, getter, raw, nil)
	tsRaw, err = c.checked(ctx, tsRaw, err)
	if err != nil {
		return value.Value{}, err
	}
	defer c.eng.FreeValue(ctx, c.ptr, tsRaw)

	millis, err := c.eng.ToFloat64(ctx, c.ptr, tsRaw)
	if err != nil {
		return value.Value{}, err
	}
	if math.IsNaN(millis) {
		// Invalid Date: keep it by reference rather than invent a timestamp.
		return c.opaque(ctx, raw)
	}
	sec := int64(millis) / 1000
	nsec := (int64(millis) % 1000) * int64(time.Millisecond)
	return value.Date(time.Unix(sec, nsec).UTC()), nil
}

// deserializeBigInt tries the 64-bit extraction first; values that do not
// fit go through the decimal string form, which is exact for any width.
func (c *Context) deserializeBigInt(ctx context.Context, raw engine.ValuePtr) (value.Value, error) {
	n, ok, err := c.eng.ToBigInt64(ctx, c.ptr, raw)
	if err != nil {
		return value.Value{}, err
	}
	if ok {
		return value.BigInt(big.NewInt(n)), nil
	}

	b, err := c.eng.ToStringBytes(ctx, c.ptr, raw)
	if err != nil {
		return value.Value{}, err
	}
	bi, ok := new(big.Int).SetString(string(b), 10)
	if !ok {
		return value.Value{}, fmt.Errorf("bigint string %q does not parse", b)
	}
	return value.BigInt(bi), nil
}

// deserializeObject expands an object's own enumerable string and symbol
// keyed properties into a host map.
func (c *Context) deserializeObject(ctx context.Context, raw engine.ValuePtr) (map[string]value.Value, error) {
	flags := int32(engine.GPNStringMask | engine.GPNSymbolMask | engine.GPNEnumOnly)
	names, err := c.eng.GetOwnPropertyNames(ctx, c.ptr, raw, flags)
	names, err = c.checked(ctx, names, err)
	if err != nil {
		return nil, err
	}
	defer c.eng.FreeValue(ctx, c.ptr, names)

	lenRaw, err := c.eng.GetProperty(ctx, c.ptr, names, "length")
	if err != nil {
		return nil, err
	}
	count, err := c.eng.ToInt32(ctx, c.ptr, lenRaw)
	c.eng.FreeValue(ctx, c.ptr, lenRaw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]value.Value, count)
	fail := func(err error) (map[string]value.Value, error) {
		value.Object(out).Release()
		return nil, err
	}

	for i := int32(0); i < count; i++ {
		keyRaw, err := c.eng.GetPropertyUint32(ctx, c.ptr, names, uint32(i))
		if err != nil {
			return fail(err)
		}
		keyBytes, err := c.eng.ToStringBytes(ctx, c.ptr, keyRaw)
		c.eng.FreeValue(ctx, c.ptr, keyRaw)
		if err != nil {
			return fail(err)
		}
		if !utf8.Valid(keyBytes) {
			return fail(value.ErrInvalidString)
		}
		key := string(keyBytes)

		propRaw, err := c.eng.GetProperty(ctx, c.ptr, raw, key)
		if err != nil {
			return fail(err)
		}
		tag, err := c.eng.GetTag(ctx, propRaw)
		if err == nil && tag == engine.TagException {
			err = c.pendingException(ctx)
		}
		if err != nil {
			c.eng.FreeValue(ctx, c.ptr, propRaw)
			return fail(err)
		}

		prop, err := c.deserialize(ctx, propRaw)
		c.eng.FreeValue(ctx, c.ptr, propRaw)
		if err != nil {
			return fail(err)
		}
		out[key] = prop
	}
	return out, nil
}
