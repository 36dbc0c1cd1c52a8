package value

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"
)

// Kind identifies which variant of a Value is active.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
	KindDate
	KindBigInt
	KindResource
	KindOpaque
	KindException
)

// GuestRef is an owned reference to a value living inside the guest runtime.
// Each GuestRef owns exactly one reference increment: Clone acquires a new
// increment, Release gives the one owned increment back. Copying a GuestRef
// by assignment does not duplicate the increment; use Clone for that.
type GuestRef interface {
	// Clone returns a new independently-owned reference to the same guest value.
	Clone() GuestRef
	// Release returns the owned reference. Safe to call more than once; only
	// the first call has an effect.
	Release()
	// Handle is the raw guest-side handle. Meaningful only to the context that
	// produced the reference.
	Handle() int32
}

// Value is a host-side representation of a guest runtime value. Exactly one
// variant is active, identified by Kind.
type Value struct {
	kind Kind
	b    bool
	i    int32
	f    float64
	s    string
	arr  []Value
	obj  map[string]Value
	t    time.Time
	big  *big.Int
	res  *Resource
	ref  GuestRef
}

func Undefined() Value              { return Value{kind: KindUndefined} }
func Null() Value                   { return Value{kind: KindNull} }
func Bool(b bool) Value             { return Value{kind: KindBool, b: b} }
func Int(i int32) Value             { return Value{kind: KindInt, i: i} }
func Float(f float64) Value         { return Value{kind: KindFloat, f: f} }
func String(s string) Value         { return Value{kind: KindString, s: s} }
func Array(vs []Value) Value        { return Value{kind: KindArray, arr: vs} }
func Date(t time.Time) Value        { return Value{kind: KindDate, t: t} }
func BigInt(n *big.Int) Value       { return Value{kind: KindBigInt, big: n} }
func Opaque(ref GuestRef) Value     { return Value{kind: KindOpaque, ref: ref} }
func Exception(ref GuestRef) Value  { return Value{kind: KindException, ref: ref} }
func Resourced(r *Resource) Value   { return Value{kind: KindResource, res: r} }
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// NewResource wraps an arbitrary host object in a fresh shared cell.
func NewResource(v any) Value { return Resourced(newResource(v)) }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)              { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int32, bool)              { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)          { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)          { return v.s, v.kind == KindString }
func (v Value) AsArray() ([]Value, bool)          { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == KindObject }
func (v Value) AsDate() (time.Time, bool)         { return v.t, v.kind == KindDate }
func (v Value) AsBigInt() (*big.Int, bool)        { return v.big, v.kind == KindBigInt }
func (v Value) AsResource() (*Resource, bool)     { return v.res, v.kind == KindResource }

// AsOpaque returns the guest reference of an Opaque value.
func (v Value) AsOpaque() (GuestRef, bool) { return v.ref, v.kind == KindOpaque }

// AsException returns the guest reference of an Exception value.
func (v Value) AsException() (GuestRef, bool) { return v.ref, v.kind == KindException }

// Number returns the value as a float64 for both Int and Float variants.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Type returns a short name for the active variant, usable in error messages.
func (v Value) Type() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindDate:
		return "date"
	case KindBigInt:
		return "bigint"
	case KindResource:
		return "resource"
	case KindOpaque:
		return "opaque"
	case KindException:
		return "exception"
	}
	return "invalid"
}

// Release gives back every guest reference held anywhere in the value tree.
// Plain data variants are unaffected. Safe to call on any value.
func (v Value) Release() {
	switch v.kind {
	case KindOpaque, KindException:
		if v.ref != nil {
			v.ref.Release()
		}
	case KindArray:
		for _, e := range v.arr {
			e.Release()
		}
	case KindObject:
		for _, e := range v.obj {
			e.Release()
		}
	}
}

// Equal reports deep structural equality. Opaque and Exception values compare
// by guest handle; Resource values compare by cell identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindDate:
		return v.t.Equal(o.t)
	case KindBigInt:
		return v.big.Cmp(o.big) == 0
	case KindResource:
		return v.res == o.res
	case KindOpaque, KindException:
		return v.ref != nil && o.ref != nil && v.ref.Handle() == o.ref.Handle()
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, e := range v.obj {
			oe, ok := o.obj[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a debug form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindDate:
		return v.t.Format(time.RFC3339Nano)
	case KindBigInt:
		return v.big.String() + "n"
	case KindResource:
		return fmt.Sprintf("resource(%p)", v.res)
	case KindOpaque:
		return fmt.Sprintf("opaque(%d)", v.ref.Handle())
	case KindException:
		return fmt.Sprintf("exception(%d)", v.ref.Handle())
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, v.obj[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "invalid"
}
