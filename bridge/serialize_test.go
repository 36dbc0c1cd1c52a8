package bridge

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// roundTrip pushes v into the guest as a global and reads it back.
func roundTrip(t *testing.T, qjs *Context, name string, v value.Value) value.Value {
	t.Helper()
	ctx := context.Background()

	if err := qjs.SetGlobal(ctx, name, v); err != nil {
		t.Fatalf("SetGlobal(%s): %v", name, err)
	}
	got, err := qjs.GetGlobal(ctx, name)
	if err != nil {
		t.Fatalf("GetGlobal(%s): %v", name, err)
	}
	return got
}

func TestRoundTrip(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}

	tests := []struct {
		name string
		v    value.Value
	}{
		{"rt_undefined", value.Undefined()},
		{"rt_null", value.Null()},
		{"rt_true", value.Bool(true)},
		{"rt_int", value.Int(-12345)},
		{"rt_float", value.Float(3.25)},
		{"rt_string", value.String("héllo wörld")},
		{"rt_empty_string", value.String("")},
		{"rt_bigint64", value.BigInt(big.NewInt(1 << 40))},
		{"rt_array", value.Array([]value.Value{
			value.Int(1),
			value.String("two"),
			value.Array([]value.Value{value.Bool(false), value.Null()}),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, qjs, tt.name, tt.v)
			defer got.Release()
			if !got.Equal(tt.v) {
				t.Errorf("round trip = %s, want %s", got, tt.v)
			}
		})
	}
}

func TestRoundTripWideBigInt(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}

	n, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	got := roundTrip(t, qjs, "rt_wide_bigint", value.BigInt(n))
	defer got.Release()
	if !got.Equal(value.BigInt(n)) {
		t.Errorf("round trip = %s, want %sn", got, n)
	}
}

func TestRoundTripObjectExpandsEqual(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	want := map[string]value.Value{
		"a": value.Int(1),
		"b": value.String("two"),
		"c": value.Array([]value.Value{value.Float(1.5)}),
	}
	got := roundTrip(t, qjs, "rt_object", value.Object(want))
	defer got.Release()

	if got.Kind() != value.KindOpaque {
		t.Fatalf("object came back as %s, want opaque", got.Type())
	}
	props, err := qjs.Properties(ctx, got)
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	defer value.Object(props).Release()
	if !value.Object(props).Equal(value.Object(want)) {
		t.Errorf("expanded object = %v, want %v", props, want)
	}
}

func TestRoundTripDate(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}

	when := time.Date(2024, 6, 15, 12, 30, 45, 500*int(time.Millisecond), time.UTC)
	got := roundTrip(t, qjs, "rt_date", value.Date(when))
	defer got.Release()

	gotTime, ok := got.AsDate()
	if !ok {
		t.Fatalf("round trip kind = %s, want date", got.Type())
	}
	if !gotTime.Equal(when) {
		t.Errorf("round trip = %v, want %v", gotTime, when)
	}
}

func TestSerializeRejectsNulKey(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}

	err = qjs.SetGlobal(context.Background(), "nul_key",
		value.Object(map[string]value.Value{"a\x00b": value.Int(1)}))
	if !errors.Is(err, value.ErrNulByte) {
		t.Errorf("SetGlobal error = %v, want ErrNulByte", err)
	}
}

func TestSerializeRejectsForeignRef(t *testing.T) {
	ctx := context.Background()
	other, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer other.Close(ctx)

	foreign, err := other.Eval(ctx, `({})`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	defer foreign.Release()

	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	err = qjs.SetGlobal(ctx, "foreign_ref", foreign)
	if !errors.Is(err, value.ErrUnexpectedType) {
		t.Errorf("SetGlobal error = %v, want ErrUnexpectedType", err)
	}
}

// A failing element inside an aggregate must unwind without leaking the
// guest references acquired before the failure.
func TestSerializeRollbackDoesNotLeak(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	held, err := qjs.Eval(ctx, `({tag: "held"})`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	defer held.Release()
	ref, _ := held.AsOpaque()

	before, err := qjs.Engine().RefCount(ctx, engine.ValuePtr(ref.Handle()))
	if err != nil {
		t.Fatalf("RefCount: %v", err)
	}

	// The bad key fails after the opaque element was already serialized
	// into the partially built array.
	bad := value.Array([]value.Value{
		held,
		value.Object(map[string]value.Value{"x\x00": value.Int(1)}),
	})
	if err := qjs.SetGlobal(ctx, "rollback_probe", bad); !errors.Is(err, value.ErrNulByte) {
		t.Fatalf("SetGlobal error = %v, want ErrNulByte", err)
	}

	after, err := qjs.Engine().RefCount(ctx, engine.ValuePtr(ref.Handle()))
	if err != nil {
		t.Fatalf("RefCount: %v", err)
	}
	if after != before {
		t.Errorf("refcount %d -> %d after failed serialize, want unchanged", before, after)
	}
}
