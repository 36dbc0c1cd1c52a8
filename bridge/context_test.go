package bridge

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/caffeineduck/quickjs/value"
)

func TestEvalPrimitives(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name string
		code string
		want value.Value
	}{
		{"int", `1 + 2`, value.Int(3)},
		{"float", `1.5 * 2`, value.Float(3)},
		{"bool", `1 < 2`, value.Bool(true)},
		{"string", `"a" + "b"`, value.String("ab")},
		{"null", `null`, value.Null()},
		{"undefined", `undefined`, value.Undefined()},
		{"unicode", `"日本" + "語"`, value.String("日本語")},
		{"array", `[1, "two", [3]]`, value.Array([]value.Value{
			value.Int(1), value.String("two"), value.Array([]value.Value{value.Int(3)}),
		})},
		{"bigint", `10n ** 25n`, mustBigInt(t, "10000000000000000000000000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := qjs.Eval(ctx, tt.code)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.code, err)
			}
			defer got.Release()
			if !got.Equal(tt.want) {
				t.Errorf("Eval(%q) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func mustBigInt(t *testing.T, s string) value.Value {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad bigint literal %q", s)
	}
	return value.BigInt(n)
}

func TestEvalBigIntInt64Boundary(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	// Both sides of the 64-bit extraction boundary must come back exact.
	tests := []struct {
		name string
		code string
		want value.Value
	}{
		{"max_int64", `2n ** 63n - 1n`, mustBigInt(t, "9223372036854775807")},
		{"min_int64", `-(2n ** 63n)`, mustBigInt(t, "-9223372036854775808")},
		{"past_int64", `2n ** 63n`, mustBigInt(t, "9223372036854775808")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := qjs.Eval(ctx, tt.code)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.code, err)
			}
			defer got.Release()
			if !got.Equal(tt.want) {
				t.Errorf("Eval(%q) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestEvalArrayNonIntegerLength(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	// Array.isArray pierces proxies, so the proxy reaches the array path
	// with a fractional length. That must error, not truncate.
	_, err = qjs.Eval(ctx, `
		new Proxy([1, 2], {
			get: (t, p) => p === "length" ? 1.5 : t[p],
		})
	`)
	if err == nil || !strings.Contains(err.Error(), "length") {
		t.Errorf("non-integer length error = %v", err)
	}
}

func TestEvalLoneSurrogateString(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}

	// An unpaired surrogate does not survive the cstring conversion as
	// valid UTF-8; the bridge rejects it instead of passing garbage on.
	_, err = qjs.Eval(context.Background(), `"\uD800"`)
	if !errors.Is(err, value.ErrInvalidString) {
		t.Errorf("lone surrogate error = %v, want ErrInvalidString", err)
	}
}

func TestEvalInvalidDateStaysOpaque(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	v, err := qjs.Eval(ctx, `new Date(NaN)`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	defer v.Release()

	if v.Kind() != value.KindOpaque {
		t.Fatalf("invalid date came back as %s, want opaque", v.Type())
	}
}

func TestEvalObjectIsOpaque(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	v, err := qjs.Eval(ctx, `({x: 1, y: "two"})`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	defer v.Release()

	if v.Kind() != value.KindOpaque {
		t.Fatalf("plain object came back as %s, want opaque", v.Type())
	}

	props, err := qjs.Properties(ctx, v)
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	defer value.Object(props).Release()

	if !props["x"].Equal(value.Int(1)) || !props["y"].Equal(value.String("two")) {
		t.Errorf("Properties = %v", props)
	}
}

func TestEvalFunctionIsCallable(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	fn, err := qjs.Eval(ctx, `() => 123`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	defer fn.Release()

	if fn.Kind() != value.KindOpaque {
		t.Fatalf("function came back as %s, want opaque", fn.Type())
	}

	got, err := qjs.CallFunction(ctx, fn)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if !got.Equal(value.Int(123)) {
		t.Errorf("CallFunction = %s, want 123", got)
	}
}

func TestEvalException(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	_, err = qjs.Eval(ctx, `throw new Error("kaboom")`)
	var guestErr *GuestError
	if !errors.As(err, &guestErr) {
		t.Fatalf("Eval error = %v, want GuestError", err)
	}
	if !strings.Contains(guestErr.Error(), "kaboom") {
		t.Errorf("error %q does not mention the thrown message", guestErr.Error())
	}
	guestErr.Value.Release()
}

func TestEvalSyntaxError(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}

	_, err = qjs.Eval(context.Background(), `fn(`)
	var guestErr *GuestError
	if !errors.As(err, &guestErr) {
		t.Fatalf("Eval error = %v, want GuestError", err)
	}
	guestErr.Value.Release()
}

func TestGlobals(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}
	ctx := context.Background()

	want := value.Object(map[string]value.Value{
		"n":    value.Int(7),
		"tags": value.Array([]value.Value{value.String("a"), value.String("b")}),
	})
	if err := qjs.SetGlobal(ctx, "globals_state", want); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}

	got, err := qjs.Eval(ctx, `globals_state.n + globals_state.tags.length`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Equal(value.Int(9)) {
		t.Errorf("Eval = %s, want 9", got)
	}

	back, err := qjs.GetGlobal(ctx, "globals_state")
	if err != nil {
		t.Fatalf("GetGlobal: %v", err)
	}
	defer back.Release()
	if back.Kind() != value.KindOpaque {
		t.Fatalf("GetGlobal kind = %s, want opaque", back.Type())
	}
}

func TestSetGlobalRejectsNulName(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}

	err = qjs.SetGlobal(context.Background(), "bad\x00name", value.Int(1))
	if !errors.Is(err, value.ErrNulByte) {
		t.Errorf("SetGlobal error = %v, want ErrNulByte", err)
	}
}

func TestEvalFilenameInStackTrace(t *testing.T) {
	qjs, err := GetTestContext()
	if err != nil {
		t.Fatalf("test context: %v", err)
	}

	_, err = qjs.Eval(context.Background(), `(function boom(){ throw new Error("x") })()`,
		WithFilename("custom-name.js"))
	var guestErr *GuestError
	if !errors.As(err, &guestErr) {
		t.Fatalf("Eval error = %v, want GuestError", err)
	}
	defer guestErr.Value.Release()

	// A thrown Error object deserializes to an Opaque reference.
	props, perr := qjs.Properties(context.Background(), guestErr.Value)
	if perr != nil {
		t.Fatalf("Properties on exception: %v", perr)
	}
	defer value.Object(props).Release()
	if stack, ok := props["stack"].AsString(); ok && !strings.Contains(stack, "custom-name.js") {
		t.Errorf("stack %q does not mention custom-name.js", stack)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	qjs, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer qjs.Close(ctx)

	if err := qjs.SetGlobal(ctx, "keep", value.Int(1)); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	if err := qjs.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	got, err := qjs.Eval(ctx, `typeof keep`)
	if err != nil {
		t.Fatalf("Eval after reset: %v", err)
	}
	if !got.Equal(value.String("undefined")) {
		t.Errorf("global survived reset: %s", got)
	}

	// The fresh context must be fully usable.
	v, err := qjs.Eval(ctx, `40 + 2`)
	if err != nil {
		t.Fatalf("Eval after reset: %v", err)
	}
	if !v.Equal(value.Int(42)) {
		t.Errorf("Eval after reset = %s, want 42", v)
	}
}

func TestMemoryLimit(t *testing.T) {
	ctx := context.Background()
	qjs, err := New(ctx, WithMemoryLimit(1<<20))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer qjs.Close(ctx)

	_, err = qjs.Eval(ctx, `
		const chunks = [];
		for (let i = 0; i < 10000; i++) {
			chunks.push(new Array(4096).fill(i));
		}
		chunks.length;
	`)
	if !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Eval error = %v, want ErrOutOfMemory", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	qjs, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := qjs.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := qjs.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
