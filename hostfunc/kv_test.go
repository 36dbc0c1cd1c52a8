package hostfunc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/quickjs/bridge"
	"github.com/caffeineduck/quickjs/value"
)

func newTestContext(t *testing.T, bundles ...Bundle) *bridge.Context {
	t.Helper()
	ctx := context.Background()
	qjs, err := bridge.New(ctx)
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	t.Cleanup(func() { qjs.Close(ctx) })

	if err := InstallAll(ctx, qjs, bundles...); err != nil {
		t.Fatalf("InstallAll: %v", err)
	}
	return qjs
}

func TestKVRoundTripFromScript(t *testing.T) {
	kv := NewKV()
	qjs := newTestContext(t, kv)
	ctx := context.Background()

	got, err := qjs.Eval(ctx, `
		kv_set("greeting", "hello");
		kv_get("greeting");
	`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Equal(value.String("hello")) {
		t.Errorf("kv_get = %s, want \"hello\"", got)
	}

	// Visible from the host side too.
	if v, ok := kv.Get("greeting"); !ok || v != "hello" {
		t.Errorf("host Get = %q, %v", v, ok)
	}
}

func TestKVGetMissingIsNull(t *testing.T) {
	qjs := newTestContext(t, NewKV())

	got, err := qjs.Eval(context.Background(), `kv_get("nope")`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Equal(value.Null()) {
		t.Errorf("kv_get missing = %s, want null", got)
	}
}

func TestKVDeleteAndKeys(t *testing.T) {
	qjs := newTestContext(t, NewKV())
	ctx := context.Background()

	got, err := qjs.Eval(ctx, `
		kv_set("a", "1");
		kv_set("b", "2");
		kv_delete("a");
		kv_keys().join(",");
	`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Equal(value.String("b")) {
		t.Errorf("kv_keys = %s, want \"b\"", got)
	}
}

func TestKVLimits(t *testing.T) {
	qjs := newTestContext(t, NewKV(WithMaxValueSize(4), WithMaxEntries(1)))
	ctx := context.Background()

	_, err := qjs.Eval(ctx, `kv_set("k", "way too long")`)
	if err == nil || !strings.Contains(err.Error(), "max size") {
		t.Errorf("oversized value error = %v", err)
	}

	if _, err := qjs.Eval(ctx, `kv_set("k", "ok")`); err != nil {
		t.Fatalf("kv_set: %v", err)
	}
	_, err = qjs.Eval(ctx, `kv_set("other", "x")`)
	if err == nil || !strings.Contains(err.Error(), "full") {
		t.Errorf("full store error = %v", err)
	}

	// Overwriting an existing key is allowed at capacity.
	if _, err := qjs.Eval(ctx, `kv_set("k", "new")`); err != nil {
		t.Errorf("overwrite at capacity: %v", err)
	}
}

func TestClock(t *testing.T) {
	clock := NewClock()
	fixed := int64(1_700_000_000)
	clock.Now = func() time.Time { return time.Unix(fixed, 0) }

	qjs := newTestContext(t, clock)
	got, err := qjs.Eval(context.Background(), `time_now()`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	f, ok := got.AsFloat()
	if !ok || f != float64(fixed) {
		t.Errorf("time_now = %s, want %d", got, fixed)
	}
}
