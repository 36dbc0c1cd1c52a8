// Package bench measures the cost of crossing the host/guest boundary.
//
// Run with: go test -bench=. -benchtime=3x ./bench/
package bench

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/caffeineduck/quickjs/bridge"
	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// --- Cold start: new runtime each time ---

func BenchmarkColdStart(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		qjs, err := bridge.New(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := qjs.Eval(ctx, `1+1`); err != nil {
			b.Fatal(err)
		}
		qjs.Close(ctx)
	}
}

// --- Warm: reuse the context ---

func newBenchContext(b *testing.B) *bridge.Context {
	b.Helper()
	ctx := context.Background()
	qjs, err := bridge.New(ctx)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { qjs.Close(ctx) })
	return qjs
}

func BenchmarkEval(b *testing.B) {
	qjs := newBenchContext(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, err := qjs.Eval(ctx, `1+1`)
		if err != nil {
			b.Fatal(err)
		}
		v.Release()
	}
}

func BenchmarkEvalComputation(b *testing.B) {
	qjs := newBenchContext(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, err := qjs.Eval(ctx, `
			let sum = 0;
			for (let i = 0; i < 1000; i++) sum += i * i;
			sum;
		`)
		if err != nil {
			b.Fatal(err)
		}
		v.Release()
	}
}

func BenchmarkCallbackRoundTrip(b *testing.B) {
	qjs := newBenchContext(b)
	ctx := context.Background()
	if err := qjs.RegisterFunc(ctx, "add", func(a, c int32) int32 { return a + c }); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, err := qjs.Eval(ctx, `add(1, 2)`)
		if err != nil {
			b.Fatal(err)
		}
		v.Release()
	}
}

func BenchmarkValueRoundTrip(b *testing.B) {
	qjs := newBenchContext(b)
	ctx := context.Background()
	payload := value.Object(map[string]value.Value{
		"id":   value.Int(7),
		"name": value.String("bench"),
		"tags": value.Array([]value.Value{value.String("a"), value.String("b")}),
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := qjs.SetGlobal(ctx, "payload", payload); err != nil {
			b.Fatal(err)
		}
		v, err := qjs.GetGlobal(ctx, "payload")
		if err != nil {
			b.Fatal(err)
		}
		v.Release()
	}
}

func BenchmarkPromiseDrain(b *testing.B) {
	qjs := newBenchContext(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, err := qjs.Eval(ctx, `Promise.resolve(1).then(x => x + 1)`)
		if err != nil {
			b.Fatal(err)
		}
		v.Release()
		if err := qjs.Drain(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Disk cache: simulates repeated CLI invocations ---

func TestDiskCacheBenefit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping cache timing in short mode")
	}

	cacheDir, err := os.MkdirTemp("", "quickjs-bench-cache")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(cacheDir)

	ctx := context.Background()
	var times []time.Duration

	for i := 0; i < 3; i++ {
		start := time.Now()
		qjs, err := bridge.New(ctx, bridge.WithEngineOptions(engine.WithDiskCache(cacheDir)))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := qjs.Eval(ctx, `1+1`); err != nil {
			t.Fatal(err)
		}
		qjs.Close(ctx)
		times = append(times, time.Since(start))
	}

	for i, d := range times {
		label := "cached"
		if i == 0 {
			label = "compile"
		}
		t.Logf("call %d (%s): %v", i+1, label, d)
	}
}
