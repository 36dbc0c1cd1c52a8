// Package bridge is the embedding surface for running JavaScript in the
// sandboxed QuickJS runtime.
//
// A [Context] evaluates scripts and ES modules, converts values between Go
// and the guest, exposes Go functions as guest callables, embeds Go objects
// as garbage-collected guest resources, and drives the guest job queue.
//
// # Basic Usage
//
//	qjs, err := bridge.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer qjs.Close(ctx)
//
//	v, err := qjs.Eval(ctx, `1 + 2`)
//	// v is value.Int(3)
//
// # Host Functions
//
//	qjs.RegisterFunc(ctx, "add", func(a, b int32) int32 { return a + b })
//	v, _ := qjs.Eval(ctx, `add(1, 2)`)
//
// # Promises and Jobs
//
// The bridge never runs guest jobs behind the caller's back. Settling a
// [Promise] or evaluating async code queues jobs; run them explicitly:
//
//	for {
//	    ran, err := qjs.ExecutePendingJob(ctx)
//	    if err != nil { ... }
//	    if !ran { break }
//	}
//
// or use [Context.Drain].
//
// # Threading
//
// A Context and every value derived from it belong to one owning goroutine.
package bridge
