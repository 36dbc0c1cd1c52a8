// Package quickjs embeds a QuickJS JavaScript engine compiled to WebAssembly
// and bridges it to Go values.
//
// # Overview
//
// Scripts run in isolated WASM contexts with zero default capabilities.
// Filesystem, network, and clock access must be explicitly enabled through
// host function bundles.
//
// # Basic Usage
//
//	qjs, _ := bridge.New(ctx)
//	defer qjs.Close(ctx)
//
//	result, _ := qjs.Eval(ctx, `1 + 2`)
//	n, _ := result.AsInt() // 3
//
//	// Expose a Go function to scripts
//	qjs.RegisterFunc(ctx, "add_sq", func(a, b int32) int32 { return a + b*b })
//	qjs.Eval(ctx, `add_sq(10, 20)`) // 410
//
//	// Drain promise jobs after async code
//	qjs.Eval(ctx, `Promise.resolve(1).then(v => globalThis.out = v)`)
//	qjs.Drain(ctx)
//
// # Enabling Capabilities
//
//	hostfunc.InstallAll(ctx, qjs,
//	    hostfunc.NewKV(),
//	    hostfunc.NewClock(),
//	    hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: []string{"api.example.com"}}),
//	)
//
// See the [bridge], [engine], [value], [console], and [hostfunc] packages for
// detailed API documentation.
package quickjs
