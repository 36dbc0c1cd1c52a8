// Package engine drives the QuickJS WebAssembly shim through wazero.
//
// It owns the wazero runtime, the instantiated shim module, and one guest
// JSRuntime, and exposes the shim's qjs_* exports as typed Go calls. Values
// are referenced by [ValuePtr] handles into the shim's linear memory; every
// handle returned by an engine call owns one guest reference and must be
// released with [Engine.FreeValue] or handed to a consuming call.
//
// Guest-to-host re-entry (native callbacks, resource finalizers, module
// loading, promise rejection tracking) arrives through the "env" host module
// and is routed to hooks installed by the embedding layer. The higher-level
// bridge package is the intended consumer; use engine directly only when the
// raw handle surface is required.
//
// The shim binary is embedded at build time. It is not checked into the
// repository; fetch it with:
//
//	go run ./internal/tools/download
package engine
