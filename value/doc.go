// Package value defines the host-side representation of guest runtime values.
//
// A [Value] is a tagged union covering the data the bridge can carry across
// the boundary by copy (primitives, strings, arrays, objects, dates, bigints)
// plus three reference variants: [Resourced] host objects embedded in the
// guest, [Opaque] guest values held by reference, and [Exception] for thrown
// guest values.
//
// Opaque and Exception values own a [GuestRef] and must be released with
// [Value.Release] when no longer needed; everything else is plain data.
package value
