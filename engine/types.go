package engine

import "fmt"

// Typed wrappers around raw guest pointers. The shim hands these back as
// 32-bit offsets into its linear memory; keeping them as distinct types stops
// a context pointer from being passed where a value handle belongs.

// RuntimePtr references a guest JSRuntime.
type RuntimePtr int32

// ContextPtr references a guest JSContext.
type ContextPtr int32

// ValuePtr references a boxed guest JSValue. Every ValuePtr returned by an
// engine call owns one reference and must be given back with FreeValue (or
// transferred to a consuming call such as Throw).
type ValuePtr int32

// ClassID identifies a registered guest object class. Zero means unregistered.
type ClassID int32

func (p RuntimePtr) IsNull() bool { return p == 0 }
func (p ContextPtr) IsNull() bool { return p == 0 }
func (p ValuePtr) IsNull() bool   { return p == 0 }

func (p RuntimePtr) String() string { return fmt.Sprintf("runtime(0x%x)", int32(p)) }
func (p ContextPtr) String() string { return fmt.Sprintf("context(0x%x)", int32(p)) }
func (p ValuePtr) String() string   { return fmt.Sprintf("value(0x%x)", int32(p)) }
