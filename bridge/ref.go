package bridge

import (
	"context"
	"fmt"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// guestRef is the bridge's value.GuestRef: one owned guest reference bound
// to the context that produced it. Reference management uses a background
// context; these are short non-blocking shim calls.
type guestRef struct {
	c        *Context
	handle   engine.ValuePtr
	released bool
}

// newRef wraps an already-owned raw handle.
func (c *Context) newRef(raw engine.ValuePtr) *guestRef {
	return &guestRef{c: c, handle: raw}
}

// dupRef acquires a fresh reference to raw and wraps it.
func (c *Context) dupRef(ctx context.Context, raw engine.ValuePtr) (*guestRef, error) {
	dup, err := c.eng.DupValue(ctx, c.ptr, raw)
	if err != nil {
		return nil, err
	}
	return c.newRef(dup), nil
}

func (r *guestRef) Clone() value.GuestRef {
	dup, err := r.c.eng.DupValue(context.Background(), r.c.ptr, r.handle)
	if err != nil {
		// The instance is unusable; hand back a dead ref rather than panic.
		return &guestRef{c: r.c, handle: r.handle, released: true}
	}
	return &guestRef{c: r.c, handle: dup}
}

func (r *guestRef) Release() {
	if r.released {
		return
	}
	r.released = true
	r.c.eng.FreeValue(context.Background(), r.c.ptr, r.handle)
}

func (r *guestRef) Handle() int32 { return int32(r.handle) }

// ownRef extracts the guest reference of an Opaque or Exception value and
// verifies it belongs to this context.
func (c *Context) ownRef(v value.Value) (*guestRef, error) {
	ref, ok := v.AsOpaque()
	if !ok {
		ref, ok = v.AsException()
	}
	if !ok {
		return nil, fmt.Errorf("%w: got %s, want an opaque reference", value.ErrUnexpectedType, v.Type())
	}
	gr, ok := ref.(*guestRef)
	if !ok || gr.c != c {
		return nil, fmt.Errorf("%w: reference belongs to another context", value.ErrUnexpectedType)
	}
	if gr.released {
		return nil, fmt.Errorf("%w: reference already released", value.ErrUnexpectedType)
	}
	return gr, nil
}
