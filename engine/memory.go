package engine

import (
	"context"
	"fmt"
)

// allocBytes copies b into guest memory via the shim allocator. The caller
// frees the block with freePtr once the guest call that consumes it returns.
func (e *Engine) allocBytes(ctx context.Context, b []byte) (uint32, error) {
	res, err := e.exp.alloc.Call(ctx, uint64(len(b)))
	if err != nil {
		return 0, fmt.Errorf("guest alloc: %w", err)
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("guest alloc: out of memory")
	}
	if len(b) > 0 && !e.mem.Write(ptr, b) {
		e.freePtr(ctx, ptr)
		return 0, fmt.Errorf("guest alloc: write out of range")
	}
	return ptr, nil
}

// allocCString copies s into guest memory with a trailing NUL.
func (e *Engine) allocCString(ctx context.Context, s string) (uint32, error) {
	return e.allocBytes(ctx, append([]byte(s), 0))
}

func (e *Engine) freePtr(ctx context.Context, ptr uint32) {
	if ptr == 0 {
		return
	}
	// Deallocation failure means the instance is already unusable.
	_, _ = e.exp.dealloc.Call(ctx, uint64(ptr))
}

func (e *Engine) readBytes(ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	b, ok := e.mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("guest memory read out of range: ptr=%d len=%d", ptr, length)
	}
	// The view aliases guest memory; copy before the guest can move it.
	out := make([]byte, length)
	copy(out, b)
	return out, nil
}

func (e *Engine) readUint64(ptr uint32) (uint64, error) {
	v, ok := e.mem.ReadUint64Le(ptr)
	if !ok {
		return 0, fmt.Errorf("guest memory read out of range: ptr=%d", ptr)
	}
	return v, nil
}

func (e *Engine) readUint32(ptr uint32) (uint32, error) {
	v, ok := e.mem.ReadUint32Le(ptr)
	if !ok {
		return 0, fmt.Errorf("guest memory read out of range: ptr=%d", ptr)
	}
	return v, nil
}

// allocValueArray writes a packed array of value handles into guest memory.
func (e *Engine) allocValueArray(ctx context.Context, vals []ValuePtr) (uint32, error) {
	if len(vals) == 0 {
		return 0, nil
	}
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		u := uint32(int32(v))
		b[4*i] = byte(u)
		b[4*i+1] = byte(u >> 8)
		b[4*i+2] = byte(u >> 16)
		b[4*i+3] = byte(u >> 24)
	}
	return e.allocBytes(ctx, b)
}
