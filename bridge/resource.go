package bridge

import (
	"context"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// createResource embeds a resource cell in the guest as an object of the
// engine's resource class. The object's opaque slot stores a pin-table
// handle; the cell stays pinned until the guest garbage-collects the object,
// at which point the class finalizer reports the handle exactly once and the
// entry is dropped.
//
// Serializing the same cell twice produces two guest objects pinning the
// cell under two handles; both deserialize back to the same cell.
func (c *Context) createResource(ctx context.Context, r *value.Resource) (engine.ValuePtr, error) {
	cls, err := c.eng.ResourceClass(ctx)
	if err != nil {
		return 0, err
	}

	obj, err := c.eng.NewObjectClass(ctx, c.ptr, cls)
	obj, err = c.checked(ctx, obj, err)
	if err != nil {
		return 0, err
	}

	c.nextHandle++
	handle := c.nextHandle
	c.resources[handle] = r

	if err := c.eng.SetOpaque(ctx, obj, handle); err != nil {
		delete(c.resources, handle)
		c.eng.FreeValue(ctx, c.ptr, obj)
		return 0, err
	}
	return obj, nil
}

// extractResource recovers the pinned cell from a guest object, if it is a
// live object of the resource class. ok=false for any other object.
func (c *Context) extractResource(ctx context.Context, raw engine.ValuePtr) (*value.Resource, bool, error) {
	cls := c.eng.RegisteredResourceClass()
	if cls == 0 {
		return nil, false, nil
	}

	objCls, err := c.eng.GetClassID(ctx, raw)
	if err != nil {
		return nil, false, err
	}
	if objCls != cls {
		return nil, false, nil
	}

	handle, err := c.eng.GetOpaque(ctx, c.ptr, raw, cls)
	if err != nil {
		return nil, false, err
	}
	res, ok := c.resources[handle]
	if !ok {
		return nil, false, nil
	}
	return res, true, nil
}
