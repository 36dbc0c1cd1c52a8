package bridge

import (
	"context"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// Promise is a host-controlled guest promise. Settle it with Resolve or
// Reject; only the first settlement has an effect. Settling queues the
// guest's reaction jobs, which run on the next ExecutePendingJob.
type Promise struct {
	c       *Context
	promise *guestRef
	resolve engine.ValuePtr
	reject  engine.ValuePtr
	settled bool
}

// NewPromise creates a pending promise with host-held settle functions.
func (c *Context) NewPromise(ctx context.Context) (*Promise, error) {
	promise, resolve, reject, err := c.eng.NewPromiseCapability(ctx, c.ptr)
	if err != nil {
		return nil, err
	}
	return &Promise{
		c:       c,
		promise: c.newRef(promise),
		resolve: resolve,
		reject:  reject,
	}, nil
}

// Value returns the promise as an Opaque value with its own reference. Bind
// it to a global or pass it into guest code.
func (p *Promise) Value() value.Value {
	return value.Opaque(p.promise.Clone())
}

// Resolve settles the promise with v. A no-op after the first settlement.
func (p *Promise) Resolve(ctx context.Context, v value.Value) error {
	return p.settle(ctx, p.resolve, v)
}

// Reject settles the promise with v as the rejection reason. A no-op after
// the first settlement.
func (p *Promise) Reject(ctx context.Context, v value.Value) error {
	return p.settle(ctx, p.reject, v)
}

func (p *Promise) settle(ctx context.Context, fn engine.ValuePtr, v value.Value) error {
	if p.settled {
		return nil
	}

	raw, err := p.c.serialize(ctx, v)
	if err != nil {
		return err
	}

	this, err := p.c.eng.NewUndefined(ctx, p.c.ptr)
	if err != nil {
		p.c.eng.FreeValue(ctx, p.c.ptr, raw)
		return err
	}

	res, err := p.c.eng.Call(ctx, p.c.ptr, fn, this, []engine.ValuePtr{raw})
	res, err = p.c.checked(ctx, res, err)
	p.c.eng.FreeValue(ctx, p.c.ptr, this)
	p.c.eng.FreeValue(ctx, p.c.ptr, raw)
	if err != nil {
		return err
	}
	p.c.eng.FreeValue(ctx, p.c.ptr, res)

	// Both settle functions are dead after the first settlement.
	p.settled = true
	p.c.eng.FreeValue(ctx, p.c.ptr, p.resolve)
	p.c.eng.FreeValue(ctx, p.c.ptr, p.reject)
	return nil
}

// Release gives back the promise reference and, when the promise was never
// settled, the settle functions.
func (p *Promise) Release(ctx context.Context) {
	p.promise.Release()
	if !p.settled {
		p.settled = true
		p.c.eng.FreeValue(ctx, p.c.ptr, p.resolve)
		p.c.eng.FreeValue(ctx, p.c.ptr, p.reject)
	}
}

// RejectionTracker observes promise rejection state changes. handled=false
// reports a rejection with no handler attached; a later handled=true call
// for the same promise retracts it.
type RejectionTracker interface {
	TrackPromiseRejection(promise, reason value.Value, handled bool)
}

// SetPromiseRejectionTracker installs t, replacing any previous tracker.
// The promise and reason values passed to the tracker are released when the
// tracker returns; Clone the references to keep them.
func (c *Context) SetPromiseRejectionTracker(ctx context.Context, t RejectionTracker) error {
	c.tracker = t
	return c.eng.SetRejectionHook(ctx, func(goCtx context.Context, jsctx engine.ContextPtr, promise, reason engine.ValuePtr, handled bool) {
		if c.tracker == nil {
			return
		}
		pv, err := c.opaque(goCtx, promise)
		if err != nil {
			return
		}
		rv, err := c.deserialize(goCtx, reason)
		if err != nil {
			pv.Release()
			return
		}
		c.tracker.TrackPromiseRejection(pv, rv, handled)
		pv.Release()
		rv.Release()
	})
}
