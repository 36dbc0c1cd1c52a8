package value

// Resource is a shared mutable cell holding an arbitrary host object that has
// been made visible to the guest runtime. The same cell may be reachable from
// host code and from several guest objects at once; identity is cell identity.
//
// Access goes through With (or the typed As helper), which flags the cell as
// borrowed for the duration of the callback. Resources follow the single
// owning goroutine rule of their context, so the flag only guards against
// reentrant borrows from inside the callback itself.
type Resource struct {
	val  any
	busy bool
}

func newResource(v any) *Resource { return &Resource{val: v} }

// With runs fn with the cell's current contents. fn may replace the contents
// by returning a new value. Panics if the cell is already borrowed.
func (r *Resource) With(fn func(v any) any) {
	if r.busy {
		panic("resource cell already borrowed")
	}
	r.busy = true
	defer func() { r.busy = false }()
	r.val = fn(r.val)
}

// As runs fn with the cell's contents downcast to T and returns fn's result.
// ok is false when the contents are not a T; fn is not called in that case.
func As[T, R any](r *Resource, fn func(v T) R) (out R, ok bool) {
	if r.busy {
		panic("resource cell already borrowed")
	}
	t, ok := r.val.(T)
	if !ok {
		return out, false
	}
	r.busy = true
	defer func() { r.busy = false }()
	return fn(t), true
}

// Is reports whether the cell currently holds a T.
func Is[T any](r *Resource) bool {
	_, ok := r.val.(T)
	return ok
}
