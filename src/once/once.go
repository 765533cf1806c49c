// Package once provides a single-use slot for resolution callbacks.
package once

import "sync/atomic"

// Callback holds at most one pending continuation. Reading it clears it, so the
// stored function is handed out at most once no matter how many callers race.
type Callback[T any] struct {
	fn atomic.Pointer[func(T)]
}

// New returns a cell holding fn. A nil fn yields an already-consumed cell.
func New[T any](fn func(T)) *Callback[T] {
	c := &Callback[T]{}
	if fn != nil {
		c.fn.Store(&fn)
	}
	return c
}

// Take removes and returns the stored function.
func (c *Callback[T]) Take() (func(T), bool) {
	p := c.fn.Swap(nil)
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Fire invokes the stored function with v. It returns false without doing
// anything when the function was already taken.
func (c *Callback[T]) Fire(v T) bool {
	fn, ok := c.Take()
	if !ok {
		return false
	}
	fn(v)
	return true
}

// Pending reports whether the function is still stored.
func (c *Callback[T]) Pending() bool { return c.fn.Load() != nil }
