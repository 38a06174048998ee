package atomic_value

import (
	"fmt"
	"sync/atomic"
)

// Ref is the escape hatch for values Cell rejects: types wider than a word
// or containing pointers. Each Store boxes a copy of the value and swaps a
// pointer, so loads are always internally consistent, but unlike Cell every
// write allocates and there is no value-level compare and swap. Update
// provides atomic read-modify-write keyed on the box identity instead.
//
// Loaded values are snapshots. Mutating a value between Load and Store does
// not publish the change; Store it back, or use Update for the whole cycle.
//
// The zero Ref holds the zero value of T.
type Ref[T any] struct {
	p atomic.Pointer[T]
}

// NewRef returns a Ref holding initial.
func NewRef[T any](initial T) *Ref[T] {
	r := new(Ref[T])
	r.p.Store(&initial)
	return r
}

// Load returns the current value.
func (r *Ref[T]) Load() (v T) {
	if p := r.p.Load(); p != nil {
		v = *p
	}
	return v
}

// Store publishes a copy of v.
func (r *Ref[T]) Store(v T) {
	r.p.Store(&v)
}

// Swap publishes a copy of v and returns the prior value.
func (r *Ref[T]) Swap(v T) (old T) {
	if p := r.p.Swap(&v); p != nil {
		old = *p
	}
	return old
}

// Update applies fn in a retry loop. The race is detected on box identity:
// if another goroutine published between observation and attempt, the cycle
// reruns on the fresh value. Each attempt boxes one candidate. Same fn
// contract as Cell.Update.
func (r *Ref[T]) Update(fn func(T) T) (prev, cur T) {
	var b Backoff
	for {
		op := r.p.Load()
		if op != nil {
			prev = *op
		} else {
			var zero T
			prev = zero
		}
		cur = fn(prev)
		np := new(T)
		*np = cur
		if r.p.CompareAndSwap(op, np) {
			return prev, cur
		}
		b.Once()
	}
}

// String formats the current value like %v does, from one Load.
func (r *Ref[T]) String() string {
	return fmt.Sprint(r.Load())
}
