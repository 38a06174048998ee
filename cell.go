package atomic_value

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/juju/errors"
)

// wordSize is the capacity of the atomic word backing every Cell, in bytes.
const wordSize = 8

// Cell is a lock-free container for a small value of type T. The value
// lives bit-packed inside one 64-bit atomic word, so T must be at most
// 8 bytes and must not carry pointers in any form (pointer, string, slice,
// map, chan, func, interface, also nested in structs/arrays): the GC cannot
// see a pointer disguised as word bits. New enforces both rules.
//
// The zero Cell holds the zero T and is ready to use for any legal T.
// A Cell must not be copied after first use.
//
// Values are compared as raw bit patterns, never with Go ==. For float
// members that means -0 != +0 and NaN == bit-identical NaN, which is what
// keeps CAS retry loops from stalling on NaN.
type Cell[T any] struct {
	bits atomic.Uint64
}

// New returns a Cell holding initial, or an error when T cannot live in a
// single machine word. Oversized or pointer-carrying types should use Ref
// instead.
func New[T any](initial T) (*Cell[T], error) {
	if err := checkWordType[T](); err != nil {
		return nil, errors.Trace(err)
	}
	c := new(Cell[T])
	c.bits.Store(pack(initial))
	return c, nil
}

func checkWordType[T any]() error {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	if size := t.Size(); size > wordSize {
		return errors.Errorf("atomic_value: type %v size=%d exceeds word size=%d, use Ref", t, size, wordSize)
	}
	if k := indirectKind(t); k != "" {
		return errors.Errorf("atomic_value: type %v contains %s, GC would lose it inside a word, use Ref", t, k)
	}
	return nil
}

// indirectKind names the first pointer-like kind found inside t, or "".
func indirectKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Chan, reflect.Func,
		reflect.Interface, reflect.Map, reflect.Slice, reflect.String:
		return t.Kind().String()
	case reflect.Array:
		return indirectKind(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if k := indirectKind(t.Field(i).Type); k != "" {
				return k
			}
		}
	}
	return ""
}

// pack copies the raw bytes of v to the front of a zeroed word. Unused
// bytes are always zero, so two values are bit-equal exactly when their
// packed words are. The size branch is constant per instantiation and
// compiles away for every legal T; it only fires for an oversized T smuggled
// in through a zero-value Cell that skipped New.
func pack[T any](v T) uint64 {
	if unsafe.Sizeof(v) > wordSize {
		panic("atomic_value: value does not fit in a word, use Ref")
	}
	var u uint64
	*(*T)(unsafe.Pointer(&u)) = v
	return u
}

func unpack[T any](u uint64) (v T) {
	if unsafe.Sizeof(v) > wordSize {
		panic("atomic_value: value does not fit in a word, use Ref")
	}
	v = *(*T)(unsafe.Pointer(&u))
	return v
}

// racyWord exposes the storage under the atomic word for Racy* accessors.
// atomic.Uint64 is zero-size fields plus the word itself.
func (c *Cell[T]) racyWord() *uint64 {
	return (*uint64)(unsafe.Pointer(&c.bits))
}

// Load returns the current value with sequentially consistent ordering.
func (c *Cell[T]) Load() T {
	return unpack[T](c.bits.Load())
}

// RacyLoad returns the current value with no atomicity or ordering
// guarantee. Only for single-threaded or externally synchronized use.
func (c *Cell[T]) RacyLoad() T {
	return unpack[T](*c.racyWord())
}

// Store publishes v with sequentially consistent ordering.
func (c *Cell[T]) Store(v T) {
	c.bits.Store(pack(v))
}

// RacyStore writes v with no atomicity or ordering guarantee.
func (c *Cell[T]) RacyStore(v T) {
	*c.racyWord() = pack(v)
}

// Swap stores v and returns the immediately prior value. Single hardware
// exchange, no retry.
func (c *Cell[T]) Swap(v T) (old T) {
	return unpack[T](c.bits.Swap(pack(v)))
}

// CompareAndSwap stores new only if the cell currently holds old, bit for
// bit. Exactly one hardware attempt, no retry. prev is the value observed
// just before the attempt: on success it bit-equals old and the cell now
// holds new; on failure the cell was not changed by this call. prev equal
// to old with swapped false means another writer won between observation
// and attempt.
func (c *Cell[T]) CompareAndSwap(old, new T) (prev T, swapped bool) {
	oldw := pack(old)
	obs := c.bits.Load()
	if obs != oldw {
		return unpack[T](obs), false
	}
	if c.bits.CompareAndSwap(oldw, pack(new)) {
		return old, true
	}
	return unpack[T](obs), false
}

// SpinWait returns once the cell bit-equals target. Spins with Backoff,
// never parks on an OS primitive and never times out on its own.
func (c *Cell[T]) SpinWait(target T) T {
	w := pack(target)
	var b Backoff
	for c.bits.Load() != w {
		b.Once()
	}
	return target
}

// Update applies f in the canonical lock-free retry loop: observe, map,
// CAS, and on a lost race try again from a fresh observation, until one
// attempt lands. f must be deterministic for a given input and may run
// several times per call; side effects inside it are the caller's problem.
func (c *Cell[T]) Update(f func(T) T) (prev, cur T) {
	var b Backoff
	for {
		obs := c.bits.Load()
		prev = unpack[T](obs)
		cur = f(prev)
		if c.bits.CompareAndSwap(obs, pack(cur)) {
			return prev, cur
		}
		b.Once()
	}
}

// TryUpdateFrom computes f(old) once and attempts exactly one CAS from old,
// the caller's best known current value. No retry: a concurrent writer
// fails the call. On failure prev and cur both report the value seen right
// after the attempt and the cell keeps it.
func (c *Cell[T]) TryUpdateFrom(old T, f func(T) T) (prev, cur T, swapped bool) {
	cand := f(old)
	if c.bits.CompareAndSwap(pack(old), pack(cand)) {
		return old, cand, true
	}
	cur = c.Load()
	return cur, cur, false
}

// TryUpdateIf is the predicate-gated single try. It observes the current
// value, computes the candidate and asks pred to approve the transition.
// Rejection returns (cur, cur, false) immediately, no retry, no backoff.
// After approval the CAS runs from the exact observed value; losing that
// race restarts the whole observe-map-approve cycle, because approval of a
// stale pair must not commit a fresh one. Only a predicate rejection makes
// the call fail.
func (c *Cell[T]) TryUpdateIf(pred func(cur, cand T) bool, f func(T) T) (prev, cur T, swapped bool) {
	var b Backoff
	for {
		obs := c.bits.Load()
		prev = unpack[T](obs)
		cand := f(prev)
		if !pred(prev, cand) {
			return prev, prev, false
		}
		if c.bits.CompareAndSwap(obs, pack(cand)) {
			return prev, cand, true
		}
		b.Once()
	}
}

// SpinUpdateFrom waits until the cell bit-equals old, then swaps in f(old).
// A racing writer between the wait and the CAS just resumes the wait, so
// the result is always (old, f(old)) and exactly one winning CAS ran from
// old.
func (c *Cell[T]) SpinUpdateFrom(old T, f func(T) T) (prev, cur T) {
	oldw := pack(old)
	cand := f(old)
	candw := pack(cand)
	var b Backoff
	for {
		if c.bits.Load() == oldw && c.bits.CompareAndSwap(oldw, candw) {
			return old, cand
		}
		b.Once()
	}
}

// SpinUpdateIf keeps cycling observe-map-approve until pred accepts a
// transition and the CAS from that exact observation lands. Both a
// rejection and a lost race back off and start over with a fresh value;
// unlike TryUpdateIf this never returns failure.
func (c *Cell[T]) SpinUpdateIf(pred func(cur, cand T) bool, f func(T) T) (prev, cur T) {
	var b Backoff
	for {
		obs := c.bits.Load()
		prev = unpack[T](obs)
		cand := f(prev)
		if pred(prev, cand) && c.bits.CompareAndSwap(obs, pack(cand)) {
			return prev, cand
		}
		b.Once()
	}
}

// String formats the current value, read with one Load.
func (c *Cell[T]) String() string {
	return fmt.Sprint(c.Load())
}
