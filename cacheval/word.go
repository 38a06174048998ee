package cacheval

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/atomic_value"
)

// Word is Cached for values that fit an atomic word: counters, flags,
// sensor readings. Set does not allocate. Init rejects the same types
// atomic_value.New rejects.
type Word[T any] struct {
	value   atomic_value.Cell[T]
	updated *atomic_clock.Clock
	valid   time.Duration
}

// Not thread-safe. `valid` duration cannot be changed later.
func (c *Word[T]) Init(valid time.Duration) error {
	var zero T
	if _, err := atomic_value.New(zero); err != nil {
		return errors.Trace(err)
	}
	c.updated = atomic_clock.New()
	c.valid = valid
	return nil
}

func (c *Word[T]) get(now int64) (T, bool) {
	v := c.value.Load()
	clock := atomic_clock.New()
	clock.Set(now)
	age := clock.Sub(c.updated)
	return v, age >= 0 && age <= c.valid
}

// Returns current (possibly stale) value. Fast and cheap.
func (c *Word[T]) Get() T { return c.value.Load() }

// Returns current value and true if it's fresh. Costs current timestamp lookup.
func (c *Word[T]) GetFresh() (T, bool) { return c.get(atomic_clock.Source()) }

// Always returns fresh value. Same contract as Cached.GetOrUpdate.
func (c *Word[T]) GetOrUpdate(f func()) T {
	now := atomic_clock.Source()
	v, ok := c.get(now)
	if !ok {
		f()
		v = c.value.Load()
	}
	return v
}

// Updates value and modified timestamp, each atomic but not consistent
// with the other. Costs current timestamp lookup.
func (c *Word[T]) Set(new T) {
	c.value.Store(new)
	c.updated.SetNow()
}
