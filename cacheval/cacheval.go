// Atomic value with validity timeout.
// "modified" timestamp is updated after value, without consistency.
// Usage scenario examples: DNS resolve, sensor reading.
// All methods except `Init` are thread-safe.
package cacheval

import (
	"time"

	"github.com/temoto/atomic_clock"
	"github.com/temoto/atomic_value"
)

// Cached holds one value of any type. Values go through atomic_value.Ref,
// so T is unrestricted but every Set allocates. For word-size T see Word.
type Cached[T any] struct {
	value   atomic_value.Ref[T]
	updated *atomic_clock.Clock
	valid   time.Duration
}

// Not thread-safe. `valid` duration cannot be changed later.
func (c *Cached[T]) Init(valid time.Duration) {
	c.updated = atomic_clock.New()
	c.valid = valid
}

func (c *Cached[T]) get(now int64) (T, bool) {
	v := c.value.Load()
	clock := atomic_clock.New()
	clock.Set(now)
	age := clock.Sub(c.updated)
	return v, age >= 0 && age <= c.valid
}

// Returns current (possibly stale) value. Fast and cheap.
func (c *Cached[T]) Get() T { return c.value.Load() }

// Returns current value and true if it's fresh. Costs current timestamp lookup.
func (c *Cached[T]) GetFresh() (T, bool) { return c.get(atomic_clock.Source()) }

// Always returns fresh value.
// If value is stale, runs `f()`.
// It is `f()` responsibility to update value with `Set()` method.
// No cache stampede guard.
// May return value from concurrent `GetOrUpdate` or `Set`.
// Costs current timestamp lookup.
func (c *Cached[T]) GetOrUpdate(f func()) T {
	now := atomic_clock.Source()
	v, ok := c.get(now)
	if !ok {
		f()
		v = c.value.Load()
	}
	return v
}

// Updates value and modified timestamp.
// Both value and timestamp are updated atomically, but not consistently with each other.
// Costs current timestamp lookup.
func (c *Cached[T]) Set(new T) {
	c.value.Store(new)
	c.updated.SetNow()
}
