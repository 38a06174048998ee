package atomic_value

import (
	"encoding/json"
	"math"
	"strconv"
	"sync/atomic"
	"unsafe"

	"github.com/juju/errors"
)

// F64 is a lock-free float64. Same word discipline as Cell (one atomic
// 64-bit word, bit-pattern equality, CAS retry protocol) implemented
// directly over math.Float64bits, plus numeric operators and tolerance
// variants: bit-exact equality is usually the wrong condition to wait on
// with floats, so the *Delta and *Range operations accept a window instead.
//
// Arithmetic is plain IEEE 754: NaN and infinities propagate, Div by zero
// yields ±Inf or NaN, nothing is reported as an error. CompareAndSwap
// matches bit patterns, so a stored NaN can be swapped out by passing a
// bit-identical NaN, and -0 does not match +0.
//
// The zero F64 holds 0.0. Must not be copied after first use.
type F64 struct {
	bits atomic.Uint64
}

// NewF64 returns an F64 holding initial. float64 always fits the word, so
// unlike New this cannot fail.
func NewF64(initial float64) *F64 {
	f := new(F64)
	f.bits.Store(math.Float64bits(initial))
	return f
}

func (f *F64) racyWord() *uint64 {
	return (*uint64)(unsafe.Pointer(&f.bits))
}

// Load returns the current value with sequentially consistent ordering.
func (f *F64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// RacyLoad returns the current value with no atomicity or ordering
// guarantee. Only for single-threaded or externally synchronized use.
func (f *F64) RacyLoad() float64 {
	return math.Float64frombits(*f.racyWord())
}

// Store publishes v with sequentially consistent ordering.
func (f *F64) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// RacyStore writes v with no atomicity or ordering guarantee.
func (f *F64) RacyStore(v float64) {
	*f.racyWord() = math.Float64bits(v)
}

// Swap stores v and returns the prior value. Single hardware exchange.
func (f *F64) Swap(v float64) (old float64) {
	return math.Float64frombits(f.bits.Swap(math.Float64bits(v)))
}

// CompareAndSwap stores new only if the cell holds a value bit-identical
// to old. One observation, at most one hardware attempt, no retry. See
// Cell.CompareAndSwap for the prev/swapped contract.
func (f *F64) CompareAndSwap(old, new float64) (prev float64, swapped bool) {
	oldw := math.Float64bits(old)
	obs := f.bits.Load()
	if obs != oldw {
		return math.Float64frombits(obs), false
	}
	if f.bits.CompareAndSwap(oldw, math.Float64bits(new)) {
		return old, true
	}
	return math.Float64frombits(obs), false
}

// Add stores prev+delta in a CAS retry loop and returns both sides of the
// transition that landed.
func (f *F64) Add(delta float64) (prev, cur float64) {
tryAgain:
	oldbits := f.bits.Load()
	prev = math.Float64frombits(oldbits)
	cur = prev + delta
	if !f.bits.CompareAndSwap(oldbits, math.Float64bits(cur)) {
		goto tryAgain // can't inline for loop
	}
	return prev, cur
}

// Sub is Add(-delta).
func (f *F64) Sub(delta float64) (prev, cur float64) {
	return f.Add(-delta)
}

// Inc is Add(1).
func (f *F64) Inc() (prev, cur float64) { return f.Add(1) }

// Dec is Add(-1).
func (f *F64) Dec() (prev, cur float64) { return f.Add(-1) }

// Mul stores prev*factor in a CAS retry loop.
func (f *F64) Mul(factor float64) (prev, cur float64) {
tryAgain:
	oldbits := f.bits.Load()
	prev = math.Float64frombits(oldbits)
	cur = prev * factor
	if !f.bits.CompareAndSwap(oldbits, math.Float64bits(cur)) {
		goto tryAgain
	}
	return prev, cur
}

// Div stores prev/divisor in a CAS retry loop. divisor=0 follows IEEE:
// ±Inf, or NaN for 0/0.
func (f *F64) Div(divisor float64) (prev, cur float64) {
tryAgain:
	oldbits := f.bits.Load()
	prev = math.Float64frombits(oldbits)
	cur = prev / divisor
	if !f.bits.CompareAndSwap(oldbits, math.Float64bits(cur)) {
		goto tryAgain
	}
	return prev, cur
}

// SpinWait returns once the cell is bit-identical to target. For floats
// this is usually too strict a condition; prefer SpinWaitDelta.
func (f *F64) SpinWait(target float64) float64 {
	w := math.Float64bits(target)
	var b Backoff
	for f.bits.Load() != w {
		b.Once()
	}
	return target
}

// SpinWaitDelta returns the first observed value within maxDelta of target:
// abs(target-cur) <= maxDelta. A NaN in the cell never satisfies the
// condition.
func (f *F64) SpinWaitDelta(target, maxDelta float64) float64 {
	var b Backoff
	for {
		cur := math.Float64frombits(f.bits.Load())
		if math.Abs(target-cur) <= maxDelta {
			return cur
		}
		b.Once()
	}
}

// SpinWaitRange returns the first observed value in [lo, hi).
func (f *F64) SpinWaitRange(lo, hi float64) float64 {
	var b Backoff
	for {
		cur := math.Float64frombits(f.bits.Load())
		if lo <= cur && cur < hi {
			return cur
		}
		b.Once()
	}
}

// SpinSwapDelta waits until the cell is within maxDelta of comparand, then
// stores new. The CAS expects the exact observed bits, not comparand: the
// stored value may differ from the nominal comparand while still being in
// tolerance, and CASing against comparand itself would never land. If the
// value drifts between observation and attempt the wait restarts. Returns
// the replaced value.
func (f *F64) SpinSwapDelta(new, comparand, maxDelta float64) (prev float64) {
	neww := math.Float64bits(new)
	var b Backoff
	for {
		obs := f.bits.Load()
		cur := math.Float64frombits(obs)
		if math.Abs(comparand-cur) <= maxDelta && f.bits.CompareAndSwap(obs, neww) {
			return cur
		}
		b.Once()
	}
}

// SpinSwapRange waits until the cell is in [lo, hi), then stores new. Same
// exact-observation CAS discipline as SpinSwapDelta. Returns the replaced
// value.
func (f *F64) SpinSwapRange(new, lo, hi float64) (prev float64) {
	neww := math.Float64bits(new)
	var b Backoff
	for {
		obs := f.bits.Load()
		cur := math.Float64frombits(obs)
		if lo <= cur && cur < hi && f.bits.CompareAndSwap(obs, neww) {
			return cur
		}
		b.Once()
	}
}

// TrySwapDelta checks tolerance once: when the current value is farther
// than maxDelta from comparand it fails immediately, no spin. In tolerance,
// it stores new with a CAS from the exact observed value; a lost race
// re-checks the fresh value, a tolerance miss still fails. Returns the
// value the decision was made on.
func (f *F64) TrySwapDelta(new, comparand, maxDelta float64) (prev float64, swapped bool) {
	neww := math.Float64bits(new)
	var b Backoff
	for {
		obs := f.bits.Load()
		cur := math.Float64frombits(obs)
		if math.Abs(comparand-cur) > maxDelta {
			return cur, false
		}
		if f.bits.CompareAndSwap(obs, neww) {
			return cur, true
		}
		b.Once()
	}
}

// Update applies f in the canonical retry loop. Same contract as
// Cell.Update: deterministic f, may run multiple times per call.
func (f *F64) Update(fn func(float64) float64) (prev, cur float64) {
	var b Backoff
	for {
		obs := f.bits.Load()
		prev = math.Float64frombits(obs)
		cur = fn(prev)
		if f.bits.CompareAndSwap(obs, math.Float64bits(cur)) {
			return prev, cur
		}
		b.Once()
	}
}

// TryUpdateFrom computes fn(old) once and attempts exactly one CAS from
// old. Same contract as Cell.TryUpdateFrom.
func (f *F64) TryUpdateFrom(old float64, fn func(float64) float64) (prev, cur float64, swapped bool) {
	cand := fn(old)
	if f.bits.CompareAndSwap(math.Float64bits(old), math.Float64bits(cand)) {
		return old, cand, true
	}
	cur = f.Load()
	return cur, cur, false
}

// TryUpdateIf is the predicate-gated single try. Same contract as
// Cell.TryUpdateIf: rejection fails immediately, a lost CAS race re-runs
// the full observe-map-approve cycle.
func (f *F64) TryUpdateIf(pred func(cur, cand float64) bool, fn func(float64) float64) (prev, cur float64, swapped bool) {
	var b Backoff
	for {
		obs := f.bits.Load()
		prev = math.Float64frombits(obs)
		cand := fn(prev)
		if !pred(prev, cand) {
			return prev, prev, false
		}
		if f.bits.CompareAndSwap(obs, math.Float64bits(cand)) {
			return prev, cand, true
		}
		b.Once()
	}
}

// SpinUpdateFrom waits until the cell is bit-identical to old, then swaps
// in fn(old). Result is always (old, fn(old)).
func (f *F64) SpinUpdateFrom(old float64, fn func(float64) float64) (prev, cur float64) {
	oldw := math.Float64bits(old)
	cand := fn(old)
	candw := math.Float64bits(cand)
	var b Backoff
	for {
		if f.bits.Load() == oldw && f.bits.CompareAndSwap(oldw, candw) {
			return old, cand
		}
		b.Once()
	}
}

// SpinUpdateIf cycles observe-map-approve until an approved transition
// lands. Never fails; see Cell.SpinUpdateIf.
func (f *F64) SpinUpdateIf(pred func(cur, cand float64) bool, fn func(float64) float64) (prev, cur float64) {
	var b Backoff
	for {
		obs := f.bits.Load()
		prev = math.Float64frombits(obs)
		cand := fn(prev)
		if pred(prev, cand) && f.bits.CompareAndSwap(obs, math.Float64bits(cand)) {
			return prev, cand
		}
		b.Once()
	}
}

// String formats the current value like %v does, from one Load.
func (f *F64) String() string {
	return strconv.FormatFloat(f.Load(), 'g', -1, 64)
}

// MarshalJSON encodes the current value, from one Load.
func (f *F64) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Load())
}

// UnmarshalJSON stores the decoded value.
func (f *F64) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.Trace(err)
	}
	f.Store(v)
	return nil
}
