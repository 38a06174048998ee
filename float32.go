package atomic_value

import (
	"math"
	"strconv"
	"sync/atomic"
)

// F32 is the compact float primitive: a float32 in a 32-bit word. Same IEEE
// arithmetic and bit-pattern CAS as F64, half the footprint, fewer
// operations. Use F64 unless the size matters.
//
// The zero F32 holds 0.0.
type F32 uint32

func (f *F32) Load() float32 {
	return math.Float32frombits(atomic.LoadUint32((*uint32)(f)))
}

func (f *F32) RacyLoad() float32 {
	return math.Float32frombits(uint32(*f))
}

func (f *F32) Store(new float32) {
	atomic.StoreUint32((*uint32)(f), math.Float32bits(new))
}

func (f *F32) RacyStore(new float32) {
	*f = F32(math.Float32bits(new))
}

func (f *F32) Swap(new float32) (old float32) {
	return math.Float32frombits(atomic.SwapUint32((*uint32)(f), math.Float32bits(new)))
}

// CompareAndSwap matches bit patterns, like F64.CompareAndSwap.
func (f *F32) CompareAndSwap(old, new float32) (prev float32, swapped bool) {
	oldbits := math.Float32bits(old)
	obs := atomic.LoadUint32((*uint32)(f))
	if obs != oldbits {
		return math.Float32frombits(obs), false
	}
	if atomic.CompareAndSwapUint32((*uint32)(f), oldbits, math.Float32bits(new)) {
		return old, true
	}
	return math.Float32frombits(obs), false
}

func (f *F32) Add(delta float32) (prev, cur float32) {
tryAgain:
	oldbits := atomic.LoadUint32((*uint32)(f))
	old := math.Float32frombits(oldbits)
	new := old + delta
	newbits := math.Float32bits(new)
	if atomic.CompareAndSwapUint32((*uint32)(f), oldbits, newbits) {
		return old, new
	}
	goto tryAgain // can't inline for loop
}

func (f *F32) Sub(delta float32) (prev, cur float32) { return f.Add(-delta) }

func (f *F32) Inc() (prev, cur float32) { return f.Add(1) }

func (f *F32) Dec() (prev, cur float32) { return f.Add(-1) }

func (f *F32) String() string {
	return strconv.FormatFloat(float64(f.Load()), 'g', -1, 32)
}
