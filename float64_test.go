package atomic_value

import (
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestF64AddSub(t *testing.T) {
	t.Parallel()

	f := NewF64(0)
	prev, cur := f.Add(2.5)
	assert.Equal(t, 0.0, prev)
	assert.Equal(t, 2.5, cur)
	prev, cur = f.Sub(1.25)
	assert.Equal(t, 2.5, prev)
	assert.Equal(t, 1.25, cur)
	prev, cur = f.Inc()
	assert.Equal(t, 1.25, prev)
	assert.Equal(t, 2.25, cur)
	prev, cur = f.Dec()
	assert.Equal(t, 2.25, prev)
	assert.Equal(t, 1.25, cur)
	assert.Equal(t, 1.25, f.Load())
}

func TestF64MulDiv(t *testing.T) {
	t.Parallel()

	f := NewF64(1.5)
	prev, cur := f.Mul(4)
	assert.Equal(t, 1.5, prev)
	assert.Equal(t, 6.0, cur)
	prev, cur = f.Div(3)
	assert.Equal(t, 6.0, prev)
	assert.Equal(t, 2.0, cur)

	// IEEE semantics, not errors
	_, cur = f.Div(0)
	assert.True(t, math.IsInf(cur, 1))
	f.Store(-5)
	_, cur = f.Div(0)
	assert.True(t, math.IsInf(cur, -1))
	f.Store(0)
	_, cur = f.Div(0)
	assert.True(t, math.IsNaN(cur))
}

func TestF64NaN(t *testing.T) {
	t.Parallel()

	f := NewF64(math.NaN())
	assert.True(t, math.IsNaN(f.Load()))

	_, cur := f.Add(1)
	assert.True(t, math.IsNaN(cur))

	// math.NaN() bits are stable, so a bit-identical comparand still matches
	f.Store(math.NaN())
	prev, swapped := f.CompareAndSwap(math.NaN(), 1)
	assert.True(t, swapped)
	assert.True(t, math.IsNaN(prev))
	assert.Equal(t, 1.0, f.Load())
}

func TestF64CompareAndSwap(t *testing.T) {
	t.Parallel()

	f := NewF64(10)
	prev, swapped := f.CompareAndSwap(10, 11)
	assert.True(t, swapped)
	assert.Equal(t, 10.0, prev)

	prev, swapped = f.CompareAndSwap(10, 12)
	assert.False(t, swapped)
	assert.Equal(t, 11.0, prev)
	assert.Equal(t, 11.0, f.Load())
}

func TestF64SwapRacy(t *testing.T) {
	t.Parallel()

	f := NewF64(1)
	assert.Equal(t, 1.0, f.Swap(2))
	assert.Equal(t, 2.0, f.RacyLoad())
	f.RacyStore(3)
	assert.Equal(t, 3.0, f.Load())
}

func TestF64SpinWaitDelta(t *testing.T) {
	t.Parallel()

	f := NewF64(1)
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Store(9.97)
	}()
	got := f.SpinWaitDelta(10, 0.05)
	assert.Equal(t, 9.97, got)
}

func TestF64SpinWaitRange(t *testing.T) {
	t.Parallel()

	f := NewF64(6) // hi is exclusive, 6.0 must not satisfy [5, 6)
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Store(5.25)
	}()
	got := f.SpinWaitRange(5, 6)
	assert.Equal(t, 5.25, got)
}

func TestF64SpinSwapDelta(t *testing.T) {
	t.Parallel()

	f := NewF64(10.02)
	prev := f.SpinSwapDelta(1, 10, 0.05)
	assert.Equal(t, 10.02, prev)
	assert.Equal(t, 1.0, f.Load())

	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Store(9.98)
	}()
	prev = f.SpinSwapDelta(5, 10, 0.1)
	assert.Equal(t, 9.98, prev)
	assert.Equal(t, 5.0, f.Load())
}

func TestF64SpinSwapRange(t *testing.T) {
	t.Parallel()

	f := NewF64(6)
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Store(5.9)
	}()
	prev := f.SpinSwapRange(7, 5, 6)
	assert.Equal(t, 5.9, prev)
	assert.Equal(t, 7.0, f.Load())
}

func TestF64TrySwapDelta(t *testing.T) {
	t.Parallel()

	f := NewF64(10)
	prev, swapped := f.TrySwapDelta(20, 10.5, 1)
	assert.True(t, swapped)
	assert.Equal(t, 10.0, prev)
	assert.Equal(t, 20.0, f.Load())

	// now 20 is out of tolerance around 10.5, fails without waiting
	prev, swapped = f.TrySwapDelta(5, 10.5, 1)
	assert.False(t, swapped)
	assert.Equal(t, 20.0, prev)
	assert.Equal(t, 20.0, f.Load())
}

func TestF64Update(t *testing.T) {
	t.Parallel()

	f := NewF64(2)
	prev, cur := f.Update(func(v float64) float64 { return v * v })
	assert.Equal(t, 2.0, prev)
	assert.Equal(t, 4.0, cur)

	prev, cur, swapped := f.TryUpdateFrom(4, func(v float64) float64 { return v + 1 })
	assert.True(t, swapped)
	assert.Equal(t, 4.0, prev)
	assert.Equal(t, 5.0, cur)

	prev, cur, swapped = f.TryUpdateFrom(4, func(v float64) float64 { return v + 1 })
	assert.False(t, swapped)
	assert.Equal(t, 5.0, prev)
	assert.Equal(t, 5.0, cur)

	prev, cur, swapped = f.TryUpdateIf(
		func(cur, cand float64) bool { return cand < cur },
		func(v float64) float64 { return v + 1 },
	)
	assert.False(t, swapped)
	assert.Equal(t, 5.0, prev)
	assert.Equal(t, 5.0, cur)
	assert.Equal(t, 5.0, f.Load())

	prev, cur = f.SpinUpdateIf(
		func(cur, cand float64) bool { return cand > cur },
		func(v float64) float64 { return v + 1 },
	)
	assert.Equal(t, 5.0, prev)
	assert.Equal(t, 6.0, cur)
}

func TestF64SpinUpdateFrom(t *testing.T) {
	t.Parallel()

	f := NewF64(1)
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Store(5)
	}()
	prev, cur := f.SpinUpdateFrom(5, func(v float64) float64 { return v * 3 })
	assert.Equal(t, 5.0, prev)
	assert.Equal(t, 15.0, cur)
}

func TestF64Stress(t *testing.T) {
	const concurrency = 100
	const N = 2000
	const step = 0.001

	rand := rand.New(rand.NewSource(time.Now().UnixNano()))
	var f F64
	initial := (rand.Float64() - 0.5) * (1 << 16)
	f.Store(initial)

	wg := sync.WaitGroup{}
	wg.Add(concurrency)
	fun := func() {
		max := -math.MaxFloat64
		for j := 1; j <= N; j++ {
			v := f.Load()
			if v > max {
				max = v
			} else if v < max {
				t.Error("unexpected decrease")
			}
			f.Add(step)
		}
		wg.Done()
	}
	for i := 1; i <= concurrency; i++ {
		go fun()
	}
	wg.Wait()
	expect := initial
	for i := 1; i <= concurrency*N; i++ {
		expect += step // match accumulated precision error
	}
	final := f.Load()
	assert.Equal(t, expect, final, "initial=%f final=%f", initial, final)
}

func TestF64String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.5", NewF64(1.5).String())
	assert.Equal(t, "0", NewF64(0).String())
	assert.Equal(t, "+Inf", NewF64(math.Inf(1)).String())
}

func TestF64JSON(t *testing.T) {
	t.Parallel()

	f := NewF64(3.5)
	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, "3.5", string(b))

	require.NoError(t, json.Unmarshal([]byte("12.25"), f))
	assert.Equal(t, 12.25, f.Load())

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), f))
}
