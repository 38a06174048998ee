package atomic_value

import (
	"runtime"
	"time"
)

// Backoff paces a spin loop. First Hot calls return immediately so the
// caller re-checks at full speed, next Yield calls give the scheduler a
// chance, after that each call sleeps, doubling from SleepMin up to
// SleepMax. Zero value uses defaults. Not safe for concurrent use; each
// waiting goroutine owns its Backoff, usually on the stack.
//
// Use scenario:
//
//	var b Backoff
//	for !ready() {
//		b.Once()
//	}
type Backoff struct {
	Hot      uint32        // immediate re-checks, default 64
	Yield    uint32        // runtime.Gosched rounds after that, default 16
	SleepMin time.Duration // first sleep, default 1us
	SleepMax time.Duration // sleep cap, default 1ms

	n     uint32
	sleep time.Duration
}

const (
	defaultHot      = 64
	defaultYield    = 16
	defaultSleepMin = 1 * time.Microsecond
	defaultSleepMax = 1 * time.Millisecond
)

// Once pauses according to how long this Backoff has been spinning.
func (b *Backoff) Once() {
	hot, yield := b.Hot, b.Yield
	if hot == 0 {
		hot = defaultHot
	}
	if yield == 0 {
		yield = defaultYield
	}
	switch {
	case b.n < hot:
		// hot phase: caller's next re-check is the wait
		b.n++
	case b.n < hot+yield:
		b.n++
		runtime.Gosched()
	default:
		if b.sleep == 0 {
			b.sleep = b.SleepMin
			if b.sleep == 0 {
				b.sleep = defaultSleepMin
			}
		}
		time.Sleep(b.sleep)
		max := b.SleepMax
		if max == 0 {
			max = defaultSleepMax
		}
		b.sleep *= 2
		if b.sleep > max {
			b.sleep = max
		}
	}
}

// Reset returns to the hot phase. Call after the awaited condition held, if
// the same Backoff is reused for another wait.
func (b *Backoff) Reset() {
	b.n = 0
	b.sleep = 0
}
