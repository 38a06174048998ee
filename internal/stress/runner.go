// Package stress hammers the atomic_value containers with configurable
// concurrent scenarios and checks the linearizability contract: the final
// value must equal every operation applied exactly once, in some total
// order. The cmd/atomic-stress binary is a thin wrapper around this
// package; tests use it directly.
package stress

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/remeh/sizedwaitgroup"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/atomic_value"
	"github.com/temoto/atomic_value/log2"
	"golang.org/x/sys/cpu"
)

// Result is one scenario execution summary, shaped for the sinks.
type Result struct {
	Scenario  string        `json:"scenario"`
	Kind      string        `json:"kind"`
	Workers   int           `json:"workers"`
	Ops       int           `json:"ops"` // per worker
	Begin     int64         `json:"begin_ns"`
	Duration  time.Duration `json:"duration_ns"`
	OpsPerSec float64       `json:"ops_per_sec"`
	Final     float64       `json:"final"`
	Expect    float64       `json:"expect"`
	Verified  bool          `json:"verified"`
	Aborted   bool          `json:"aborted"`
}

// workerSlot keeps the per-worker op counter on its own cache line so the
// accounting does not fight the container under test.
type workerSlot struct {
	ops int64
	_   cpu.CacheLinePad
}

type Runner struct {
	alive *alive.Alive
	log   *log2.Log
}

// NewRunner wires a runner to a lifecycle and a logger, both optional:
// nil alive means nothing ever stops it early, nil log is silent.
func NewRunner(a *alive.Alive, log *log2.Log) *Runner {
	if a == nil {
		a = alive.NewAlive()
	}
	return &Runner{alive: a, log: log}
}

// RunAll executes every scenario, at most cfg.Parallel at a time, and
// returns one result per scenario in config order. Failures are folded
// into a single error after everything finishes; stopping the shared
// Alive aborts scenarios that have not started yet.
func (r *Runner) RunAll(cfg *Config) ([]Result, error) {
	parallel := cfg.Parallel
	if parallel <= 0 {
		parallel = 1
	}
	results := make([]Result, len(cfg.Scenarios))
	errs := make([]error, len(cfg.Scenarios))
	swg := sizedwaitgroup.New(parallel)
	for i, sc := range cfg.Scenarios {
		if !r.alive.IsRunning() {
			results[i] = Result{Scenario: sc.Name, Kind: sc.Kind, Aborted: true}
			errs[i] = errors.Errorf("scenario=%s not started: runner is stopping", sc.Name)
			continue
		}
		swg.Add()
		go func(i int, sc *Scenario) {
			defer swg.Done()
			results[i], errs[i] = r.Run(sc)
		}(i, sc)
	}
	swg.Wait()
	return results, foldErrors(errs)
}

// Run executes one scenario to completion or until the runner's Alive is
// stopped. The returned Result is filled even on error.
func (r *Runner) Run(sc *Scenario) (Result, error) {
	if err := sc.normalize(); err != nil {
		return Result{Scenario: sc.Name, Kind: sc.Kind}, errors.Trace(err)
	}
	res := Result{
		Scenario: sc.Name,
		Kind:     sc.Kind,
		Workers:  sc.Workers,
		Ops:      sc.Ops,
	}
	if !r.alive.Add(1) {
		res.Aborted = true
		return res, errors.Errorf("scenario=%s not started: runner is stopping", sc.Name)
	}
	defer r.alive.Done()

	r.log.Debugf("scenario=%s kind=%s workers=%d ops=%d begin", sc.Name, sc.Kind, sc.Workers, sc.Ops)
	slots := make([]workerSlot, sc.Workers)
	begin := atomic_clock.Now()
	beginNS := time.Now().UnixNano()
	var final float64
	var err error
	switch sc.Kind {
	case KindWordUpdate:
		final, err = r.runWordUpdate(sc, slots)
	case KindFloatAdd:
		final, err = r.runFloatAdd(sc, slots)
	case KindFloatRelay:
		final, err = r.runFloatRelay(sc, slots)
	case KindRefUpdate:
		final, err = r.runRefUpdate(sc, slots)
	default:
		// unreachable after normalize
		panic("code error scenario kind=" + sc.Kind)
	}
	res.Begin = beginNS
	res.Duration = atomic_clock.Since(begin)
	if err != nil {
		return res, errors.Annotatef(err, "scenario=%s", sc.Name)
	}

	total := int64(0)
	for i := range slots {
		total += slots[i].ops
	}
	res.OpsPerSec = float64(total) / res.Duration.Seconds()
	res.Final = final
	res.Expect = sc.expect()
	res.Aborted = total != int64(sc.Workers)*int64(sc.Ops)
	res.Verified = !res.Aborted && res.Final == res.Expect
	r.log.Infof("scenario=%s kind=%s workers=%d ops=%d duration=%s ops/sec=%.0f verified=%t",
		sc.Name, sc.Kind, sc.Workers, sc.Ops, res.Duration, res.OpsPerSec, res.Verified)
	if res.Aborted {
		return res, errors.Errorf("scenario=%s aborted ops=%d of %d", sc.Name, total, int64(sc.Workers)*int64(sc.Ops))
	}
	if !res.Verified {
		return res, errors.Errorf("scenario=%s verify failed final=%v expect=%v", sc.Name, res.Final, res.Expect)
	}
	return res, nil
}

// expect is the linearizable final value: every op applied exactly once,
// in some total order.
func (sc *Scenario) expect() float64 {
	switch sc.Kind {
	case KindWordUpdate:
		return float64(int64(sc.Initial) + int64(sc.Workers)*int64(sc.Ops))
	case KindFloatAdd:
		// identical deltas make every total order accumulate identically,
		// so the serial sum is bit-exact, rounding included
		v := sc.Initial
		for i := int64(0); i < int64(sc.Workers)*int64(sc.Ops); i++ {
			v += sc.Delta
		}
		return v
	case KindFloatRelay:
		// workers*ops handoffs traverse the ring a whole number of times
		return 0
	case KindRefUpdate:
		return float64(int64(sc.Workers) * int64(sc.Ops))
	}
	panic("code error scenario kind=" + sc.Kind)
}

func (r *Runner) eachWorker(sc *Scenario, slots []workerSlot, work func(i int, slot *workerSlot)) {
	wg := sync.WaitGroup{}
	wg.Add(sc.Workers)
	for i := 0; i < sc.Workers; i++ {
		go func(i int) {
			defer wg.Done()
			work(i, &slots[i])
		}(i)
	}
	wg.Wait()
}

func (r *Runner) runWordUpdate(sc *Scenario, slots []workerSlot) (float64, error) {
	cell, err := atomic_value.New(int64(sc.Initial))
	if err != nil {
		return 0, errors.Trace(err)
	}
	r.eachWorker(sc, slots, func(_ int, slot *workerSlot) {
		for j := 0; j < sc.Ops && r.alive.IsRunning(); j++ {
			cell.Update(func(v int64) int64 { return v + 1 })
			slot.ops++
		}
	})
	return float64(cell.Load()), nil
}

func (r *Runner) runFloatAdd(sc *Scenario, slots []workerSlot) (float64, error) {
	f := atomic_value.NewF64(sc.Initial)
	r.eachWorker(sc, slots, func(_ int, slot *workerSlot) {
		for j := 0; j < sc.Ops && r.alive.IsRunning(); j++ {
			f.Add(sc.Delta)
			slot.ops++
		}
	})
	return f.Load(), nil
}

// runFloatRelay passes a numeric token around the worker ring: worker i
// may only move the token from i to (i+1) mod workers, and recognizes its
// turn within the configured tolerance. TrySwapDelta instead of
// SpinSwapDelta keeps the wait interruptible: the primitives take no
// cancellation on purpose, the stop check composes here between attempts.
func (r *Runner) runFloatRelay(sc *Scenario, slots []workerSlot) (float64, error) {
	token := atomic_value.NewF64(0)
	r.eachWorker(sc, slots, func(i int, slot *workerSlot) {
		own := float64(i)
		next := float64((i + 1) % sc.Workers)
		for j := 0; j < sc.Ops; j++ {
			var b atomic_value.Backoff
			for {
				if !r.alive.IsRunning() {
					return
				}
				if _, swapped := token.TrySwapDelta(next, own, sc.Delta); swapped {
					break
				}
				b.Once()
			}
			slot.ops++
		}
	})
	return token.Load(), nil
}

// refTally is deliberately wider than a machine word: the case Cell
// rejects at construction and refers to Ref for.
type refTally struct {
	Hits int64
	Sum  float64
}

func (r *Runner) runRefUpdate(sc *Scenario, slots []workerSlot) (float64, error) {
	ref := atomic_value.NewRef(refTally{})
	r.eachWorker(sc, slots, func(_ int, slot *workerSlot) {
		for j := 0; j < sc.Ops && r.alive.IsRunning(); j++ {
			ref.Update(func(t refTally) refTally {
				t.Hits++
				t.Sum += sc.Delta
				return t
			})
			slot.ops++
		}
	})
	return float64(ref.Load().Hits), nil
}
