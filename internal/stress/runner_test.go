package stress

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_value/log2"
)

func TestRunKinds(t *testing.T) {
	t.Parallel()

	cases := []Scenario{
		{Name: "counter", Kind: KindWordUpdate, Workers: 2, Ops: 1000, Initial: 42},
		{Name: "accum", Kind: KindFloatAdd, Workers: 4, Ops: 500, Initial: 10, Delta: 0.25},
		{Name: "relay", Kind: KindFloatRelay, Workers: 3, Ops: 50},
		{Name: "tally", Kind: KindRefUpdate, Workers: 4, Ops: 500},
	}
	mkCheck := func(sc Scenario) func(*testing.T) {
		return func(t *testing.T) {
			t.Parallel()
			r := NewRunner(nil, log2.NewTest(t, log2.LDebug))
			res, err := r.Run(&sc)
			require.NoError(t, err, "scenario=%s: %v", sc.Name, errors.ErrorStack(err))
			assert.True(t, res.Verified, "final=%v expect=%v", res.Final, res.Expect)
			assert.False(t, res.Aborted)
			assert.Equal(t, res.Expect, res.Final)
			assert.True(t, res.OpsPerSec > 0)
			assert.True(t, res.Duration > 0)
		}
	}
	for _, sc := range cases {
		t.Run(sc.Name, mkCheck(sc))
	}
}

func TestRunCounterExact(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, log2.NewTest(t, log2.LDebug))
	res, err := r.Run(&Scenario{Name: "counter", Kind: KindWordUpdate, Workers: 2, Ops: 1000, Initial: 42})
	require.NoError(t, err)
	assert.Equal(t, 2042.0, res.Final)
}

func TestRunInvalidScenario(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, log2.NewTest(t, log2.LDebug))
	_, err := r.Run(&Scenario{Name: "bad", Kind: "word-exchange"})
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(errors.Cause(err)), "got %v", err)
}

func TestRunAll(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Parallel: 2,
		Scenarios: []*Scenario{
			{Name: "c1", Kind: KindWordUpdate, Workers: 2, Ops: 200},
			{Name: "c2", Kind: KindFloatAdd, Workers: 2, Ops: 200},
			{Name: "c3", Kind: KindRefUpdate, Workers: 2, Ops: 200},
		},
	}
	r := NewRunner(nil, log2.NewTest(t, log2.LDebug))
	results, err := r.RunAll(cfg)
	require.NoError(t, err, "%v", errors.ErrorStack(err))
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, cfg.Scenarios[i].Name, res.Scenario, "results keep config order")
		assert.True(t, res.Verified)
	}
}

func TestRunAllFoldsErrors(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Scenarios: []*Scenario{
			{Name: "ok", Kind: KindWordUpdate, Workers: 2, Ops: 100},
			{Name: "bad", Kind: "nope"},
		},
	}
	r := NewRunner(nil, log2.NewTest(t, log2.LDebug))
	results, err := r.RunAll(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	require.Len(t, results, 2)
	assert.True(t, results[0].Verified, "good scenario still runs")
	assert.False(t, results[1].Verified)
}

func TestRunStopped(t *testing.T) {
	t.Parallel()

	a := alive.NewAlive()
	a.Stop()
	r := NewRunner(a, log2.NewTest(t, log2.LDebug))
	res, err := r.Run(&Scenario{Name: "late", Kind: KindWordUpdate, Workers: 1, Ops: 1})
	require.Error(t, err)
	assert.True(t, res.Aborted)
}
