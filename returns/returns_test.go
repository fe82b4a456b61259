package returns

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemosyne/types"
)

func microsAt(base time.Time, offset time.Duration) types.Micros {
	return types.Micros(base.Add(offset).UnixMicro())
}

func TestQueryComputesSimpleReturn(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := types.NewDate(base)

	db := []BackendRow{
		{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 0), Fair: 100},
		{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 9*time.Minute), Fair: 110},
	}
	e := New(db)

	opts := DefaultOptions()
	opts.MarkDuration = 10 * time.Minute
	opts.TickLagTolerance = 2 * time.Minute

	results := e.Query([]types.Symbol{"BTCUSDT"}, []types.Micros{microsAt(base, 0)}, opts)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 100.0, r.StartFair)
	assert.Equal(t, 110.0, r.EndFair)
	assert.InDelta(t, 0.1, r.Return, 1e-9)
}

func TestQueryStaleTickYieldsNaN(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := types.NewDate(base)

	db := []BackendRow{
		{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, -5*time.Minute), Fair: 100},
	}
	e := New(db)

	opts := DefaultOptions()
	opts.TickLagTolerance = 30 * time.Second
	opts.MarkDuration = 10 * time.Minute

	results := e.Query([]types.Symbol{"BTCUSDT"}, []types.Micros{microsAt(base, 0)}, opts)
	require.Len(t, results, 1)
	assert.True(t, math.IsNaN(results[0].StartFair))
	assert.True(t, math.IsNaN(results[0].Return))
}

func TestQuerySymbolOutOfUniverseYieldsNaN(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := types.NewDate(base)

	db := []BackendRow{{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 0), Fair: 100}}
	e := New(db)

	results := e.Query([]types.Symbol{"DOGEUSDT"}, []types.Micros{microsAt(base, 0)}, DefaultOptions())
	require.Len(t, results, 1)
	assert.True(t, math.IsNaN(results[0].Return))
}

func TestQueryNoPriorTickYieldsNaN(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := types.NewDate(base)

	db := []BackendRow{{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 5*time.Minute), Fair: 100}}
	e := New(db)

	results := e.Query([]types.Symbol{"BTCUSDT"}, []types.Micros{microsAt(base, 0)}, DefaultOptions())
	require.Len(t, results, 1)
	assert.True(t, math.IsNaN(results[0].StartFair))
}

func TestQueryZeroStartFairYieldsNaNReturn(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := types.NewDate(base)

	db := []BackendRow{
		{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 0), Fair: 0},
		{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 9*time.Minute), Fair: 5},
	}
	e := New(db)

	opts := DefaultOptions()
	opts.MarkDuration = 10 * time.Minute
	opts.TickLagTolerance = 2 * time.Minute

	results := e.Query([]types.Symbol{"BTCUSDT"}, []types.Micros{microsAt(base, 0)}, opts)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].StartFair)
	assert.Equal(t, 5.0, results[0].EndFair)
	assert.True(t, math.IsNaN(results[0].Return))
}

func TestQueryBatchAlignsPerHorizon(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := types.NewDate(base)

	db := []BackendRow{
		{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 0), Fair: 100},
		{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 10*time.Minute), Fair: 105},
		{Date: day, Symbol: "BTCUSDT", TickTime: microsAt(base, 20*time.Minute), Fair: 110},
	}
	e := New(db)

	marks := map[string]MarkSpec{
		"now_to_p10m": {StartOffset: 0, MarkDuration: 10 * time.Minute},
		"p10m_to_p20m": {StartOffset: 10 * time.Minute, MarkDuration: 10 * time.Minute},
	}

	out := e.QueryBatch([]types.Symbol{"BTCUSDT"}, []types.Micros{microsAt(base, 0)}, marks, DefaultOptions())
	require.Contains(t, out, "now_to_p10m")
	require.Contains(t, out, "p10m_to_p20m")
	assert.InDelta(t, 0.05, out["now_to_p10m"][0].Return, 1e-9)
	assert.InDelta(t, (110.0-105.0)/105.0, out["p10m_to_p20m"][0].Return, 1e-9)
}
