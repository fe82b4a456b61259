// Package returns implements ReturnsEngine: point-in-time, asof-joined
// returns over a backend tick database. A query asks "what was the return
// from t to t+duration for this symbol", with NaN standing in whenever the
// backend has no tick recent enough to trust (the staleness policy) or the
// symbol isn't in the backend's universe at all.
package returns

import (
	"math"
	"sort"
	"time"

	"mnemosyne/frame"
	"mnemosyne/types"
)

// BackendRow is the minimal shape ReturnsEngine needs from a backend
// dataset: a causal tick_time per symbol and the fair price observed at
// that tick.
type BackendRow struct {
	Date     types.Date
	Symbol   types.Symbol
	TickTime types.Micros
	Fair     float64
}

// Options configures a Query/QueryBatch call. Zero-value Options is not
// usable directly — call DefaultOptions() for the engine's defaults.
type Options struct {
	MarkDuration         time.Duration
	TickLagTolerance     time.Duration
	AppendQueryTickTimes bool
	AppendLag            bool
	FilterByQueryDates   bool
	AppendStartEndFairs  bool
}

// DefaultOptions mirrors ReturnsEngine.query's Python defaults.
func DefaultOptions() Options {
	return Options{
		MarkDuration:       10 * time.Minute,
		TickLagTolerance:   30 * time.Second,
		AppendLag:          true,
		FilterByQueryDates: true,
	}
}

// Result is one query's output: the matched tick times, the observed fairs
// at start/end, the worst staleness lag across both endpoints, and the
// resulting return. Any field can be NaN (MaxTickToQueryLag as
// MaxTickToQueryLagValid=false) when the symbol is out of universe or no
// tick was recent enough to trust.
type Result struct {
	RowID int

	StartQueryTime, EndQueryTime types.Micros
	StartTickTime, EndTickTime   types.Micros

	MaxTickToQueryLag      time.Duration
	MaxTickToQueryLagValid bool

	StartFair, EndFair float64
	Return             float64
}

// Engine holds a sorted snapshot of the backend tick database.
type Engine struct {
	db         []BackendRow
	symbolEnum types.SymbolSet
}

// New builds an Engine from backend rows. The backend's symbol enum (its
// closed universe) is derived from the distinct symbols present in db — a
// query for a symbol outside this set always resolves to NaN rather than
// raising SymbolOutOfUniverse.
func New(db []BackendRow) *Engine {
	sorted := append([]BackendRow(nil), db...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].TickTime < sorted[j].TickTime
	})

	symbols := make([]types.Symbol, 0, len(sorted))
	for _, r := range sorted {
		symbols = append(symbols, r.Symbol)
	}

	return &Engine{db: sorted, symbolEnum: types.NewSymbolSet(symbols)}
}

func (e *Engine) UniverseSymbols() types.SymbolSet { return e.symbolEnum }

type queryEndpoint struct {
	rowIdx int
	time   types.Micros
	symbol types.Symbol
}

// Query runs a single-horizon return query: for every input row, match the
// backend tick at-or-before start_time and at-or-before start_time+duration,
// and compute (end_fair - start_fair) / start_fair.
func (e *Engine) Query(symbols []types.Symbol, startTimes []types.Micros, opts Options) []Result {
	n := len(symbols)
	results := make([]Result, n)
	for i := range results {
		results[i] = Result{RowID: i, StartFair: math.NaN(), EndFair: math.NaN(), Return: math.NaN()}
	}

	db := e.db
	if opts.FilterByQueryDates && n > 0 {
		db = filterByDateRange(db, startTimes, opts.MarkDuration)
	}

	var starts, ends []queryEndpoint
	for i := 0; i < n; i++ {
		sym := symbols[i]
		if !e.symbolEnum.Contains(sym) {
			continue
		}
		st := startTimes[i]
		et := st.Add(opts.MarkDuration)
		results[i].StartQueryTime = st
		results[i].EndQueryTime = et
		starts = append(starts, queryEndpoint{i, st, sym})
		ends = append(ends, queryEndpoint{i, et, sym})
	}

	e.resolveEndpoints(db, starts, opts, true, results)
	e.resolveEndpoints(db, ends, opts, false, results)

	for i := range results {
		if math.IsNaN(results[i].StartFair) || math.IsNaN(results[i].EndFair) {
			continue
		}
		if results[i].StartFair == 0 {
			results[i].Return = math.NaN()
			continue
		}
		results[i].Return = (results[i].EndFair - results[i].StartFair) / results[i].StartFair
	}

	return results
}

func (e *Engine) resolveEndpoints(db []BackendRow, endpoints []queryEndpoint, opts Options, isStart bool, results []Result) {
	matches := frame.AsofBackward(endpoints, db,
		func(q queryEndpoint) types.Symbol { return q.symbol },
		func(q queryEndpoint) int64 { return int64(q.time) },
		func(r BackendRow) types.Symbol { return r.Symbol },
		func(r BackendRow) int64 { return int64(r.TickTime) },
	)

	for k, ep := range endpoints {
		r := &results[ep.rowIdx]
		idx := matches[k]
		if idx < 0 {
			if isStart {
				r.StartFair = math.NaN()
			} else {
				r.EndFair = math.NaN()
			}
			continue
		}

		tickTime := db[idx].TickTime
		lag := ep.time.Sub(tickTime)
		fair := db[idx].Fair
		if tickTime.Add(opts.TickLagTolerance).Before(ep.time) {
			fair = math.NaN()
		}

		if isStart {
			r.StartTickTime = tickTime
			r.StartFair = fair
		} else {
			r.EndTickTime = tickTime
			r.EndFair = fair
		}

		if opts.AppendLag {
			if !r.MaxTickToQueryLagValid || lag > r.MaxTickToQueryLag {
				r.MaxTickToQueryLag = lag
				r.MaxTickToQueryLagValid = true
			}
		}
	}
}

// filterByDateRange restricts db to the date span covering every
// [start, start+duration] query window, plus each symbol's last row before
// that span. This is a performance-only
// optimization: it never changes the result of a query, only how much of
// the backend is scanned to answer it.
func filterByDateRange(db []BackendRow, startTimes []types.Micros, duration time.Duration) []BackendRow {
	if len(startTimes) == 0 {
		return db
	}
	minD, maxD := startTimes[0].Date(), startTimes[0].Add(duration).Date()
	for _, st := range startTimes[1:] {
		if d := st.Date(); d.Before(minD) {
			minD = d
		}
		if d := st.Add(duration).Date(); d.After(maxD) {
			maxD = d
		}
	}
	out := make([]BackendRow, 0, len(db))
	for i, r := range db {
		if r.Date.After(maxD) {
			continue
		}
		// A backward asof join at the earliest query can still land on a
		// symbol's last tick before minD (db is sorted by symbol, tick time),
		// so that one earlier row per symbol is kept as well.
		if r.Date.Before(minD) && i+1 < len(db) && db[i+1].Symbol == r.Symbol && db[i+1].Date.Before(minD) {
			continue
		}
		out = append(out, r)
	}
	return out
}
