package returns

import (
	"math"
	"time"

	"mnemosyne/frame"
	"mnemosyne/types"
)

// MarkSpec names one horizon in a batch query: the query window starts
// StartOffset after each row's base time and spans MarkDuration.
// "now_to_p10m" is StartOffset=0, MarkDuration=10m; "p1m_to_p11m" is
// StartOffset=1m, MarkDuration=10m.
type MarkSpec struct {
	StartOffset  time.Duration
	MarkDuration time.Duration
}

// batchEndpoint tags a single asof-join probe with the mark and row it
// belongs to, so every mark's start and end endpoints can be resolved in
// one AsofBackward call against the same backend snapshot.
type batchEndpoint struct {
	mark    string
	rowIdx  int
	time    types.Micros
	symbol  types.Symbol
	isStart bool
}

// QueryBatch computes every named horizon in marks against the same set of
// (symbol, baseTime) query rows. Every mark's start and end endpoints are
// tagged and pooled into a single endpoint set before the join runs, so the
// asof join itself runs once regardless of how many marks are requested.
func (e *Engine) QueryBatch(symbols []types.Symbol, baseTimes []types.Micros, marks map[string]MarkSpec, opts Options) map[string][]Result {
	n := len(symbols)
	out := make(map[string][]Result, len(marks))
	for name := range marks {
		results := make([]Result, n)
		for i := range results {
			results[i] = Result{RowID: i, StartFair: math.NaN(), EndFair: math.NaN(), Return: math.NaN()}
		}
		out[name] = results
	}
	if n == 0 {
		return out
	}

	db := e.db
	if opts.FilterByQueryDates {
		var spanStarts []types.Micros
		var maxSpan time.Duration
		for _, spec := range marks {
			for _, bt := range baseTimes {
				spanStarts = append(spanStarts, bt.Add(spec.StartOffset))
			}
			if span := spec.StartOffset + spec.MarkDuration; span > maxSpan {
				maxSpan = span
			}
		}
		db = filterByDateRange(db, spanStarts, maxSpan)
	}

	endpoints := make([]batchEndpoint, 0, 2*n*len(marks))
	for name, spec := range marks {
		results := out[name]
		for i := 0; i < n; i++ {
			sym := symbols[i]
			if !e.symbolEnum.Contains(sym) {
				continue
			}
			st := baseTimes[i].Add(spec.StartOffset)
			et := st.Add(spec.MarkDuration)
			results[i].StartQueryTime = st
			results[i].EndQueryTime = et
			endpoints = append(endpoints, batchEndpoint{name, i, st, sym, true})
			endpoints = append(endpoints, batchEndpoint{name, i, et, sym, false})
		}
	}

	matches := frame.AsofBackward(endpoints, db,
		func(q batchEndpoint) types.Symbol { return q.symbol },
		func(q batchEndpoint) int64 { return int64(q.time) },
		func(r BackendRow) types.Symbol { return r.Symbol },
		func(r BackendRow) int64 { return int64(r.TickTime) },
	)

	for k, ep := range endpoints {
		r := &out[ep.mark][ep.rowIdx]
		idx := matches[k]
		if idx < 0 {
			if ep.isStart {
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

		if ep.isStart {
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

	for _, results := range out {
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
	}

	return out
}
