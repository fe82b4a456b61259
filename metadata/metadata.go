// Package metadata implements MetadataEngine: causal, rolling per-symbol
// statistics (liquidity, volatility, trade imbalance, …) gridded onto a
// fixed time grid and cross-sectionally quantile-ranked, suitable for
// asof-joining back onto any downstream query via AppendMetadata.
package metadata

import (
	"context"
	"math"
	"sort"
	"time"

	"mnemosyne/frame"
	"mnemosyne/returns"
	"mnemosyne/types"
	"mnemosyne/xmath"
)

// BackendRow is the raw per-event row MetadataEngine rolls over: one tick
// from the backend dataset, carrying whatever fields the configured
// ByLookback expressions read.
type BackendRow struct {
	Date          types.Date
	Symbol        types.Symbol
	LastEventTime types.Micros
	Fields        map[string]float64
}

// LookbackSpec names one rolling aggregate: compute receives the closed-left
// window of rows (oldest first) ending just before the current row's time
// and returns the named metric columns for that row.
type LookbackSpec[W any] struct {
	Lookback time.Duration
	Compute  func(window []W) map[string]float64
}

// Config declares a MetadataEngine's rolling-window expressions and output
// grid, the Go analogue of metadata_exprs / quantile_expand_exprs.
type Config struct {
	ReturnsInterval time.Duration
	GridInterval    time.Duration

	ByLookback   []LookbackSpec[BackendRow]
	AccumReturns []LookbackSpec[returns.Result]

	// QuantileExpand reports whether a computed column name should get a
	// cross-sectional "<name>_q" rank column.
	QuantileExpand func(column string) bool

	TickLagTolerance time.Duration
}

// Row is one computed metadata row: a symbol at a grid time, plus every
// computed metric (and its "_q" quantile-rank sibling, where configured).
type Row struct {
	Symbol types.Symbol
	Time   types.Micros
	Values map[string]float64
}

// Engine computes rolling metadata from a backend tick stream and a
// returns engine built over the same stream.
type Engine struct {
	backend  []BackendRow // sorted by symbol, last_event_time
	returner *returns.Engine
	cfg      Config

	maxReturnsLookback  time.Duration
	maxMetadataLookback time.Duration

	returnsGrid []gridPoint // every (symbol, returns_grid_time) for the whole universe
}

type gridPoint struct {
	symbol types.Symbol
	time   types.Micros
}

// New builds a MetadataEngine. universe lists every (symbol, date) pair the
// returns grid should span; backend holds the raw tick rows rolled over for
// by-symbol-index metrics, and backendFair tells ReturnsEngine how to read
// the fair price from those rows (their LastEventTime is the tick time).
func New(backend []BackendRow, universe []UniverseSymbolDate, backendFair func(BackendRow) float64, cfg Config) *Engine {
	sortedBackend := append([]BackendRow(nil), backend...)
	sort.Slice(sortedBackend, func(i, j int) bool {
		if sortedBackend[i].Symbol != sortedBackend[j].Symbol {
			return sortedBackend[i].Symbol < sortedBackend[j].Symbol
		}
		return sortedBackend[i].LastEventTime < sortedBackend[j].LastEventTime
	})

	backendRowsForReturns := make([]returns.BackendRow, len(sortedBackend))
	for i, r := range sortedBackend {
		backendRowsForReturns[i] = returns.BackendRow{
			Date:     r.Date,
			Symbol:   r.Symbol,
			TickTime: r.LastEventTime,
			Fair:     backendFair(r),
		}
	}

	e := &Engine{
		backend:  sortedBackend,
		returner: returns.New(backendRowsForReturns),
		cfg:      cfg,
	}

	for _, spec := range cfg.AccumReturns {
		if spec.Lookback > e.maxReturnsLookback {
			e.maxReturnsLookback = spec.Lookback
		}
	}
	for _, spec := range cfg.ByLookback {
		if spec.Lookback > e.maxMetadataLookback {
			e.maxMetadataLookback = spec.Lookback
		}
	}

	e.returnsGrid = buildReturnsGrid(universe, cfg.ReturnsInterval)
	return e
}

// UniverseSymbolDate is a (symbol, date) pair from the backend's universe,
// used only to build the returns grid.
type UniverseSymbolDate struct {
	Symbol types.Symbol
	Date   types.Date
}

func buildReturnsGrid(universe []UniverseSymbolDate, interval time.Duration) []gridPoint {
	var grid []gridPoint
	for _, u := range universe {
		dayStart := types.Micros(u.Date.Time().Unix() * 1_000_000)
		dayEnd := types.Micros(u.Date.AddDays(1).Time().Unix() * 1_000_000)
		for t := dayStart; t < dayEnd; t = t.Add(interval) {
			grid = append(grid, gridPoint{symbol: u.Symbol, time: t})
		}
	}
	sort.Slice(grid, func(i, j int) bool {
		if grid[i].symbol != grid[j].symbol {
			return grid[i].symbol < grid[j].symbol
		}
		return grid[i].time < grid[j].time
	})
	return grid
}

// truncateToGridEnd buckets t into the grid interval using the bucket-end
// convention: a tick in [b, b+interval) belongs to bucket b+interval, so the
// bucket timestamp is always strictly after the tick's own time — the
// earliest instant at which everything in the bucket is known.
func truncateToGridEnd(t types.Micros, interval time.Duration) types.Micros {
	iv := int64(interval / time.Microsecond)
	if iv <= 0 {
		return t
	}
	floor := (int64(t) / iv) * iv
	return types.Micros(floor + iv)
}

// Compute runs the five-step metadata computation for a contiguous batch of
// dates: gridded returns, rolling returns metadata, rolling tick metadata,
// inner join, cross-sectional quantile expansion.
func (e *Engine) Compute(_ context.Context, dates []types.Date) []Row {
	if len(dates) == 0 {
		return nil
	}
	startDate, endDate := dates[0], dates[0]
	for _, d := range dates {
		if d.Before(startDate) {
			startDate = d
		}
		if d.After(endDate) {
			endDate = d
		}
	}

	returnsMetadata := e.stepReturnsMetadata(startDate, endDate)
	rollingMetadata := e.stepRollingMetadata(startDate, endDate)

	type key struct {
		symbol types.Symbol
		time   types.Micros
	}
	byKey := make(map[key]map[string]float64, len(rollingMetadata))
	for k, v := range rollingMetadata {
		byKey[k] = v
	}

	var rows []Row
	for k, returnsVals := range returnsMetadata {
		tickVals, ok := byKey[k]
		if !ok {
			continue // inner join: only keep grid_times present in both
		}
		merged := make(map[string]float64, len(returnsVals)+len(tickVals))
		for name, v := range tickVals {
			merged[name] = v
		}
		for name, v := range returnsVals {
			merged[name] = v
		}
		rows = append(rows, Row{Symbol: k.symbol, Time: k.time, Values: merged})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Time < rows[j].Time
	})

	e.appendQuantiles(rows)
	return rows
}

// stepReturnsMetadata is steps 1-2: grid returns at ReturnsInterval, roll
// AccumReturns lookbacks over them, bucket to grid_time, keep the last
// observation per (symbol, grid_time).
func (e *Engine) stepReturnsMetadata(startDate, endDate types.Date) map[struct {
	symbol types.Symbol
	time   types.Micros
}]map[string]float64 {
	lowerDate := startDate.AddDays(-int(e.maxReturnsLookback / (24 * time.Hour)))
	var grid []gridPoint
	for _, g := range e.returnsGrid {
		d := g.time.Date()
		if !d.Before(lowerDate) && !d.After(endDate) {
			grid = append(grid, g)
		}
	}

	symbols := make([]types.Symbol, len(grid))
	startTimes := make([]types.Micros, len(grid))
	for i, g := range grid {
		symbols[i] = g.symbol
		startTimes[i] = g.time
	}

	tolerance := e.cfg.TickLagTolerance
	if tolerance == 0 {
		tolerance = e.cfg.ReturnsInterval
	}

	opts := returns.DefaultOptions()
	opts.MarkDuration = e.cfg.ReturnsInterval
	opts.TickLagTolerance = tolerance
	opts.AppendLag = true
	queryResults := e.returner.Query(symbols, startTimes, opts)

	// Result carries no symbol of its own, so pair each one with the grid
	// point that produced it before rolling a per-symbol window over them.
	type withSymbol struct {
		symbol types.Symbol
		time   types.Micros
		result returns.Result
	}
	withSymbols := make([]withSymbol, len(grid))
	for i, g := range grid {
		withSymbols[i] = withSymbol{g.symbol, g.time, queryResults[i]}
	}

	out := make(map[struct {
		symbol types.Symbol
		time   types.Micros
	}]map[string]float64)

	for _, spec := range e.cfg.AccumReturns {
		agg := frame.RollingLeft(withSymbols,
			func(w withSymbol) types.Symbol { return w.symbol },
			func(w withSymbol) int64 { return int64(w.time) },
			int64(spec.Lookback/time.Microsecond),
			func(window []withSymbol) map[string]float64 {
				rs := make([]returns.Result, len(window))
				for i, w := range window {
					rs[i] = w.result
				}
				return spec.Compute(rs)
			},
		)
		for i, w := range withSymbols {
			gt := truncateToGridEnd(w.time, e.cfg.GridInterval)
			k := struct {
				symbol types.Symbol
				time   types.Micros
			}{w.symbol, gt}
			// group_by(symbol, grid_time).agg(last): later rows overwrite earlier.
			if out[k] == nil {
				out[k] = map[string]float64{}
			}
			for name, v := range agg[i] {
				out[k][name] = v
			}
		}
	}
	return out
}

// stepRollingMetadata is step 3: roll ByLookback lookbacks over raw backend
// rows filtered to the lookback-extended date window, bucket to grid_time,
// keep the last observation per (symbol, grid_time).
func (e *Engine) stepRollingMetadata(startDate, endDate types.Date) map[struct {
	symbol types.Symbol
	time   types.Micros
}]map[string]float64 {
	lowerDate := startDate.AddDays(-int(e.maxMetadataLookback / (24 * time.Hour)))
	var inRange []BackendRow
	for _, r := range e.backend {
		if !r.Date.Before(lowerDate) && !r.Date.After(endDate) {
			inRange = append(inRange, r)
		}
	}

	out := make(map[struct {
		symbol types.Symbol
		time   types.Micros
	}]map[string]float64)

	for _, spec := range e.cfg.ByLookback {
		agg := frame.RollingLeft(inRange,
			func(r BackendRow) types.Symbol { return r.Symbol },
			func(r BackendRow) int64 { return int64(r.LastEventTime) },
			int64(spec.Lookback/time.Microsecond),
			spec.Compute,
		)
		for i, r := range inRange {
			gt := truncateToGridEnd(r.LastEventTime, e.cfg.GridInterval)
			k := struct {
				symbol types.Symbol
				time   types.Micros
			}{r.Symbol, gt}
			if out[k] == nil {
				out[k] = map[string]float64{}
			}
			for name, v := range agg[i] {
				out[k][name] = v
			}
		}
	}
	return out
}

// AppendMetadata resolves, for every (symbol, time) in queryTimes, the most
// recent metadata row at-or-before that time for the same symbol. The
// returned slice has -1 at positions with no eligible metadata row (symbol
// never seen, or no metadata row at or before that time yet); a caller
// reads metadata[result[i]] to get the matched Row, the same shape as
// ReturnsEngine's asof-matched results.
func AppendMetadata(metadata []Row, symbols []types.Symbol, queryTimes []types.Micros) []int {
	type queryRow struct {
		symbol types.Symbol
		time   types.Micros
	}
	queries := make([]queryRow, len(symbols))
	for i := range symbols {
		queries[i] = queryRow{symbols[i], queryTimes[i]}
	}
	return frame.AsofBackward(queries, metadata,
		func(q queryRow) types.Symbol { return q.symbol },
		func(q queryRow) int64 { return int64(q.time) },
		func(r Row) types.Symbol { return r.Symbol },
		func(r Row) int64 { return int64(r.Time) },
	)
}

// appendQuantiles adds "<name>_q" = average_rank/count, computed
// cross-sectionally (over every row sharing a grid time) for every column
// e.cfg.QuantileExpand selects.
func (e *Engine) appendQuantiles(rows []Row) {
	if e.cfg.QuantileExpand == nil || len(rows) == 0 {
		return
	}

	byTime := make(map[types.Micros][]int)
	colNames := make(map[string]struct{})
	for i, r := range rows {
		byTime[r.Time] = append(byTime[r.Time], i)
		for name := range r.Values {
			colNames[name] = struct{}{}
		}
	}

	for name := range colNames {
		if !e.cfg.QuantileExpand(name) {
			continue
		}
		for _, idxs := range byTime {
			vals := make([]float64, len(idxs))
			for j, i := range idxs {
				v, ok := rows[i].Values[name]
				if !ok {
					v = math.NaN()
				}
				vals[j] = v
			}
			qs := xmath.QuantileRank(vals)
			for j, i := range idxs {
				rows[i].Values[name+"_q"] = qs[j]
			}
		}
	}
}

