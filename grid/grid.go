// Package grid implements GridDataset: bucket-end OHLCV aggregation of raw
// trade ticks into a fixed time grid, with taker-side volume/VWAP splits.
package grid

import (
	"math"
	"sort"

	"mnemosyne/types"
)

// Tick is one raw trade: the unit grid.go aggregates. IsBuyerMaker follows
// the exchange convention that when true the taker was the seller (the
// resting order was a buy), matching the source feed's is_buyer_maker flag.
type Tick struct {
	Date         types.Date
	Symbol       types.Symbol
	Time         types.Micros
	Price        float64
	Quantity     float64 // base-denominated size
	QuoteQty     float64 // quote-denominated size (price * quantity, feed-reported)
	IsBuyerMaker bool
	PegSymbol    types.Symbol
}

// Row is one aggregated grid bucket.
type Row struct {
	Date   types.Date
	Symbol types.Symbol
	Time   types.Micros // bucket end

	Open, High, Low, Close float64
	Volume                 float64 // sum of Quantity
	VolumeQuote            float64 // sum of QuoteQty
	TradeCount             int
	LastEventTime          types.Micros

	TakerBuyVolume       float64 // sum of Quantity on taker-buy trades
	TakerSellVolume      float64 // sum of Quantity on taker-sell trades
	TakerBuyVolumeQuote  float64
	TakerSellVolumeQuote float64
	VWAPTakerBuy         float64
	VWAPTakerSell        float64
	VWAPPrice            float64 // total VWAP weighted by base quantity

	PegSymbol types.Symbol
}

// Interval buckets ticks at a fixed duration, expressed in microseconds so
// Aggregate can bucket without importing time.Duration arithmetic per row.
type Interval int64

// Aggregate groups ticks by (symbol, date, bucket) and computes one Row per
// group. ticks need not be pre-sorted. Each group's ticks are collected and
// time-sorted for open/close; taker sides are split by 0/1 multiplication,
// so no filtered subgroup is ever built.
func Aggregate(ticks []Tick, interval Interval) []Row {
	type key struct {
		symbol types.Symbol
		date   types.Date
		bucket types.Micros
	}

	order := make([]key, 0)
	groups := make(map[key][]Tick)
	for _, t := range ticks {
		k := key{t.Symbol, t.Date, bucketEnd(t.Time, interval)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}

	rows := make([]Row, 0, len(order))
	for _, k := range order {
		rows = append(rows, aggregateGroup(k.symbol, k.date, k.bucket, groups[k]))
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Time < rows[j].Time
	})
	return rows
}

// bucketEnd buckets t using the grid's bucket-end convention: a tick in
// [b, b+interval) belongs to bucket b+interval, so a row's timestamp is
// always the earliest instant at which its contents are fully knowable.
func bucketEnd(t types.Micros, interval Interval) types.Micros {
	iv := int64(interval)
	if iv <= 0 {
		return t
	}
	floor := (int64(t) / iv) * iv
	return types.Micros(floor + iv)
}

func aggregateGroup(symbol types.Symbol, date types.Date, bucket types.Micros, ticks []Tick) Row {
	// Ticks within a bucket arrive in whatever order the caller collected
	// them; open/close/last_event_time need time order to mean anything.
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Time < ticks[j].Time })

	row := Row{
		Date:   date,
		Symbol: symbol,
		Time:   bucket,
		Open:   ticks[0].Price,
		High:   ticks[0].Price,
		Low:    ticks[0].Price,
	}

	var (
		buyWeighted, sellWeighted, totalWeighted float64
	)

	for _, t := range ticks {
		row.Close = t.Price
		if t.Price > row.High {
			row.High = t.Price
		}
		if t.Price < row.Low {
			row.Low = t.Price
		}
		row.Volume += t.Quantity
		row.VolumeQuote += t.QuoteQty
		row.TradeCount++
		row.LastEventTime = t.Time
		row.PegSymbol = t.PegSymbol

		// is_taker_buy / is_taker_sell expressed as 0/1 multiplication so a
		// streaming aggregator never has to materialize a filtered subgroup.
		isTakerBuy := boolToFloat(!t.IsBuyerMaker)
		isTakerSell := boolToFloat(t.IsBuyerMaker)

		buyQty := t.Quantity * isTakerBuy
		sellQty := t.Quantity * isTakerSell

		row.TakerBuyVolume += buyQty
		row.TakerSellVolume += sellQty
		row.TakerBuyVolumeQuote += t.QuoteQty * isTakerBuy
		row.TakerSellVolumeQuote += t.QuoteQty * isTakerSell

		buyWeighted += t.Price * buyQty
		sellWeighted += t.Price * sellQty
		totalWeighted += t.Price * t.Quantity
	}

	row.VWAPTakerBuy = weightedMean(buyWeighted, row.TakerBuyVolume)
	row.VWAPTakerSell = weightedMean(sellWeighted, row.TakerSellVolume)
	row.VWAPPrice = weightedMean(totalWeighted, row.Volume)

	return row
}

func weightedMean(weightedSum, weight float64) float64 {
	if weight == 0 {
		return math.NaN()
	}
	return weightedSum / weight
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
