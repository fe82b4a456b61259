package metadata

import (
	"math"
	"strconv"
	"time"

	"mnemosyne/returns"
	"mnemosyne/xmath"
)

// Field names BackendRow.Fields is expected to carry for DefaultByLookback.
const (
	FieldVolume          = "volume"
	FieldTakerBuyVolume  = "taker_buy_volume"
	FieldTakerSellVolume = "taker_sell_volume"
)

// DefaultByLookback builds the standard by-symbol-index rolling metrics
// (dollar liquidity, its square root, the taker buy/sell imbalance, and raw
// trade count) over the given lookback windows, suffixing each column name
// with the window (e.g. "liquidity_1d").
func DefaultByLookback(lookbacks ...time.Duration) []LookbackSpec[BackendRow] {
	specs := make([]LookbackSpec[BackendRow], len(lookbacks))
	for i, lb := range lookbacks {
		suffix := lookbackSuffix(lb)
		specs[i] = LookbackSpec[BackendRow]{
			Lookback: lb,
			Compute: func(window []BackendRow) map[string]float64 {
				volumes := make([]float64, len(window))
				buys := make([]float64, len(window))
				sells := make([]float64, len(window))
				for j, r := range window {
					volumes[j] = r.Fields[FieldVolume]
					buys[j] = r.Fields[FieldTakerBuyVolume]
					sells[j] = r.Fields[FieldTakerSellVolume]
				}
				liquidity := xmath.Sum(volumes)
				buySum := xmath.Sum(buys)
				sellSum := xmath.Sum(sells)
				total := buySum + sellSum

				excessBuyRatio := math.NaN()
				if total != 0 && !math.IsNaN(total) {
					excessBuyRatio = (buySum - sellSum) / total
				}

				return map[string]float64{
					"liquidity_" + suffix:        liquidity,
					"sqrtliq_" + suffix:          math.Sqrt(math.Abs(liquidity)) * math.Copysign(1, liquidity),
					"excess_buy_ratio_" + suffix: excessBuyRatio,
					"trade_count_" + suffix:      xmath.Count(volumes),
				}
			},
		}
	}
	return specs
}

// DefaultAccumReturns builds the standard accumulated-returns rolling
// metrics (drift, volatility, and a volatility-scaled size statistic,
// normalized to a daily rate) over the given lookback windows.
func DefaultAccumReturns(lookbacks ...time.Duration) []LookbackSpec[returns.Result] {
	specs := make([]LookbackSpec[returns.Result], len(lookbacks))
	for i, lb := range lookbacks {
		suffix := lookbackSuffix(lb)
		intervalsPerDay := numIntervalsInDay(lb)
		specs[i] = LookbackSpec[returns.Result]{
			Lookback: lb,
			Compute: func(window []returns.Result) map[string]float64 {
				rets := make([]float64, len(window))
				for j, r := range window {
					rets[j] = r.Return
				}
				drift := xmath.Sum(rets)
				vol := xmath.Std(rets)

				volSSize := math.NaN()
				if vol != 0 && !math.IsNaN(vol) {
					volSSize = drift / vol
				}

				return map[string]float64{
					"returns_drift_" + suffix:    drift / intervalsPerDay,
					"returns_volatility_" + suffix: vol / math.Sqrt(intervalsPerDay),
					"returns_vol_ssize_" + suffix:  volSSize,
				}
			},
		}
	}
	return specs
}

// numIntervalsInDay returns how many lookback-sized windows fit in a day,
// used to normalize accumulated statistics to a per-day rate regardless of
// the configured lookback length.
func numIntervalsInDay(lookback time.Duration) float64 {
	if lookback <= 0 {
		return 1
	}
	return float64(24*time.Hour) / float64(lookback)
}

func lookbackSuffix(lb time.Duration) string {
	switch {
	case lb%(24*time.Hour) == 0:
		return strconv.Itoa(int(lb/(24*time.Hour))) + "d"
	case lb%time.Hour == 0:
		return strconv.Itoa(int(lb/time.Hour)) + "h"
	case lb%time.Minute == 0:
		return strconv.Itoa(int(lb/time.Minute)) + "m"
	default:
		return lb.String()
	}
}

// DefaultQuantileExpand selects every "liquidity_*", "sqrtliq_*",
// "returns_drift_*", "returns_volatility_*" and "returns_vol_ssize_*" column
// for cross-sectional quantile expansion.
func DefaultQuantileExpand(column string) bool {
	prefixes := []string{"liquidity_", "sqrtliq_", "returns_drift_", "returns_volatility_", "returns_vol_ssize_"}
	for _, p := range prefixes {
		if len(column) >= len(p) && column[:len(p)] == p {
			return true
		}
	}
	return false
}
