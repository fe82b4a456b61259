package frame

// RollingLeft computes, for each row in rows (already sorted by (key, time)),
// a closed-left rolling aggregate over the preceding window
// [time-period, time): every prior row in the same group whose time falls in
// that half-open interval, not including the row itself. period and time are
// both expressed in the same integer unit (microseconds for tick-level data,
// whatever unit the caller's rollup wants otherwise).
//
// agg receives the slice of in-window rows (oldest first) for row i and
// returns the aggregate value for that row. rows never mutate one another's
// windows, so agg may be called concurrently per group if needed; this
// helper itself runs sequentially, matching the small per-partition batch
// sizes the engine operates on.
func RollingLeft[T any, K comparable, Agg any](
	rows []T,
	key func(T) K,
	timeOf func(T) int64,
	period int64,
	agg func(window []T) Agg,
) []Agg {
	out := make([]Agg, len(rows))
	groups := groupIndices(rows, key)
	for _, idxs := range groups {
		start := 0
		for end := 0; end < len(idxs); end++ {
			i := idxs[end]
			t := timeOf(rows[i])
			lower := t - period
			for start < end && timeOf(rows[idxs[start]]) < lower {
				start++
			}
			window := make([]T, 0, end-start)
			for k := start; k < end && timeOf(rows[idxs[k]]) < t; k++ {
				window = append(window, rows[idxs[k]])
			}
			out[i] = agg(window)
		}
	}
	return out
}

func groupIndices[T any, K comparable](rows []T, key func(T) K) map[K][]int {
	groups := make(map[K][]int)
	for i, r := range rows {
		k := key(r)
		groups[k] = append(groups[k], i)
	}
	return groups
}
