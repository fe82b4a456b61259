// Package xmath holds small numeric helpers shared by the returns and
// metadata engines: NaN-safe aggregates and the average-rank used for
// cross-sectional quantile expansion. Kept on float64 rather than a generic
// constraints.Float since every engine value already flows as float64 (the
// module's uniform absence sentinel is math.NaN()).
package xmath

import (
	"math"
	"sort"
)

// Sum ignores NaNs. An all-NaN or empty input sums to NaN so downstream
// division still propagates absence instead of silently becoming zero.
func Sum(xs []float64) float64 {
	sum := 0.0
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum
}

func Mean(xs []float64) float64 {
	sum := 0.0
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Std returns the sample standard deviation (ddof=1), matching polars' default.
func Std(xs []float64) float64 {
	mean := Mean(xs)
	if math.IsNaN(mean) {
		return math.NaN()
	}
	sumSq := 0.0
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		d := x - mean
		sumSq += d * d
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Count returns the number of non-NaN observations.
func Count(xs []float64) float64 {
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) {
			n++
		}
	}
	return float64(n)
}

// Last returns the last element, or NaN for an empty slice.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

// AverageRank assigns each element its 1-based rank among xs, averaging
// ranks across ties (polars' rank(method="average")). NaNs rank as NaN.
func AverageRank(xs []float64) []float64 {
	type idxVal struct {
		i int
		v float64
	}
	vals := make([]idxVal, 0, len(xs))
	for i, x := range xs {
		if !math.IsNaN(x) {
			vals = append(vals, idxVal{i, x})
		}
	}
	sort.Slice(vals, func(a, b int) bool { return vals[a].v < vals[b].v })

	ranks := make([]float64, len(xs))
	for i := range ranks {
		ranks[i] = math.NaN()
	}
	i := 0
	for i < len(vals) {
		j := i
		for j < len(vals) && vals[j].v == vals[i].v {
			j++
		}
		// average rank for the tie group [i, j), 1-based
		avg := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[vals[k].i] = avg
		}
		i = j
	}
	return ranks
}

// QuantileRank returns AverageRank(xs) / count(non-NaN xs), the "_q" column
// convention: 0 < q <= 1, with the top observation at 1.0.
func QuantileRank(xs []float64) []float64 {
	ranks := AverageRank(xs)
	n := Count(xs)
	out := make([]float64, len(xs))
	for i, r := range ranks {
		if math.IsNaN(r) || n == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = r / n
	}
	return out
}
