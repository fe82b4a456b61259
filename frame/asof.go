// Package frame provides the generic, in-memory columnar helpers the rest
// of the engine builds on: a backward asof join and closed-left rolling
// windows over sorted slices. There is no lazy query-planning runtime in
// this ecosystem to delegate to, so these are hand-built, typed substitutes
// kept deliberately small: callers bring their own row types and accessor
// closures rather than a general expression tree.
package frame

import "sort"

// AsofBackward matches each row in left to the most recent row in right with
// the same key and rightTime <= leftTime. Both slices must already be sorted
// by (key, time); right is grouped by key internally. The result slice has
// the same length as left; unmatched rows (no right row at or before
// leftTime for that key, or leftKey not present in right at all) get -1.
//
// This mirrors a backward join_asof grouped `by`, the core primitive behind
// ReturnsEngine.Query and MetadataEngine.AppendMetadata.
func AsofBackward[L, R any, K comparable](
	left []L, right []R,
	leftKey func(L) K, leftTime func(L) int64,
	rightKey func(R) K, rightTime func(R) int64,
) []int {
	byKey := make(map[K][]int, 16)
	for i, r := range right {
		k := rightKey(r)
		byKey[k] = append(byKey[k], i)
	}

	result := make([]int, len(left))
	for i, l := range left {
		k := leftKey(l)
		candidates := byKey[k]
		if len(candidates) == 0 {
			result[i] = -1
			continue
		}
		t := leftTime(l)
		// candidates are in right's original (sorted-by-time) order because
		// right itself is sorted by (key, time) before grouping.
		idx := sort.Search(len(candidates), func(j int) bool {
			return rightTime(right[candidates[j]]) > t
		})
		if idx == 0 {
			result[i] = -1
			continue
		}
		result[i] = candidates[idx-1]
	}
	return result
}
