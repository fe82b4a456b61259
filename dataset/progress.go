package dataset

import "mnemosyne/types"

// contiguousCutoff returns the latest date in sorted such that every earlier
// date in sorted is present in valid. A gap (an unvalidated or missing date)
// stops the advance at the date just before it. Returns ok=false if sorted
// is empty or its first date is itself not yet valid.
//
// This mirrors a conservative "loaded-through" cursor the way a crash-safe
// ingestion pipeline reports progress: the cursor only ever advances past a
// day once every day up to and including it is settled, so a consumer
// polling it never observes a gap appear behind the cutoff.
func contiguousCutoff(sorted []types.Date, valid map[types.Date]bool) (types.Date, bool) {
	if len(sorted) == 0 || !valid[sorted[0]] {
		return types.Date{}, false
	}
	cutoff := sorted[0]
	for _, d := range sorted[1:] {
		if !valid[d] {
			break
		}
		cutoff = d
	}
	return cutoff, true
}

// ContiguousValidThrough returns the latest partition date such that every
// partition from the dataset's earliest date up to and including it is
// currently marked valid. A caller can use this as a safe "data complete
// through" cursor without needing every individual date to have been
// explicitly re-checked this run.
func (b *Base[T]) ContiguousValidThrough() (types.Date, bool) {
	b.mu.Lock()
	snapshot := make(map[types.Date]bool, len(b.validPartitions))
	for d, v := range b.validPartitions {
		snapshot[d] = v
	}
	b.mu.Unlock()
	return contiguousCutoff(b.Partitions, snapshot)
}
