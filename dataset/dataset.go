package dataset

import (
	"context"
	"os"
	"sort"

	"mnemosyne/metrics"
	"mnemosyne/parallel"
	"mnemosyne/types"
)

// Dataset adds parallel compute-and-sink to Base: ComputePartitionsFunc
// produces the rows for a contiguous batch of dates, and Compute writes
// each batch's rows to the partition store, marking successful dates valid
// exactly as ByDateDataset.compute does.
type Dataset[T any] struct {
	*Base[T]

	// Name labels this dataset's Prometheus series; defaults to the empty
	// label if unset.
	Name string

	// ComputePartitionsFunc computes rows for a contiguous batch of dates.
	// Implementations should assume all dates belong together (typically a
	// days_per_batch-sized window); it is the sole required override.
	ComputePartitionsFunc func(ctx context.Context, dates []types.Date) ([]T, error)

	// Progress, if set, is invoked after each batch completes during
	// Compute, in addition to the built-in Prometheus progress gauge.
	Progress parallel.ProgressFunc
}

// NewDataset wraps a Base with a compute function.
func NewDataset[T any](base *Base[T], computeFn func(ctx context.Context, dates []types.Date) ([]T, error)) *Dataset[T] {
	return &Dataset[T]{Base: base, ComputePartitionsFunc: computeFn}
}

// Compute computes every uncached partition (or every partition, if
// recompute) in batches of daysPerBatch contiguous dates, bounded by the
// dataset's executor. A batch failure does not abort the others — every
// batch runs to completion and failed dates are reported together at the
// end, matching ByDateDataset.compute's RuntimeError-after-the-fact
// contract. There is no cross-batch atomicity: a partially-failed run
// leaves earlier successful batches' partitions written and valid.
func (d *Dataset[T]) Compute(ctx context.Context, recompute bool, daysPerBatch int) error {
	var toCompute []types.Date
	if recompute {
		toCompute = append(toCompute, d.Partitions...)
	} else {
		d.mu.Lock()
		for _, dt := range d.Partitions {
			if !d.validPartitions[dt] {
				toCompute = append(toCompute, dt)
			}
		}
		d.mu.Unlock()
		if len(toCompute) == 0 {
			return nil
		}
	}

	sorted := append([]types.Date(nil), toCompute...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	if daysPerBatch <= 0 {
		daysPerBatch = 30
	}
	batches := parallel.ChunkList(sorted, daysPerBatch)

	d.Logger.Infow("computing partitions", "count", len(sorted), "batches", len(batches), "days_per_batch", daysPerBatch)

	metricsProgress := metrics.Progress(d.Name)
	progress := func(done, total int) {
		metricsProgress(done, total)
		if d.Progress != nil {
			d.Progress(done, total)
		}
	}

	batchResults, err := parallel.Map(ctx, d.Executor, batches,
		func(ctx context.Context, batch []types.Date) ([]types.Date, error) {
			rows, err := d.ComputePartitionsFunc(ctx, batch)
			if err != nil {
				metrics.ObserveBatch(d.Name, false)
				return nil, err
			}
			for _, dt := range batch {
				if err := os.RemoveAll(d.Store.PartitionPath(dt)); err != nil {
					metrics.ObserveBatch(d.Name, false)
					return nil, err
				}
			}
			if err := d.Store.WritePartitionBatch(rows); err != nil {
				metrics.ObserveBatch(d.Name, false)
				return nil, err
			}
			metrics.ObserveBatch(d.Name, true)
			return batch, nil
		},
		func(batch []types.Date, _ int, err error) ([]types.Date, bool) {
			d.Logger.Errorw("batch computation failed", "start", batch[0].String(), "end", batch[len(batch)-1].String(), "err", err)
			return nil, true
		},
		progress,
	)
	if err != nil {
		return &types.ComputationFailureError{Dates: sorted, Cause: err}
	}

	successSet := make(map[types.Date]bool, len(sorted))
	for _, batchDates := range batchResults {
		for _, dt := range batchDates {
			successSet[dt] = true
		}
	}
	var successful, failed []types.Date
	for _, dt := range sorted {
		if successSet[dt] {
			successful = append(successful, dt)
		} else {
			failed = append(failed, dt)
		}
	}
	if err := d.updateValidations(successful, failed, true); err != nil {
		return err
	}
	metrics.SetPartitionsValid(d.Name, d.NumValidated())
	if len(failed) > 0 {
		return &types.ComputationFailureError{Dates: failed}
	}
	return nil
}
