// Package dataset implements the validation-cached, date-partitioned view
// and computation layer concrete datasets (such as grid.Dataset) build on. Base plays the role of ByDateDataview: it owns the
// partition list, the symbol enum, and the validation cache. Dataset adds
// ByDateDataset's parallel compute-and-sink loop on top.
package dataset

import (
	"context"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"mnemosyne/parallel"
	"mnemosyne/store"
	"mnemosyne/types"
)

// UniverseRow is the minimal (date, symbol) pair every dataset's universe()
// must supply; concrete datasets may carry extra columns in their own
// universe representation and adapt it down to this shape.
type UniverseRow struct {
	Date   types.Date
	Symbol types.Symbol
}

// Base is the common state and default behavior shared by every
// date-partitioned view: partition discovery from a universe, the symbol
// enum, and the JSON validation cache. Concrete datasets embed *Base[T] and
// may override ValidPartitionFunc for custom validation logic; the default
// just checks the partition reads back non-empty.
type Base[T any] struct {
	Store    *store.PartitionStore[T]
	Executor *parallel.Executor
	Logger   *zap.SugaredLogger

	Partitions []types.Date
	SymbolEnum types.SymbolSet

	// ValidPartitionFunc performs the actual per-partition validation check.
	// Override it (after NewBase) for schema or content validation beyond
	// "the partition reads back non-empty".
	ValidPartitionFunc func(types.Date) bool

	mu              sync.Mutex
	validPartitions map[types.Date]bool
}

// NewBase builds a Base from a universe. It loads any existing validation
// cache from disk, mirroring ByDateDataview.__post_init__.
func NewBase[T any](st *store.PartitionStore[T], executor *parallel.Executor, universe []UniverseRow, logger *zap.SugaredLogger) (*Base[T], error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	dateSet := make(map[types.Date]struct{})
	var symbols []types.Symbol
	for _, u := range universe {
		dateSet[u.Date] = struct{}{}
		symbols = append(symbols, u.Symbol)
	}
	partitions := make([]types.Date, 0, len(dateSet))
	for d := range dateSet {
		partitions = append(partitions, d)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i].Before(partitions[j]) })

	b := &Base[T]{
		Store:      st,
		Executor:   executor,
		Logger:     logger,
		Partitions: partitions,
		SymbolEnum: types.NewSymbolSet(symbols),
	}
	b.ValidPartitionFunc = b.defaultValidPartition

	cached, err := st.LoadValidationJSON()
	if err != nil {
		return nil, err
	}
	b.validPartitions = cached
	return b, nil
}

func (b *Base[T]) defaultValidPartition(d types.Date) bool {
	rows, err := b.Store.ReadPartition(d)
	if err != nil {
		b.Logger.Debugw("partition validation read failed", "date", d.String(), "err", err)
		return false
	}
	return len(rows) > 0
}

// updateValidations is the single mutation point for the validation cache,
// matching update_validations' memory+file contract.
func (b *Base[T]) updateValidations(newlyValid, newlyInvalid []types.Date, persist bool) error {
	b.mu.Lock()
	if b.validPartitions == nil {
		b.validPartitions = map[types.Date]bool{}
	}
	for _, d := range newlyValid {
		b.validPartitions[d] = true
	}
	for _, d := range newlyInvalid {
		delete(b.validPartitions, d)
	}
	snapshot := make(map[types.Date]bool, len(b.validPartitions))
	for d, v := range b.validPartitions {
		snapshot[d] = v
	}
	b.mu.Unlock()

	if !persist {
		return nil
	}
	return b.Store.SaveValidationJSON(snapshot)
}

// ValidPartition checks whether d is valid, consulting the in-memory cache
// unless recompute is set, and persists the (possibly updated) result.
func (b *Base[T]) ValidPartition(d types.Date, recompute bool) bool {
	if !recompute {
		b.mu.Lock()
		v, ok := b.validPartitions[d]
		b.mu.Unlock()
		if ok && v {
			return true
		}
	}

	isValid := b.ValidPartitionFunc(d)
	if isValid {
		b.updateValidations([]types.Date{d}, nil, true)
	} else {
		b.updateValidations(nil, []types.Date{d}, true)
	}
	return isValid
}

// ValidatePartition raises InvalidPartitionError if d fails validation.
func (b *Base[T]) ValidatePartition(d types.Date, recompute bool) error {
	if !b.ValidPartition(d, recompute) {
		return &types.InvalidPartitionError{Date: d, Reason: "failed partition validation"}
	}
	return nil
}

// InvalidPartitions validates every uncached partition (or all of them, if
// recompute) in parallel and returns the ones that are invalid. With
// recompute=false the returned set is every partition not currently marked
// valid, matching invalid_partitions' "all known invalid" semantics.
func (b *Base[T]) InvalidPartitions(ctx context.Context, recompute bool) ([]types.Date, error) {
	var toValidate []types.Date
	if recompute {
		toValidate = append(toValidate, b.Partitions...)
	} else {
		b.mu.Lock()
		for _, d := range b.Partitions {
			if !b.validPartitions[d] {
				toValidate = append(toValidate, d)
			}
		}
		b.mu.Unlock()
		if len(toValidate) == 0 {
			return nil, nil
		}
	}

	results, err := parallel.Map(ctx, b.Executor, toValidate,
		func(_ context.Context, d types.Date) (bool, error) { return b.ValidPartitionFunc(d), nil },
		func(_ types.Date, _ int, _ error) (bool, bool) { return false, true },
		nil,
	)
	if err != nil {
		return nil, &types.ValidationFailureError{Dates: toValidate, Cause: err}
	}

	var valid, invalid []types.Date
	for i, d := range toValidate {
		if results[i] {
			valid = append(valid, d)
		} else {
			invalid = append(invalid, d)
		}
	}
	if err := b.updateValidations(valid, invalid, true); err != nil {
		return nil, err
	}

	if !recompute {
		var out []types.Date
		b.mu.Lock()
		for _, d := range b.Partitions {
			if !b.validPartitions[d] {
				out = append(out, d)
			}
		}
		b.mu.Unlock()
		return out, nil
	}
	return invalid, nil
}

// Validate validates every partition and returns ValidationFailureError if
// any are invalid.
func (b *Base[T]) Validate(ctx context.Context, recompute bool) error {
	invalid, err := b.InvalidPartitions(ctx, recompute)
	if err != nil {
		return err
	}
	if len(invalid) > 0 {
		return &types.ValidationFailureError{Dates: invalid}
	}
	return nil
}

// Get validates (if needed) and reads dates, or every partition if dates is
// nil, concatenating their rows in partition order.
func (b *Base[T]) Get(ctx context.Context, dates []types.Date) ([]T, error) {
	if dates == nil {
		if err := b.Validate(ctx, false); err != nil {
			return nil, err
		}
		dates = b.Partitions
	} else {
		for _, d := range dates {
			if err := b.ValidatePartition(d, false); err != nil {
				return nil, err
			}
		}
	}

	var rows []T
	for _, d := range dates {
		r, err := b.Store.ReadPartition(d)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r...)
	}
	return rows, nil
}

// Frame materializes the whole dataset, the Go analogue of lazyframe().
func (b *Base[T]) Frame(ctx context.Context) ([]T, error) {
	return b.Get(ctx, nil)
}

// NumPartitions returns the total number of known partitions.
func (b *Base[T]) NumPartitions() int { return len(b.Partitions) }

// NumValidated returns the number of partitions currently cached as valid.
func (b *Base[T]) NumValidated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.validPartitions)
}

// ClearValidation clears the in-memory cache and/or deletes the cache file.
func (b *Base[T]) ClearValidation(memory, file bool) error {
	if memory {
		b.mu.Lock()
		b.validPartitions = map[types.Date]bool{}
		b.mu.Unlock()
	}
	if file {
		err := os.Remove(b.Store.ValidationFilePath())
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
