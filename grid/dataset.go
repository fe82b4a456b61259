package grid

import (
	"context"

	"mnemosyne/dataset"
	"mnemosyne/parallel"
	"mnemosyne/store"
	"mnemosyne/types"
)

// TickSource loads every raw tick for the given dates. Implementations
// typically scan a lossless upstream tick dataset filtered to those dates;
// Dataset never assumes a particular storage format for ticks.
type TickSource func(ctx context.Context, dates []types.Date) ([]Tick, error)

// Dataset is a date-partitioned store of aggregated grid rows. It wraps
// dataset.Dataset[storedRow] (parquet needs plain reflectable field types)
// and converts to/from Row at every boundary so callers work with Row
// exclusively.
type Dataset struct {
	*dataset.Dataset[storedRow]
}

// NewDataset builds a Dataset over aggregated grid rows. root is the grid
// dataset's own partition root (distinct from the tick source's root);
// universe lists every (date, symbol) the grid dataset should consider
// valid once computed.
func NewDataset(root string, universe []dataset.UniverseRow, ticks TickSource, interval Interval, executor *parallel.Executor) (*Dataset, error) {
	st := store.New[storedRow](root, dateOfStored, lessStored)
	base, err := dataset.NewBase(st, executor, universe, nil)
	if err != nil {
		return nil, err
	}

	computeFn := func(ctx context.Context, dates []types.Date) ([]storedRow, error) {
		raw, err := ticks(ctx, dates)
		if err != nil {
			return nil, err
		}
		rows := Aggregate(raw, interval)
		stored := make([]storedRow, len(rows))
		for i, r := range rows {
			stored[i] = toStoredRow(r)
		}
		return stored, nil
	}

	d := dataset.NewDataset(base, computeFn)
	d.Name = "grid"
	return &Dataset{Dataset: d}, nil
}

// Frame materializes every computed grid row, converting back from the
// on-disk shape.
func (d *Dataset) Frame(ctx context.Context) ([]Row, error) {
	stored, err := d.Dataset.Frame(ctx)
	if err != nil {
		return nil, err
	}
	return fromStoredRows(stored)
}

// Get reads specific dates (or the whole dataset, if dates is nil).
func (d *Dataset) Get(ctx context.Context, dates []types.Date) ([]Row, error) {
	stored, err := d.Dataset.Get(ctx, dates)
	if err != nil {
		return nil, err
	}
	return fromStoredRows(stored)
}

func fromStoredRows(stored []storedRow) ([]Row, error) {
	rows := make([]Row, len(stored))
	for i, s := range stored {
		r, err := fromStoredRow(s)
		if err != nil {
			return nil, err
		}
		rows[i] = r
	}
	return rows, nil
}
