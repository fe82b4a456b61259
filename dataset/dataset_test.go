package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemosyne/parallel"
	"mnemosyne/store"
	"mnemosyne/types"
)

type row struct {
	Date   string  `parquet:"date"`
	Symbol string  `parquet:"symbol"`
	Time   int64   `parquet:"time"`
	Fair   float64 `parquet:"fair"`
}

func dateOf(r row) types.Date { d, _ := types.ParseDate(r.Date); return d }
func less(a, b row) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	return a.Time < b.Time
}

func newTestDataset(t *testing.T) (*Dataset[row], []UniverseRow) {
	t.Helper()
	root := t.TempDir()
	st := store.New[row](root, dateOf, less)
	universe := []UniverseRow{
		{Date: mustDate(t, "2024-01-01"), Symbol: "BTCUSDT"},
		{Date: mustDate(t, "2024-01-02"), Symbol: "BTCUSDT"},
		{Date: mustDate(t, "2024-01-03"), Symbol: "BTCUSDT"},
	}
	base, err := NewBase(st, parallel.New(2), universe, nil)
	require.NoError(t, err)

	ds := NewDataset(base, func(_ context.Context, dates []types.Date) ([]row, error) {
		var out []row
		for _, d := range dates {
			out = append(out, row{Date: d.String(), Symbol: "BTCUSDT", Time: d.Time().Unix() * 1_000_000, Fair: 100})
		}
		return out, nil
	})
	return ds, universe
}

func mustDate(t *testing.T, s string) types.Date {
	t.Helper()
	d, err := types.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestComputeWritesAndValidates(t *testing.T) {
	ds, _ := newTestDataset(t)
	ctx := context.Background()

	require.NoError(t, ds.Compute(ctx, false, 30))
	assert.Equal(t, 3, ds.NumValidated())

	// second call is a no-op since everything is already validated.
	require.NoError(t, ds.Compute(ctx, false, 30))
	assert.Equal(t, 3, ds.NumValidated())

	rows, err := ds.Frame(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestComputeFailurePropagates(t *testing.T) {
	ds, _ := newTestDataset(t)
	ds.ComputePartitionsFunc = func(_ context.Context, dates []types.Date) ([]row, error) {
		return nil, assertError{}
	}

	err := ds.Compute(context.Background(), false, 30)
	require.Error(t, err)
	var failure *types.ComputationFailureError
	require.ErrorAs(t, err, &failure)
	assert.Len(t, failure.Dates, 3)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestClearValidation(t *testing.T) {
	ds, _ := newTestDataset(t)
	require.NoError(t, ds.Compute(context.Background(), false, 30))
	require.Equal(t, 3, ds.NumValidated())

	require.NoError(t, ds.ClearValidation(true, false))
	assert.Equal(t, 0, ds.NumValidated())
}
