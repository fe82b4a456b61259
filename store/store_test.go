package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemosyne/types"
)

type tickRow struct {
	Symbol string  `parquet:"symbol"`
	Time   int64   `parquet:"time"`
	Fair   float64 `parquet:"fair"`
}

func newTestStore(t *testing.T) *PartitionStore[tickRow] {
	t.Helper()
	root := t.TempDir()
	return New[tickRow](root,
		func(r tickRow) types.Date { return types.NewDate(types.Micros(r.Time).Time()) },
		func(a, b tickRow) bool {
			if a.Symbol != b.Symbol {
				return a.Symbol < b.Symbol
			}
			return a.Time < b.Time
		},
	)
}

func TestWriteThenReadPartitionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	d, err := types.ParseDate("2024-05-01")
	require.NoError(t, err)

	base := types.Micros(d.Time().Unix() * 1_000_000)
	rows := []tickRow{
		{Symbol: "ETHUSDT", Time: int64(base) + 300, Fair: 3100.5},
		{Symbol: "BTCUSDT", Time: int64(base) + 200, Fair: 65000},
		{Symbol: "BTCUSDT", Time: int64(base) + 100, Fair: 64990},
	}

	require.NoError(t, s.WritePartitionBatch(rows))

	got, err := s.ReadPartition(d)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// sorted by (symbol, time)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, int64(base)+100, got[0].Time)
	assert.Equal(t, "BTCUSDT", got[1].Symbol)
	assert.Equal(t, int64(base)+200, got[1].Time)
	assert.Equal(t, "ETHUSDT", got[2].Symbol)
}

func TestReadMissingPartitionIsEmptyNotError(t *testing.T) {
	s := newTestStore(t)
	d, _ := types.ParseDate("2030-01-01")
	got, err := s.ReadPartition(d)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidationCacheAtomicRoundTrip(t *testing.T) {
	s := newTestStore(t)
	d1, _ := types.ParseDate("2024-01-01")
	d2, _ := types.ParseDate("2024-01-02")

	loaded, err := s.LoadValidationJSON()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, s.SaveValidationJSON(map[types.Date]bool{d1: true, d2: false}))

	loaded, err = s.LoadValidationJSON()
	require.NoError(t, err)
	assert.True(t, loaded[d1])
	_, present := loaded[d2]
	assert.False(t, present)

	raw, err := os.ReadFile(s.ValidationFilePath())
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid_partitions": ["2024-01-01"]}`, string(raw))
}
