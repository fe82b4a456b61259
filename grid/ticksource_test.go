package grid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemosyne/store"
	"mnemosyne/types"
)

func TestParquetTickSourceReadsWrittenTicks(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := types.NewDate(base)

	st := store.New[tickStoredRow](root, dateOfTick, lessTick)
	require.NoError(t, st.WritePartitionBatch([]tickStoredRow{
		{Date: day.String(), Symbol: "A", Time: int64(microsAt(base, 0)), Price: 100, Quantity: 1, QuoteQty: 100, IsBuyerMaker: false, PegSymbol: "USDT"},
	}))

	source := ParquetTickSource(root)
	ticks, err := source(context.Background(), []types.Date{day})
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, types.Symbol("A"), ticks[0].Symbol)
	assert.Equal(t, 100.0, ticks[0].Price)
	assert.Equal(t, types.Symbol("USDT"), ticks[0].PegSymbol)
}

func TestParquetTickSourceMissingPartitionIsEmpty(t *testing.T) {
	root := t.TempDir()
	source := ParquetTickSource(root)
	day := types.NewDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ticks, err := source(context.Background(), []types.Date{day})
	require.NoError(t, err)
	assert.Empty(t, ticks)
}
