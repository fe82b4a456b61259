package returns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemosyne/store"
	"mnemosyne/types"
)

func TestLoadBackendReadsWrittenRows(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := types.NewDate(base)
	tickTime := types.FromUnixMicros(base.UnixMicro())

	st := store.New[storedBackendRow](root, dateOfBackendRow, lessBackendRow)
	require.NoError(t, st.WritePartitionBatch([]storedBackendRow{
		{Date: day.String(), Symbol: "BTCUSDT", TickTime: int64(tickTime), Fair: 100},
	}))

	rows, err := LoadBackend(root, []types.Date{day})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Symbol("BTCUSDT"), rows[0].Symbol)
	assert.Equal(t, 100.0, rows[0].Fair)
}

func TestLoadBackendMissingPartitionIsEmpty(t *testing.T) {
	root := t.TempDir()
	day := types.NewDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rows, err := LoadBackend(root, []types.Date{day})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
