package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemosyne/types"
)

func TestLoadUniverseParquetReadsRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "universe.parquet")

	f, err := os.Create(path)
	require.NoError(t, err)
	writer := parquet.NewGenericWriter[universeStoredRow](f)
	_, err = writer.Write([]universeStoredRow{
		{Date: "2024-01-01", Symbol: "BTCUSDT"},
		{Date: "2024-01-02", Symbol: "ETHUSDT"},
	})
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, f.Close())

	rows, err := LoadUniverseParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, types.Symbol("BTCUSDT"), rows[0].Symbol)
	assert.Equal(t, mustDate(t, "2024-01-01"), rows[0].Date)
}
