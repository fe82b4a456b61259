package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemosyne/types"
)

func TestContiguousValidThroughStopsAtGap(t *testing.T) {
	ds, _ := newTestDataset(t)

	// Only validate the first and third dates, leaving a gap at the second.
	require.NoError(t, ds.Base.updateValidations([]types.Date{ds.Partitions[0], ds.Partitions[2]}, nil, false))

	cutoff, ok := ds.ContiguousValidThrough()
	require.True(t, ok)
	assert.Equal(t, ds.Partitions[0], cutoff)
}

func TestContiguousValidThroughAdvancesPastFullRun(t *testing.T) {
	ds, _ := newTestDataset(t)
	require.NoError(t, ds.Compute(context.Background(), false, 30))

	cutoff, ok := ds.ContiguousValidThrough()
	require.True(t, ok)
	assert.Equal(t, ds.Partitions[len(ds.Partitions)-1], cutoff)
}

func TestContiguousValidThroughEmptyWhenFirstDateInvalid(t *testing.T) {
	ds, _ := newTestDataset(t)
	_, ok := ds.ContiguousValidThrough()
	assert.False(t, ok)
}
