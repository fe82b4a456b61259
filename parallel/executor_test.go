package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesInputOrder(t *testing.T) {
	e := New(4)
	args := []int{5, 4, 3, 2, 1, 0}

	results, err := Map(context.Background(), e, args, func(_ context.Context, a int) (int, error) {
		return a * a, nil
	}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []int{25, 16, 9, 4, 1, 0}, results)
}

func TestMapOnErrorSubstitutes(t *testing.T) {
	e := New(2)
	args := []int{1, 2, 3, 4}

	results, err := Map(context.Background(), e, args, func(_ context.Context, a int) (int, error) {
		if a == 3 {
			return 0, errors.New("boom")
		}
		return a, nil
	}, func(arg int, index int, err error) (int, bool) {
		return -1, true
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, -1, 4}, results)
}

func TestMapAbortsWithoutOnError(t *testing.T) {
	e := New(2)
	args := []int{1, 2, 3, 4}

	_, err := Map(context.Background(), e, args, func(_ context.Context, a int) (int, error) {
		if a == 3 {
			return 0, errors.New("boom")
		}
		return a, nil
	}, nil, nil)
	require.Error(t, err)
}

func TestMapReportsProgress(t *testing.T) {
	e := New(2)
	args := []int{1, 2, 3, 4, 5}
	var calls int64

	_, err := Map(context.Background(), e, args, func(_ context.Context, a int) (int, error) {
		return a, nil
	}, nil, func(done, total int) {
		atomic.AddInt64(&calls, 1)
		assert.LessOrEqual(t, done, total)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(args)), atomic.LoadInt64(&calls))
}

func TestChunkApplyConcatenatesInOrder(t *testing.T) {
	e := New(3)
	args := []int{1, 2, 3, 4, 5, 6, 7}

	results, err := ChunkApply(context.Background(), e, args, 3, func(_ context.Context, chunk []int) ([]int, error) {
		out := make([]int, len(chunk))
		for i, v := range chunk {
			out[i] = v * 10
		}
		return out, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70}, results)
}

func TestChunkList(t *testing.T) {
	got := ChunkList([]int{1, 2, 3, 4, 5}, 2)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2}, got[0])
	assert.Equal(t, []int{5}, got[2])
}
