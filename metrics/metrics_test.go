package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBatchIncrementsCounter(t *testing.T) {
	ObserveBatch("grid_test", true)
	ObserveBatch("grid_test", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(batchesProcessedTotal.WithLabelValues("grid_test", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(batchesProcessedTotal.WithLabelValues("grid_test", "failure")))
}

func TestProgressSetsRatio(t *testing.T) {
	Progress("metadata_test")(3, 4)
	assert.Equal(t, 0.75, testutil.ToFloat64(batchProgress.WithLabelValues("metadata_test")))
}

func TestSetPartitionsValid(t *testing.T) {
	SetPartitionsValid("returns_test", 42)
	assert.Equal(t, 42.0, testutil.ToFloat64(partitionsValidTotal.WithLabelValues("returns_test")))
}
