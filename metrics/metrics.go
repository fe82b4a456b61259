// Package metrics exposes the engine's Prometheus collectors: batch
// throughput for dataset Compute runs and a /metrics HTTP endpoint for
// scraping. Collectors are package-level so every dataset shares one
// registry, matching how a single process runs all of a research node's
// datasets side by side.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	batchesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_batches_processed_total",
			Help: "Total number of Compute batches processed, by dataset and outcome.",
		},
		[]string{"dataset", "outcome"},
	)
	batchProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_compute_progress_ratio",
			Help: "Fraction of batches completed by the in-flight Compute call.",
		},
		[]string{"dataset"},
	)
	partitionsValidTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_partitions_valid_total",
			Help: "Number of partitions currently marked valid for a dataset.",
		},
		[]string{"dataset"},
	)
)

func init() {
	prometheus.MustRegister(batchesProcessedTotal)
	prometheus.MustRegister(batchProgress)
	prometheus.MustRegister(partitionsValidTotal)
}

// Serve starts the /metrics HTTP endpoint on addr and returns the server so
// callers can shut it down. Errors after a graceful Shutdown are swallowed,
// matching net/http.Server's own ErrServerClosed convention.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	return srv
}

// ObserveBatch records a single Compute batch outcome for dataset.
func ObserveBatch(dataset string, succeeded bool) {
	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}
	batchesProcessedTotal.WithLabelValues(dataset, outcome).Inc()
}

// SetPartitionsValid records the current count of valid partitions for
// dataset, called after Compute finishes updating validations.
func SetPartitionsValid(dataset string, count int) {
	partitionsValidTotal.WithLabelValues(dataset).Set(float64(count))
}

// Progress returns a progress callback compatible with
// parallel.ProgressFunc, reporting a dataset's Compute progress as a ratio.
// dataset.Dataset.Compute already calls it for every run.
func Progress(dataset string) func(done, total int) {
	return func(done, total int) {
		if total <= 0 {
			return
		}
		batchProgress.WithLabelValues(dataset).Set(float64(done) / float64(total))
	}
}
