// Command datasetctl computes the grid dataset over a raw tick source and
// then metadata rows over that grid, serving Prometheus metrics meanwhile.
// Dataset roots and intervals come from environment variables (see
// config.Load); the universe file, metrics address and recompute switch are
// command-line flags.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"mnemosyne/config"
	"mnemosyne/dataset"
	"mnemosyne/grid"
	"mnemosyne/metadata"
	"mnemosyne/metrics"
	"mnemosyne/parallel"
	"mnemosyne/types"
)

const fieldFair = "fair"

func main() {
	universePath := flag.String("universe", "", "path to universe.parquet")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	recompute := flag.Bool("recompute", false, "recompute every partition instead of only missing ones")
	flag.Parse()

	cfg := config.Load()

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	metricsServer := metrics.Serve(*metricsAddr)
	defer metricsServer.Close()

	universe, err := dataset.LoadUniverseParquet(*universePath)
	if err != nil {
		logger.Fatalw("loading universe", "path", *universePath, "err", err)
	}

	executor := parallel.New(cfg.NumWorkers, parallel.WithLogger(logger))

	gridDataset, err := grid.NewDataset(cfg.GridRoot, universe, grid.ParquetTickSource(cfg.TickRoot), grid.Interval(cfg.GridInterval.Microseconds()), executor)
	if err != nil {
		logger.Fatalw("building grid dataset", "err", err)
	}

	ctx := context.Background()
	if err := gridDataset.Compute(ctx, *recompute, cfg.DaysPerBatch); err != nil {
		logger.Errorw("grid compute finished with failures", "err", err)
	}

	rows, err := gridDataset.Frame(ctx)
	if err != nil {
		logger.Fatalw("reading grid frame", "err", err)
	}
	logger.Infow("grid dataset ready", "rows", len(rows))

	metaBackend := make([]metadata.BackendRow, len(rows))
	metaUniverse := make([]metadata.UniverseSymbolDate, 0, len(universe))
	for i, r := range rows {
		metaBackend[i] = metadata.BackendRow{
			Date:          r.Date,
			Symbol:        r.Symbol,
			LastEventTime: r.Time,
			Fields: map[string]float64{
				metadata.FieldVolume:          r.VolumeQuote,
				metadata.FieldTakerBuyVolume:  r.TakerBuyVolumeQuote,
				metadata.FieldTakerSellVolume: r.TakerSellVolumeQuote,
				fieldFair:                     r.VWAPPrice,
			},
		}
	}
	for _, u := range universe {
		metaUniverse = append(metaUniverse, metadata.UniverseSymbolDate{Symbol: u.Symbol, Date: u.Date})
	}

	metaCfg := metadata.Config{
		ReturnsInterval:  cfg.ReturnsInterval,
		GridInterval:     cfg.MetadataInterval,
		ByLookback:       metadata.DefaultByLookback(time.Hour, 24*time.Hour),
		AccumReturns:     metadata.DefaultAccumReturns(time.Hour, 24*time.Hour),
		QuantileExpand:   metadata.DefaultQuantileExpand,
		TickLagTolerance: cfg.GridInterval,
	}

	engine := metadata.New(metaBackend, metaUniverse, func(r metadata.BackendRow) float64 { return r.Fields[fieldFair] }, metaCfg)

	var dates []types.Date
	for _, u := range universe {
		dates = append(dates, u.Date)
	}
	metaRows := engine.Compute(ctx, dates)
	logger.Infow("metadata computed", "rows", len(metaRows))
}
