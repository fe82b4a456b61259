package grid

import (
	"context"

	"mnemosyne/store"
	"mnemosyne/types"
)

// tickStoredRow is the on-disk shape of a raw upstream trade tick, the
// counterpart to storedRow for Tick. Ticks are written by an upstream
// ingestion process this module doesn't own; ParquetTickSource only reads.
type tickStoredRow struct {
	Date         string  `parquet:"date"`
	Symbol       string  `parquet:"symbol"`
	Time         int64   `parquet:"time"`
	Price        float64 `parquet:"price"`
	Quantity     float64 `parquet:"quantity"`
	QuoteQty     float64 `parquet:"quote_quantity"`
	IsBuyerMaker bool    `parquet:"is_buyer_maker"`
	PegSymbol    string  `parquet:"peg_symbol"`
}

func dateOfTick(t tickStoredRow) types.Date {
	d, _ := types.ParseDate(t.Date)
	return d
}

func lessTick(a, b tickStoredRow) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	return a.Time < b.Time
}

// ParquetTickSource builds a TickSource backed by a hive-partitioned raw
// tick dataset at root, the Go analogue of scanning
// `{src_path}/**/data.parquet` with hive partitioning in the Python ancestor.
func ParquetTickSource(root string) TickSource {
	st := store.New[tickStoredRow](root, dateOfTick, lessTick)
	return func(_ context.Context, dates []types.Date) ([]Tick, error) {
		var out []Tick
		for _, d := range dates {
			rows, err := st.ReadPartition(d)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				date, err := types.ParseDate(r.Date)
				if err != nil {
					return nil, err
				}
				out = append(out, Tick{
					Date:         date,
					Symbol:       types.Symbol(r.Symbol),
					Time:         types.Micros(r.Time),
					Price:        r.Price,
					Quantity:     r.Quantity,
					QuoteQty:     r.QuoteQty,
					IsBuyerMaker: r.IsBuyerMaker,
					PegSymbol:    types.Symbol(r.PegSymbol),
				})
			}
		}
		return out, nil
	}
}
