package returns

import (
	"mnemosyne/store"
	"mnemosyne/types"
)

// storedBackendRow is BackendRow's on-disk shape: types.Date wraps an
// unexported field parquet-go's generic reader can't reflect over, so
// persisted rows use plain primitives instead.
type storedBackendRow struct {
	Date     string  `parquet:"date"`
	Symbol   string  `parquet:"symbol"`
	TickTime int64   `parquet:"tick_time"`
	Fair     float64 `parquet:"fair"`
}

func dateOfBackendRow(r storedBackendRow) types.Date {
	d, _ := types.ParseDate(r.Date)
	return d
}

func lessBackendRow(a, b storedBackendRow) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	return a.TickTime < b.TickTime
}

// LoadBackend reads a hive-partitioned backend tick dataset at root for the
// given dates and returns it as BackendRow, ready to hand to New. The engine
// itself holds only an in-memory snapshot; callers decide when to reload.
func LoadBackend(root string, dates []types.Date) ([]BackendRow, error) {
	st := store.New[storedBackendRow](root, dateOfBackendRow, lessBackendRow)
	var out []BackendRow
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
			out = append(out, BackendRow{
				Date:     date,
				Symbol:   types.Symbol(r.Symbol),
				TickTime: types.Micros(r.TickTime),
				Fair:     r.Fair,
			})
		}
	}
	return out, nil
}
