package dataset

import (
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"mnemosyne/types"
)

type universeStoredRow struct {
	Date   string `parquet:"date"`
	Symbol string `parquet:"symbol"`
}

// LoadUniverseParquet reads a dataset's universe.parquet file: the
// authoritative (date, symbol) catalogue every Base is constructed from.
// Extra tracking columns (e.g. an intraday "hour") are ignored; callers
// needing them should read the file themselves with a wider row type.
func LoadUniverseParquet(path string) ([]UniverseRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader := parquet.NewGenericReader[universeStoredRow](f, parquet.File(f.Name(), stat.Size()))
	defer reader.Close()

	var rows []universeStoredRow
	buf := make([]universeStoredRow, 4096)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]UniverseRow, 0, len(rows))
	for _, r := range rows {
		d, err := types.ParseDate(r.Date)
		if err != nil {
			return nil, err
		}
		out = append(out, UniverseRow{Date: d, Symbol: types.Symbol(r.Symbol)})
	}
	return out, nil
}
