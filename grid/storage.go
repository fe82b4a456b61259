package grid

import "mnemosyne/types"

// storedRow is Row's on-disk shape: parquet-go's generic reader/writer needs
// exported, reflectable field types, so Date/Symbol/Time round-trip as the
// plain string/int64 the wire format actually carries rather than the
// unexported-field Date wrapper.
type storedRow struct {
	Date   string `parquet:"date"`
	Symbol string `parquet:"symbol"`
	Time   int64  `parquet:"time"`

	Open  float64 `parquet:"open"`
	High  float64 `parquet:"high"`
	Low   float64 `parquet:"low"`
	Close float64 `parquet:"close"`

	Volume        float64 `parquet:"volume"`
	VolumeQuote   float64 `parquet:"volume_quote"`
	TradeCount    int64   `parquet:"trade_count"`
	LastEventTime int64   `parquet:"last_event_time"`

	TakerBuyVolume       float64 `parquet:"taker_buy_volume"`
	TakerSellVolume      float64 `parquet:"taker_sell_volume"`
	TakerBuyVolumeQuote  float64 `parquet:"taker_buy_volume_quote"`
	TakerSellVolumeQuote float64 `parquet:"taker_sell_volume_quote"`
	VWAPTakerBuy         float64 `parquet:"vwap_taker_buy"`
	VWAPTakerSell        float64 `parquet:"vwap_taker_sell"`
	VWAPPrice            float64 `parquet:"vwap_price"`

	PegSymbol string `parquet:"peg_symbol"`
}

func toStoredRow(r Row) storedRow {
	return storedRow{
		Date:                 r.Date.String(),
		Symbol:               string(r.Symbol),
		Time:                 int64(r.Time),
		Open:                 r.Open,
		High:                 r.High,
		Low:                  r.Low,
		Close:                r.Close,
		Volume:               r.Volume,
		VolumeQuote:          r.VolumeQuote,
		TradeCount:           int64(r.TradeCount),
		LastEventTime:        int64(r.LastEventTime),
		TakerBuyVolume:       r.TakerBuyVolume,
		TakerSellVolume:      r.TakerSellVolume,
		TakerBuyVolumeQuote:  r.TakerBuyVolumeQuote,
		TakerSellVolumeQuote: r.TakerSellVolumeQuote,
		VWAPTakerBuy:         r.VWAPTakerBuy,
		VWAPTakerSell:        r.VWAPTakerSell,
		VWAPPrice:            r.VWAPPrice,
		PegSymbol:            string(r.PegSymbol),
	}
}

func fromStoredRow(s storedRow) (Row, error) {
	date, err := types.ParseDate(s.Date)
	if err != nil {
		return Row{}, err
	}
	return Row{
		Date:                 date,
		Symbol:               types.Symbol(s.Symbol),
		Time:                 types.Micros(s.Time),
		Open:                 s.Open,
		High:                 s.High,
		Low:                  s.Low,
		Close:                s.Close,
		Volume:               s.Volume,
		VolumeQuote:          s.VolumeQuote,
		TradeCount:           int(s.TradeCount),
		LastEventTime:        types.Micros(s.LastEventTime),
		TakerBuyVolume:       s.TakerBuyVolume,
		TakerSellVolume:      s.TakerSellVolume,
		TakerBuyVolumeQuote:  s.TakerBuyVolumeQuote,
		TakerSellVolumeQuote: s.TakerSellVolumeQuote,
		VWAPTakerBuy:         s.VWAPTakerBuy,
		VWAPTakerSell:        s.VWAPTakerSell,
		VWAPPrice:            s.VWAPPrice,
		PegSymbol:            types.Symbol(s.PegSymbol),
	}, nil
}

func dateOfStored(s storedRow) types.Date {
	d, _ := types.ParseDate(s.Date)
	return d
}

func lessStored(a, b storedRow) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	return a.Time < b.Time
}
