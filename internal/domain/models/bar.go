package models

import "database/sql"

// RawColumns lists the provider fields a bar record is built from, plus the symbol tag.
var RawColumns = []string{"close", "high", "low", "trade_count", "open", "timestamp", "volume", "vwap", "symbol"}

// Bar is one OHLCV observation for a symbol at a given minute.
// Timestamp keeps the provider literal; it is parsed by the timestamp stage.
type Bar struct {
	Symbol     string
	Timestamp  string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	VWAP       float64
	Volume     sql.NullInt64
	TradeCount sql.NullInt64
}

// Row converts the bar into a FeatureTable row with null indicators.
func (b Bar) Row() Row {
	return Row{
		Symbol:       b.Symbol,
		RawTimestamp: b.Timestamp,
		Open:         sql.NullFloat64{Float64: b.Open, Valid: true},
		High:         sql.NullFloat64{Float64: b.High, Valid: true},
		Low:          sql.NullFloat64{Float64: b.Low, Valid: true},
		Close:        sql.NullFloat64{Float64: b.Close, Valid: true},
		Volume:       b.Volume,
		VWAP:         sql.NullFloat64{Float64: b.VWAP, Valid: true},
		TradeCount:   b.TradeCount,
	}
}
