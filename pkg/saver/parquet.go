package saver

import (
	"time"

	"StockFrame/internal/domain/models"

	"github.com/parquet-go/parquet-go"
)

// Record is the Parquet row layout. Field order follows models.Columns.
type Record struct {
	Symbol     string    `parquet:"symbol"`
	Timestamp  time.Time `parquet:"timestamp,timestamp(millisecond)"`
	Open       *float64  `parquet:"open,optional"`
	High       *float64  `parquet:"high,optional"`
	Low        *float64  `parquet:"low,optional"`
	Close      *float64  `parquet:"close,optional"`
	Volume     *int64    `parquet:"volume,optional"`
	VWAP       *float64  `parquet:"vwap,optional"`
	TradeCount *int64    `parquet:"trade_count,optional"`
	ADX        *float64  `parquet:"adx,optional"`
	ATR        *float64  `parquet:"atr,optional"`
	AroonOsc   *float64  `parquet:"aroonosc,optional"`
	AroonUp    *float64  `parquet:"aroonu,optional"`
	AroonDown  *float64  `parquet:"aroond,optional"`
	BBandUp    *float64  `parquet:"bband_up,optional"`
	BBandMid   *float64  `parquet:"bband_mid,optional"`
	BBandLow   *float64  `parquet:"bband_low,optional"`
	MACD       *float64  `parquet:"macd,optional"`
	MACDSignal *float64  `parquet:"macdsignal,optional"`
	MACDHist   *float64  `parquet:"macdhist,optional"`
	RSI        *float64  `parquet:"rsi,optional"`
	StochSlowK *float64  `parquet:"stoch_slowk,optional"`
	StochSlowD *float64  `parquet:"stoch_slowd,optional"`
	SMA        *float64  `parquet:"sma,optional"`
}

// NewRecord converts a row, keeping nulls as nil pointers.
func NewRecord(r models.Row) Record {
	v := r.Values()
	f := func(i int) *float64 { return v[i].(*float64) }
	n := func(i int) *int64 { return v[i].(*int64) }
	return Record{
		Symbol:     r.Symbol,
		Timestamp:  r.Timestamp.UTC(),
		Open:       f(2),
		High:       f(3),
		Low:        f(4),
		Close:      f(5),
		Volume:     n(6),
		VWAP:       f(7),
		TradeCount: n(8),
		ADX:        f(9),
		ATR:        f(10),
		AroonOsc:   f(11),
		AroonUp:    f(12),
		AroonDown:  f(13),
		BBandUp:    f(14),
		BBandMid:   f(15),
		BBandLow:   f(16),
		MACD:       f(17),
		MACDSignal: f(18),
		MACDHist:   f(19),
		RSI:        f(20),
		StochSlowK: f(21),
		StochSlowD: f(22),
		SMA:        f(23),
	}
}

// ParquetSaver writes the table as a single Parquet file.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(t *models.FeatureTable, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	records := make([]Record, t.Len())
	for i := 0; i < t.Len(); i++ {
		records[i] = NewRecord(t.Rows[i])
	}
	return parquet.WriteFile(path, records)
}
