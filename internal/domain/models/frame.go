package models

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// Columns is the canonical FeatureTable schema. Downstream consumers depend on
// both the names and the order.
var Columns = []string{
	"symbol", "timestamp", "open", "high", "low", "close", "volume", "vwap", "trade_count",
	"adx", "atr", "aroonosc", "aroonu", "aroond",
	"bband_up", "bband_mid", "bband_low",
	"macd", "macdsignal", "macdhist",
	"rsi", "stoch_slowk", "stoch_slowd", "sma",
}

// IndicatorColumns are the computed columns, all null until the feature stage runs.
var IndicatorColumns = Columns[9:]

// Indicators holds the computed columns of one row.
type Indicators struct {
	ADX        sql.NullFloat64
	ATR        sql.NullFloat64
	AroonOsc   sql.NullFloat64
	AroonUp    sql.NullFloat64
	AroonDown  sql.NullFloat64
	BBandUp    sql.NullFloat64
	BBandMid   sql.NullFloat64
	BBandLow   sql.NullFloat64
	MACD       sql.NullFloat64
	MACDSignal sql.NullFloat64
	MACDHist   sql.NullFloat64
	RSI        sql.NullFloat64
	StochSlowK sql.NullFloat64
	StochSlowD sql.NullFloat64
	SMA        sql.NullFloat64
}

// Row is one FeatureTable row. RawTimestamp is the provider literal and is only
// meaningful until timestamps are parsed.
type Row struct {
	Symbol       string
	Timestamp    time.Time
	RawTimestamp string

	Open       sql.NullFloat64
	High       sql.NullFloat64
	Low        sql.NullFloat64
	Close      sql.NullFloat64
	Volume     sql.NullInt64
	VWAP       sql.NullFloat64
	TradeCount sql.NullInt64

	Indicators
}

// EmptyRow returns a row carrying only its key, every value column null.
func EmptyRow(symbol string, ts time.Time) Row {
	return Row{Symbol: symbol, Timestamp: ts}
}

// Values returns the row in Columns order. Nulls are nil, floats are *float64,
// integers are *int64.
func (r Row) Values() []any {
	return []any{
		r.Symbol, r.Timestamp,
		nf(r.Open), nf(r.High), nf(r.Low), nf(r.Close), ni(r.Volume), nf(r.VWAP), ni(r.TradeCount),
		nf(r.ADX), nf(r.ATR), nf(r.AroonOsc), nf(r.AroonUp), nf(r.AroonDown),
		nf(r.BBandUp), nf(r.BBandMid), nf(r.BBandLow),
		nf(r.MACD), nf(r.MACDSignal), nf(r.MACDHist),
		nf(r.RSI), nf(r.StochSlowK), nf(r.StochSlowD), nf(r.SMA),
	}
}

// Strings renders the row in Columns order for text exports; nulls are empty.
func (r Row) Strings() []string {
	vals := r.Values()
	out := make([]string, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case string:
			out[i] = x
		case time.Time:
			out[i] = x.UTC().Format(time.RFC3339)
		case *float64:
			if x != nil {
				out[i] = strconv.FormatFloat(*x, 'f', -1, 64)
			}
		case *int64:
			if x != nil {
				out[i] = strconv.FormatInt(*x, 10)
			}
		}
	}
	return out
}

// MarshalJSON writes the row as an object whose keys follow Columns order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r.Values() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(Columns[i]))
		buf.WriteByte(':')
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func nf(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func ni(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// FeatureTable is the tabular structure threaded through the pipeline. Its
// schema is Columns; stages only change rows.
type FeatureTable struct {
	Rows []Row
}

// NewFeatureTable wraps rows in a table.
func NewFeatureTable(rows []Row) *FeatureTable {
	if rows == nil {
		rows = []Row{}
	}
	return &FeatureTable{Rows: rows}
}

// Columns returns the fixed schema.
func (t *FeatureTable) Columns() []string { return Columns }

// Len returns the row count.
func (t *FeatureTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Symbols returns distinct symbols in ascending order.
func (t *FeatureTable) Symbols() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range t.Rows {
		if _, ok := seen[r.Symbol]; ok {
			continue
		}
		seen[r.Symbol] = struct{}{}
		out = append(out, r.Symbol)
	}
	sort.Strings(out)
	return out
}

// Partition is a read-only view of one symbol's rows ordered by timestamp.
type Partition struct {
	Symbol string
	Rows   []Row
}

// SortRows orders rows by symbol, then timestamp. The sort is stable so rows
// with equal keys keep their relative order.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
}

// Partitions splits rows sorted by SortRows into per-symbol views that share
// the underlying array.
func Partitions(rows []Row) []Partition {
	var out []Partition
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].Symbol != rows[start].Symbol {
			out = append(out, Partition{Symbol: rows[start].Symbol, Rows: rows[start:i:i]})
			start = i
		}
	}
	return out
}
