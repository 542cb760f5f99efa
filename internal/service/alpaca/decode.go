package alpaca

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"StockFrame/internal/domain/models"
)

// barFields maps provider keys to canonical raw column names.
var barFields = map[string]string{
	"c":  "close",
	"h":  "high",
	"l":  "low",
	"n":  "trade_count",
	"o":  "open",
	"t":  "timestamp",
	"v":  "volume",
	"vw": "vwap",
}

// providerKeys is barFields inverted, keyed by raw column name.
var providerKeys = func() map[string]string {
	m := make(map[string]string, len(barFields))
	for k, col := range barFields {
		m[col] = k
	}
	return m
}()

// nullableColumns may be absent or null on a bar; every other raw column is required.
var nullableColumns = map[string]bool{"volume": true, "trade_count": true}

type page struct {
	bars []models.Bar
	next string
	last bool
}

type wireBar struct {
	T  string  `json:"t"`
	O  float64 `json:"o"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	C  float64 `json:"c"`
	VW float64 `json:"vw"`
	V  flexInt `json:"v"`
	N  flexInt `json:"n"`
}

// flexInt accepts integral JSON numbers written either as integers or floats,
// and null.
type flexInt struct {
	sql.NullInt64
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		f.Valid = false
		return nil
	}
	if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		f.Int64, f.Valid = n, true
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Errorf("not a number: %s", b)
	}
	f.Int64, f.Valid = int64(v), true
	return nil
}

func isNull(b []byte) bool {
	return len(b) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

// decodePage validates the page envelope and extracts its bars by field name.
// A missing next_page_token key is invalid; a null token marks the last page.
func decodePage(body []byte) (*page, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	rawBars, ok := env["bars"]
	if !ok {
		return nil, fmt.Errorf("%w: missing bars field", models.ErrInvalidResponse)
	}
	rawToken, ok := env["next_page_token"]
	if !ok {
		return nil, fmt.Errorf("%w: missing next_page_token field", models.ErrInvalidResponse)
	}

	p := &page{}
	if isNull(rawToken) {
		p.last = true
	} else if err := json.Unmarshal(rawToken, &p.next); err != nil {
		return nil, fmt.Errorf("%w: next_page_token: %v", models.ErrInvalidResponse, err)
	} else if p.next == "" {
		p.last = true
	}

	if isNull(rawBars) {
		return p, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(rawBars, &records); err != nil {
		return nil, fmt.Errorf("%w: bars: %v", models.ErrInvalidResponse, err)
	}
	p.bars = make([]models.Bar, 0, len(records))
	for i, rec := range records {
		b, err := decodeBar(rec)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		p.bars = append(p.bars, b)
	}
	return p, nil
}

// checkColumns maps the record onto models.RawColumns. The symbol column is
// tagged by the assembler, so every other column needs a provider key.
func checkColumns(fields map[string]json.RawMessage) error {
	for _, col := range models.RawColumns {
		if col == "symbol" {
			continue
		}
		k, ok := providerKeys[col]
		if !ok {
			return fmt.Errorf("%w: no provider field maps to column %q", models.ErrSchemaMismatch, col)
		}
		v, present := fields[k]
		if !nullableColumns[col] && (!present || isNull(v)) {
			return fmt.Errorf("%w: bar has no %q (%s) field", models.ErrSchemaMismatch, k, col)
		}
	}
	return nil
}

func decodeBar(rec json.RawMessage) (models.Bar, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec, &fields); err != nil {
		return models.Bar{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if err := checkColumns(fields); err != nil {
		return models.Bar{}, err
	}
	var w wireBar
	if err := json.Unmarshal(rec, &w); err != nil {
		return models.Bar{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	return models.Bar{
		Timestamp:  w.T,
		Open:       w.O,
		High:       w.H,
		Low:        w.L,
		Close:      w.C,
		VWAP:       w.VW,
		Volume:     w.V.NullInt64,
		TradeCount: w.N.NullInt64,
	}, nil
}
