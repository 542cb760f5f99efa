package indicators

import (
	"fmt"

	"StockFrame/internal/domain/models"
)

// Fixed parameters of the feature set.
const (
	ADXPeriod    = 14
	ATRPeriod    = 14
	AroonPeriod  = 14
	BBandsPeriod = 5
	BBandsDev    = 2.0
	MACDFast     = 12
	MACDSlow     = 26
	MACDSignal   = 9
	RSIPeriod    = 14
	StochFastK   = 5
	StochSlowK   = 3
	StochSlowD   = 3
	SMAPeriod    = 30
	MinHistory   = MACDSlow
)

// Set holds every indicator output for one symbol, each aligned to the input.
type Set struct {
	ADX        []float64
	ATR        []float64
	AroonOsc   []float64
	AroonUp    []float64
	AroonDown  []float64
	BBandUp    []float64
	BBandMid   []float64
	BBandLow   []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	RSI        []float64
	StochSlowK []float64
	StochSlowD []float64
	SMA        []float64
}

// Len is the common output length.
func (s *Set) Len() int { return len(s.SMA) }

// Compute runs the full feature set over one symbol's high, low and close.
// Inputs shorter than MinHistory fail with models.ErrInsufficientHistory.
func Compute(high, low, close []float64) (*Set, error) {
	n := len(close)
	if len(high) != n || len(low) != n {
		return nil, fmt.Errorf("input lengths differ: high=%d low=%d close=%d", len(high), len(low), n)
	}
	if n < MinHistory {
		return nil, fmt.Errorf("%w: %d rows, need %d", models.ErrInsufficientHistory, n, MinHistory)
	}

	s := &Set{
		ADX:      ADX(high, low, close, ADXPeriod),
		ATR:      ATR(high, low, close, ATRPeriod),
		AroonOsc: AroonOsc(high, low, AroonPeriod),
		RSI:      RSI(close, RSIPeriod),
		SMA:      SMA(close, SMAPeriod),
	}
	s.AroonUp, s.AroonDown = Aroon(high, low, AroonPeriod)
	s.BBandUp, s.BBandMid, s.BBandLow = BBands(close, BBandsPeriod, BBandsDev, BBandsDev)
	s.MACD, s.MACDSignal, s.MACDHist = MACD(close, MACDFast, MACDSlow, MACDSignal)
	s.StochSlowK, s.StochSlowD = Stoch(high, low, close, StochFastK, StochSlowK, StochSlowD)
	return s, nil
}
