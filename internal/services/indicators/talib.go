package indicators

import talib "github.com/markcheno/go-talib"

// SMALookback is the number of leading NaN outputs of SMA.
func SMALookback(period int) int { return period - 1 }

// ATRLookback is the number of leading NaN outputs of ATR.
func ATRLookback(period int) int { return period }

// ADXLookback is the number of leading NaN outputs of ADX.
func ADXLookback(period int) int { return 2*period - 1 }

// RSILookback is the number of leading NaN outputs of RSI.
func RSILookback(period int) int { return period }

// AroonLookback is the number of leading NaN outputs of Aroon.
func AroonLookback(period int) int { return period }

// BBandsLookback is the number of leading NaN outputs of BBands.
func BBandsLookback(period int) int { return SMALookback(period) }

// StochLookback is the number of leading NaN outputs of Stoch.
func StochLookback(fastK, slowK, slowD int) int {
	return (fastK - 1) + SMALookback(slowK) + SMALookback(slowD)
}

// SMA is the simple moving average over period values.
func SMA(in []float64, period int) []float64 {
	if period < 1 || len(in) < period {
		return nanSlice(len(in))
	}
	return masked(talib.Sma(in, period), SMALookback(period))
}

// ATR is the average true range with Wilder smoothing.
func ATR(high, low, close []float64, period int) []float64 {
	if period < 1 || len(close) <= period {
		return nanSlice(len(close))
	}
	return masked(talib.Atr(high, low, close, period), ATRLookback(period))
}

// ADX is the average directional movement index.
func ADX(high, low, close []float64, period int) []float64 {
	lookback := ADXLookback(period)
	if period < 2 || len(close) <= lookback {
		return nanSlice(len(close))
	}
	return masked(talib.Adx(high, low, close, period), lookback)
}

// RSI is the relative strength index with Wilder smoothing. A window with no
// movement at all yields 0.
func RSI(in []float64, period int) []float64 {
	if period < 2 || len(in) <= period {
		return nanSlice(len(in))
	}
	return masked(talib.Rsi(in, period), RSILookback(period))
}

// Aroon returns the Aroon up and down lines over a window of period+1 bars.
// When the extreme value repeats, the most recent bar wins.
func Aroon(high, low []float64, period int) (up, down []float64) {
	n := len(high)
	if period < 2 || n <= period {
		return nanSlice(n), nanSlice(n)
	}
	up, down = talib.Aroon(high, low, period)
	lookback := AroonLookback(period)
	return masked(up, lookback), masked(down, lookback)
}

// AroonOsc is Aroon up minus Aroon down.
func AroonOsc(high, low []float64, period int) []float64 {
	if period < 2 || len(high) <= period {
		return nanSlice(len(high))
	}
	return masked(talib.AroonOsc(high, low, period), AroonLookback(period))
}

// BBands returns Bollinger bands around an SMA basis using the population
// standard deviation of the same window.
func BBands(in []float64, period int, devUp, devDown float64) (upper, middle, lower []float64) {
	n := len(in)
	if period < 2 || n < period {
		return nanSlice(n), SMA(in, period), nanSlice(n)
	}
	upper, middle, lower = talib.BBands(in, period, devUp, devDown, talib.SMA)
	lookback := BBandsLookback(period)
	return masked(upper, lookback), masked(middle, lookback), masked(lower, lookback)
}

// Stoch returns the slow stochastic %K and %D, both smoothed with an SMA.
// A flat fast-%K window yields 0.
func Stoch(high, low, close []float64, fastK, slowK, slowD int) (k, d []float64) {
	n := len(close)
	lookback := StochLookback(fastK, slowK, slowD)
	if fastK < 1 || slowK < 1 || slowD < 1 || n <= lookback {
		return nanSlice(n), nanSlice(n)
	}
	k, d = talib.Stoch(high, low, close, fastK, slowK, talib.SMA, slowD, talib.SMA)
	return masked(k, lookback), masked(d, lookback)
}
