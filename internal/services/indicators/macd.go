package indicators

// MACDLookback is the number of leading NaN outputs of MACD.
func MACDLookback(fast, slow, signal int) int {
	if slow < fast {
		slow = fast
	}
	return EMALookback(slow) + EMALookback(signal)
}

// MACD returns the MACD line, its signal line and the histogram. Both EMAs
// start at the slow lookback so they are aligned on the same bar, and all three
// outputs begin once the signal EMA is seeded.
func MACD(in []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	n := len(in)
	macd, sig, hist = nanSlice(n), nanSlice(n), nanSlice(n)
	if slow < fast {
		fast, slow = slow, fast
	}
	if fast < 1 || signal < 1 {
		return macd, sig, hist
	}
	lookback := MACDLookback(fast, slow, signal)
	if n <= lookback {
		return macd, sig, hist
	}

	first := EMALookback(slow)
	fastEMA, slowEMA := nanSlice(n), nanSlice(n)
	emaFrom(in, fast, first, fastEMA)
	emaFrom(in, slow, first, slowEMA)

	line := nanSlice(n)
	for i := first; i < n; i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := nanSlice(n)
	emaFrom(line, signal, lookback, signalLine)

	for i := lookback; i < n; i++ {
		macd[i] = line[i]
		sig[i] = signalLine[i]
		hist[i] = line[i] - signalLine[i]
	}
	return macd, sig, hist
}
