package indicators

// EMALookback is the number of leading NaN outputs of EMA.
func EMALookback(period int) int { return period - 1 }

// EMA is the exponential moving average with k = 2/(period+1), seeded with the
// SMA of the first period values.
func EMA(in []float64, period int) []float64 {
	out := nanSlice(len(in))
	if period < 1 || len(in) < period {
		return out
	}
	emaFrom(in, period, period-1, out)
	return out
}

// emaFrom writes EMA values into out starting at index first. The seed is the
// mean of the period values ending at first.
func emaFrom(in []float64, period, first int, out []float64) {
	k := 2.0 / float64(period+1)
	var sum float64
	for i := first - period + 1; i <= first; i++ {
		sum += in[i]
	}
	prev := sum / float64(period)
	out[first] = prev
	for i := first + 1; i < len(in); i++ {
		prev = (in[i]-prev)*k + prev
		out[i] = prev
	}
}
