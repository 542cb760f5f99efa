// Package indicators computes technical indicators over one symbol's price
// arrays. Every function returns a slice as long as its input with NaN in the
// warm-up positions, matching TA-Lib output alignment and arithmetic.
package indicators

import "math"

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// masked overwrites the warm-up prefix of out with NaN. go-talib leaves those
// positions at zero.
func masked(out []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}
