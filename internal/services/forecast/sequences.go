package forecast

import "fmt"

// BuildSequences slides a window of length L over series:
// X[k] = series[k : k+L], y[k] = series[k+L].
func BuildSequences(series []float64, L int) ([][]float64, []float64, error) {
	if L <= 0 {
		return nil, nil, fmt.Errorf("sequence length must be positive, got %d", L)
	}
	if len(series) <= L {
		return nil, nil, fmt.Errorf("need more than %d observations to build sequences, have %d", L, len(series))
	}

	n := len(series) - L
	X := make([][]float64, n)
	y := make([]float64, n)
	for k := 0; k < n; k++ {
		X[k] = series[k : k+L : k+L]
		y[k] = series[k+L]
	}
	return X, y, nil
}

// SplitIndex returns the chronological train/test boundary for n samples:
// the first int(n*ratio) are training samples.
func SplitIndex(n int, ratio float64) int {
	idx := int(float64(n) * ratio)
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}
