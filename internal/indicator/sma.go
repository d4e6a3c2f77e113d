// Package indicator computes the rolling statistics drawn on the dashboard:
// a simple moving average and an RSI-style oscillator.
//
// Both functions take a plain []float64 and return a slice of the same
// length. An absent output value (not enough samples yet, or a degenerate
// window) is represented as NaN; callers convert it to whatever "missing"
// marker their output format uses.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"stockview/internal/domain"
)

// ErrInvalidWindow is returned when a window size is zero or negative.
var ErrInvalidWindow = errors.New("window must be positive")

// SimpleMovingAverage returns the rolling mean of values over window.
//
// Element i is the mean of the non-NaN values in [max(0, i-window+1), i].
// The first window-1 elements average whatever is available (minimum
// periods of one) instead of being absent. An element is NaN only when every
// value in its range is NaN.
func SimpleMovingAverage(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: sma window %d", ErrInvalidWindow, window)
	}

	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		n := 0
		for _, v := range values[start : i+1] {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(n)
	}
	return out, nil
}

// Closes extracts the close price column from bars.
func Closes(bars []domain.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent defined value in values, and false if there
// is none.
func Last(values []float64) (float64, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i], true
		}
	}
	return 0, false
}
