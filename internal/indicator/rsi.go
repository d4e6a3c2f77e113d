package indicator

import (
	"fmt"
	"math"
	"strings"
)

// FlatPolicy decides the oscillator value when both the average gain and the
// average loss over a window are zero (a flat price run, 0/0).
type FlatPolicy string

const (
	// FlatUndefined leaves the value absent (NaN).
	FlatUndefined FlatPolicy = "undefined"
	// FlatNeutral reports the midpoint, 50.
	FlatNeutral FlatPolicy = "neutral"
)

// ParseFlatPolicy parses a policy name. The empty string selects
// FlatUndefined.
func ParseFlatPolicy(s string) (FlatPolicy, error) {
	switch p := FlatPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FlatUndefined, nil
	case FlatUndefined, FlatNeutral:
		return p, nil
	}
	return "", fmt.Errorf("unknown flat policy %q", s)
}

// RSI computes the oscillator over values with the FlatUndefined policy.
func RSI(values []float64, window int) ([]float64, error) {
	return RSIWithPolicy(values, window, FlatUndefined)
}

// RSIWithPolicy computes a 0-100 relative strength oscillator.
//
// Successive differences d[i] = values[i] - values[i-1] are split into gains
// max(d, 0) and losses max(-d, 0), each averaged with a strict rolling mean
// over the last window differences. Output i is therefore absent for
// i < window. A difference that touches a NaN input is undefined, and so is
// every window containing it.
//
// With no losses and some gains the output is 100. With neither, the result
// follows policy.
func RSIWithPolicy(values []float64, window int, policy FlatPolicy) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: rsi window %d", ErrInvalidWindow, window)
	}

	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) <= window {
		return out, nil
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	gains[0], losses[0] = math.NaN(), math.NaN()
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		switch {
		case math.IsNaN(d):
			gains[i], losses[i] = math.NaN(), math.NaN()
		case d > 0:
			gains[i] = d
		default:
			losses[i] = -d
		}
	}

	for i := window; i < len(values); i++ {
		var gainSum, lossSum float64
		defined := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(gains[j]) {
				defined = false
				break
			}
			gainSum += gains[j]
			lossSum += losses[j]
		}
		if !defined {
			continue
		}
		out[i] = oscillate(gainSum/float64(window), lossSum/float64(window), policy)
	}
	return out, nil
}

func oscillate(avgGain, avgLoss float64, policy FlatPolicy) float64 {
	if avgLoss == 0 {
		if avgGain > 0 {
			return 100
		}
		if policy == FlatNeutral {
			return 50
		}
		return math.NaN()
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
