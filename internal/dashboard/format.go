package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	// Negate in uint64 so math.MinInt64 does not overflow.
	u, sign := uint64(n), ""
	if n < 0 {
		u, sign = -u, "-"
	}
	s := strconv.FormatUint(u, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatVolume formats a share volume with B/M/K suffixes.
func FormatVolume(v int64) string {
	f := float64(v)
	switch {
	case f >= 1e9:
		return fmt.Sprintf("%.1fB", f/1e9)
	case f >= 1e6:
		return fmt.Sprintf("%.1fM", f/1e6)
	case f >= 1e3:
		return fmt.Sprintf("%.1fK", f/1e3)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// FormatPrice formats a price with two decimals, or "-" when absent.
func FormatPrice(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatOscillator formats an RSI reading with one decimal, or "-" when
// absent.
func FormatOscillator(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

// Sparkline renders values as a row of block characters scaled between lo
// and hi. Absent values render as a space.
func Sparkline(values []float64, lo, hi float64) string {
	const blocks = "▁▂▃▄▅▆▇█"
	runes := []rune(blocks)
	var b strings.Builder
	for _, v := range values {
		if math.IsNaN(v) {
			b.WriteByte(' ')
			continue
		}
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(runes)-1))
		}
		idx = max(0, min(idx, len(runes)-1))
		b.WriteRune(runes[idx])
	}
	return b.String()
}

// Range returns the min and max of the non-NaN values, and false when there
// are none.
func Range(values ...[]float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, col := range values {
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}
