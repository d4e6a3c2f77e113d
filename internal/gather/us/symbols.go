package us

import (
	"sort"
	"strings"
)

// NormalizeSymbols upper-cases, trims and deduplicates symbols and returns
// them sorted. Blank entries are dropped.
func NormalizeSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Batches splits symbols into consecutive groups of at most size.
func Batches(symbols []string, size int) [][]string {
	size = max(size, 1)
	var out [][]string
	for i := 0; i < len(symbols); i += size {
		out = append(out, symbols[i:min(i+size, len(symbols))])
	}
	return out
}
