// Package dataset holds the read-only snapshot of daily bars the dashboard
// works on, and the query used to select one ticker-year from it.
package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"stockview/internal/domain"
	"stockview/internal/store"
)

// Dataset is an immutable collection of bars grouped by symbol and sorted by
// date within each symbol. It is safe for concurrent readers.
type Dataset struct {
	bars  []domain.Bar
	spans map[string]span
	years []int
}

type span struct{ start, end int }

// New builds a Dataset from bars. The input slice is copied; symbols are
// upper-cased.
func New(bars []domain.Bar) *Dataset {
	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	for i := range sorted {
		sorted[i].Symbol = strings.ToUpper(sorted[i].Symbol)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	ds := &Dataset{bars: sorted, spans: make(map[string]span)}
	yearSet := make(map[int]struct{})
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].Symbol == sorted[i].Symbol {
			yearSet[sorted[j].Year()] = struct{}{}
			j++
		}
		ds.spans[sorted[i].Symbol] = span{start: i, end: j}
		i = j
	}
	for y := range yearSet {
		ds.years = append(ds.years, y)
	}
	sort.Ints(ds.years)
	return ds
}

// Len returns the total number of bars.
func (d *Dataset) Len() int { return len(d.bars) }

// Symbols returns the sorted distinct symbols.
func (d *Dataset) Symbols() []string {
	symbols := make([]string, 0, len(d.spans))
	for s := range d.spans {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// HasSymbol reports whether any bar exists for symbol.
func (d *Dataset) HasSymbol(symbol string) bool {
	_, ok := d.spans[strings.ToUpper(symbol)]
	return ok
}

// Years returns the sorted calendar years covered by any symbol.
func (d *Dataset) Years() []int {
	out := make([]int, len(d.years))
	copy(out, d.years)
	return out
}

// YearsFor returns the sorted calendar years covered by symbol.
func (d *Dataset) YearsFor(symbol string) []int {
	sp, ok := d.spans[strings.ToUpper(symbol)]
	if !ok {
		return nil
	}
	var years []int
	for _, b := range d.bars[sp.start:sp.end] {
		if y := b.Year(); len(years) == 0 || years[len(years)-1] != y {
			years = append(years, y)
		}
	}
	return years
}

// Filter returns the bars for symbol whose date falls in year, ascending by
// date. No match yields an empty (nil) slice. The returned slice is a copy.
func (d *Dataset) Filter(symbol string, year int) []domain.Bar {
	sp, ok := d.spans[strings.ToUpper(symbol)]
	if !ok {
		return nil
	}
	rows := d.bars[sp.start:sp.end]
	lo := sort.Search(len(rows), func(i int) bool { return rows[i].Year() >= year })
	hi := sort.Search(len(rows), func(i int) bool { return rows[i].Year() > year })
	if lo >= hi {
		return nil
	}
	out := make([]domain.Bar, hi-lo)
	copy(out, rows[lo:hi])
	return out
}

// FromStore loads every bar of every symbol in market from s.
func FromStore(ctx context.Context, s store.BarStore, market domain.Market) (*Dataset, error) {
	symbols, err := s.ListSymbols(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}

	var bars []domain.Bar
	for _, sym := range symbols {
		years, err := s.ListYears(ctx, sym, market)
		if err != nil {
			return nil, fmt.Errorf("listing years for %s: %w", sym, err)
		}
		if len(years) == 0 {
			continue
		}
		start, _ := store.YearRange(years[0])
		_, end := store.YearRange(years[len(years)-1])
		b, err := s.ReadBars(ctx, sym, market, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s: %w", sym, err)
		}
		bars = append(bars, b...)
	}
	return New(bars), nil
}
