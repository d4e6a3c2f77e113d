// Package dashboard holds the view model of the charting dashboard: the
// user's selection, the control surface that validates it, and the
// recompute step that turns a selection into chart-ready series.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"stockview/internal/dataset"
	"stockview/internal/domain"
	"stockview/internal/indicator"
)

// ViewState is the user's current selection.
type ViewState struct {
	Symbol    string
	Year      int
	SMAWindow int
	RSIWindow int
	Fields    []domain.Field // visible price lines
}

// Visible reports whether price field f is selected for drawing.
func (v ViewState) Visible(f domain.Field) bool {
	for _, x := range v.Fields {
		if x == f {
			return true
		}
	}
	return false
}

// Toggle returns a copy of v with f shown if hidden and hidden if shown.
// Fields stay in display order.
func (v ViewState) Toggle(f domain.Field) ViewState {
	show := !v.Visible(f)
	var fields []domain.Field
	for _, x := range domain.AllFields {
		if (x == f && show) || (x != f && v.Visible(x)) {
			fields = append(fields, x)
		}
	}
	v.Fields = fields
	return v
}

// String formats the selection for logs.
func (v ViewState) String() string {
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s/%d sma=%d rsi=%d fields=%s", v.Symbol, v.Year, v.SMAWindow, v.RSIWindow, strings.Join(names, ","))
}

// DerivedSeries is the filtered and transformed data for one ViewState. All
// columns have the same length. SMA and RSI hold NaN where a value is
// absent.
type DerivedSeries struct {
	Symbol string
	Year   int
	Dates  []time.Time
	Fields []domain.Field
	Prices map[domain.Field][]float64
	SMA    []float64
	RSI    []float64
	Volume []int64
}

// Len returns the number of rows.
func (d DerivedSeries) Len() int { return len(d.Dates) }

// Options tune Recompute.
type Options struct {
	FlatPolicy indicator.FlatPolicy
}

// Recompute filters ds to the selected ticker-year and computes the SMA and
// RSI over its close prices. It recomputes everything from scratch. Only
// the price columns named in state.Fields are included; SMA, RSI and volume
// do not depend on the field selection.
func Recompute(ds *dataset.Dataset, state ViewState, opts Options) (DerivedSeries, error) {
	bars := ds.Filter(state.Symbol, state.Year)

	closes := indicator.Closes(bars)
	sma, err := indicator.SimpleMovingAverage(closes, state.SMAWindow)
	if err != nil {
		return DerivedSeries{}, err
	}
	policy := opts.FlatPolicy
	if policy == "" {
		policy = indicator.FlatUndefined
	}
	rsi, err := indicator.RSIWithPolicy(closes, state.RSIWindow, policy)
	if err != nil {
		return DerivedSeries{}, err
	}

	out := DerivedSeries{
		Symbol: strings.ToUpper(state.Symbol),
		Year:   state.Year,
		Dates:  make([]time.Time, len(bars)),
		Prices: make(map[domain.Field][]float64),
		SMA:    sma,
		RSI:    rsi,
		Volume: make([]int64, len(bars)),
	}
	for i, b := range bars {
		out.Dates[i] = b.Timestamp
		out.Volume[i] = b.Volume
	}
	for _, f := range domain.AllFields {
		if !state.Visible(f) {
			continue
		}
		col := make([]float64, len(bars))
		for i, b := range bars {
			col[i] = b.Price(f)
		}
		out.Fields = append(out.Fields, f)
		out.Prices[f] = col
	}
	return out, nil
}
