// Package httpapi serves the dashboard over HTTP: the control surface, the
// derived series as JSON, and the chart panels as PNG.
package httpapi

import (
	"math"

	"github.com/guregu/null/v6"

	"stockview/internal/dashboard"
	"stockview/internal/domain"
)

// ViewStateJSON is the JSON form of a dashboard selection.
type ViewStateJSON struct {
	Symbol    string         `json:"symbol"`
	Year      int            `json:"year"`
	SMAWindow int            `json:"sma"`
	RSIWindow int            `json:"rsi"`
	Fields    []domain.Field `json:"fields"`
}

// ControlsResponse describes the choices the dashboard offers.
type ControlsResponse struct {
	Symbols []string         `json:"symbols"`
	MinYear int              `json:"minYear"`
	MaxYear int              `json:"maxYear"`
	SMA     dashboard.Bounds `json:"sma"`
	RSI     dashboard.Bounds `json:"rsi"`
	Fields  []domain.Field   `json:"fields"`
	Default ViewStateJSON    `json:"default"`
}

// SymbolsResponse lists the symbols in the dataset.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// YearsResponse lists the years with data for a symbol.
type YearsResponse struct {
	Symbol string `json:"symbol"`
	Years  []int  `json:"years"`
}

// SeriesResponse is the derived series for one selection. Absent SMA, RSI or
// price values encode as null.
type SeriesResponse struct {
	State  ViewStateJSON                 `json:"state"`
	Dates  []string                      `json:"dates"`
	Prices map[domain.Field][]null.Float `json:"prices"`
	SMA    []null.Float                  `json:"sma"`
	RSI    []null.Float                  `json:"rsi"`
	Volume []int64                       `json:"volume"`
}

func convertViewState(v dashboard.ViewState) ViewStateJSON {
	fields := v.Fields
	if fields == nil {
		fields = []domain.Field{}
	}
	return ViewStateJSON{
		Symbol:    v.Symbol,
		Year:      v.Year,
		SMAWindow: v.SMAWindow,
		RSIWindow: v.RSIWindow,
		Fields:    fields,
	}
}

func convertControls(c dashboard.Controls) ControlsResponse {
	symbols := c.Symbols
	if symbols == nil {
		symbols = []string{}
	}
	return ControlsResponse{
		Symbols: symbols,
		MinYear: c.MinYear,
		MaxYear: c.MaxYear,
		SMA:     c.SMA,
		RSI:     c.RSI,
		Fields:  c.Fields,
		Default: convertViewState(c.DefaultState()),
	}
}

// convertSeries converts a DerivedSeries into its JSON payload.
func convertSeries(d dashboard.DerivedSeries, state dashboard.ViewState) SeriesResponse {
	resp := SeriesResponse{
		State:  convertViewState(state),
		Dates:  make([]string, len(d.Dates)),
		Prices: make(map[domain.Field][]null.Float, len(d.Fields)),
		SMA:    nullFloats(d.SMA),
		RSI:    nullFloats(d.RSI),
		Volume: d.Volume,
	}
	resp.State.Symbol = d.Symbol
	for i, t := range d.Dates {
		resp.Dates[i] = t.Format("2006-01-02")
	}
	for _, f := range d.Fields {
		resp.Prices[f] = nullFloats(d.Prices[f])
	}
	if resp.Volume == nil {
		resp.Volume = []int64{}
	}
	return resp
}

func nullFloats(vals []float64) []null.Float {
	out := make([]null.Float, len(vals))
	for i, v := range vals {
		out[i] = null.NewFloat(v, !math.IsNaN(v) && !math.IsInf(v, 0))
	}
	return out
}
