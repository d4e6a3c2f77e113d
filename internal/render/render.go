// Package render draws the three dashboard panels (price, volume and RSI)
// of a DerivedSeries as PNG images.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"stockview/internal/dashboard"
	"stockview/internal/domain"
)

// ErrNoData is returned when a panel has nothing drawable.
var ErrNoData = errors.New("no data to draw")

// Panel names one of the dashboard charts.
type Panel string

const (
	PanelPrice  Panel = "price"
	PanelVolume Panel = "volume"
	PanelRSI    Panel = "rsi"
)

// ParsePanel parses a case-insensitive panel name.
func ParsePanel(s string) (Panel, error) {
	switch p := Panel(strings.ToLower(s)); p {
	case PanelPrice, PanelVolume, PanelRSI:
		return p, nil
	}
	return "", fmt.Errorf("unknown panel %q", s)
}

// Options sizes the rendered image. Zero values fall back to the panel's
// default size.
type Options struct {
	Width  int
	Height int
}

var (
	fieldColors = map[domain.Field]drawing.Color{
		domain.FieldOpen:  drawing.ColorFromHex("FFD700"),
		domain.FieldClose: drawing.ColorFromHex("FFA500"),
		domain.FieldHigh:  drawing.ColorFromHex("008000"),
		domain.FieldLow:   drawing.ColorFromHex("FF0000"),
	}
	smaColor    = drawing.ColorBlack
	volumeColor = drawing.ColorFromHex("0000FF")
	rsiColor    = drawing.ColorFromHex("800080")
	lowerColor  = drawing.ColorFromHex("FF0000")
	upperColor  = drawing.ColorFromHex("008000")
	dashed      = []float64{5, 5}
)

// Oscillator guide levels.
const (
	RSILower = 30.0
	RSIUpper = 70.0
)

// Render writes panel p of d to w as PNG. It returns ErrNoData when the
// panel would be empty.
func Render(w io.Writer, d dashboard.DerivedSeries, p Panel, opts Options) error {
	var (
		c   *chart.Chart
		err error
	)
	switch p {
	case PanelPrice:
		c, err = PriceChart(d)
	case PanelVolume:
		c, err = VolumeChart(d)
	case PanelRSI:
		c, err = RSIChart(d)
	default:
		return fmt.Errorf("unknown panel %q", p)
	}
	if err != nil {
		return err
	}
	if opts.Width > 0 {
		c.Width = opts.Width
	}
	if opts.Height > 0 {
		c.Height = opts.Height
	}
	if err := c.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering %s panel: %w", p, err)
	}
	return nil
}

// PriceChart builds the price overlay: one line per visible field plus the
// dashed SMA.
func PriceChart(d dashboard.DerivedSeries) (*chart.Chart, error) {
	var series []chart.Series
	var cols [][]float64
	for _, f := range d.Fields {
		vals := d.Prices[f]
		series = append(series, lineSegments(f.Label(), d.Dates, vals, chart.Style{
			StrokeColor: fieldColors[f],
			StrokeWidth: 2,
		})...)
		cols = append(cols, vals)
	}
	series = append(series, lineSegments("SMA", d.Dates, d.SMA, chart.Style{
		StrokeColor:     smaColor,
		StrokeWidth:     2,
		StrokeDashArray: dashed,
	})...)
	cols = append(cols, d.SMA)

	lo, hi, ok := dashboard.Range(cols...)
	if !ok || len(series) == 0 {
		return nil, ErrNoData
	}
	c := newCanvas(fmt.Sprintf("%s %d", d.Symbol, d.Year), "Price", d.Dates, 1024, 480)
	c.YAxis.Range = paddedRange(lo, hi)
	c.Series = series
	return c, nil
}

// VolumeChart builds the filled volume panel.
func VolumeChart(d dashboard.DerivedSeries) (*chart.Chart, error) {
	if len(d.Dates) < 2 {
		return nil, ErrNoData
	}
	vals := make([]float64, len(d.Volume))
	hi := 0.0
	for i, v := range d.Volume {
		vals[i] = float64(v)
		hi = math.Max(hi, vals[i])
	}
	if hi == 0 {
		hi = 1
	}
	c := newCanvas("Volume", "Volume", d.Dates, 1024, 200)
	c.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: hi * 1.05}
	c.YAxis.ValueFormatter = func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return dashboard.FormatVolume(int64(f))
		}
		return ""
	}
	c.Series = []chart.Series{chart.TimeSeries{
		Name:    "Volume",
		XValues: d.Dates,
		YValues: vals,
		Style: chart.Style{
			StrokeColor: volumeColor,
			FillColor:   volumeColor.WithAlpha(160),
			StrokeWidth: 1,
		},
	}}
	return c, nil
}

// RSIChart builds the oscillator panel with its 30 and 70 guide lines on a
// fixed 0..100 axis.
func RSIChart(d dashboard.DerivedSeries) (*chart.Chart, error) {
	series := lineSegments("RSI", d.Dates, d.RSI, chart.Style{
		StrokeColor: rsiColor,
		StrokeWidth: 2,
	})
	if len(series) == 0 {
		return nil, ErrNoData
	}
	first, last := d.Dates[0], d.Dates[len(d.Dates)-1]
	series = append(series,
		guide("RSI 30", first, last, RSILower, lowerColor),
		guide("RSI 70", first, last, RSIUpper, upperColor),
	)
	c := newCanvas("RSI", "RSI", d.Dates, 1024, 200)
	c.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: 100}
	c.Series = series
	return c, nil
}

func newCanvas(title, yName string, dates []time.Time, width, height int) *chart.Chart {
	c := &chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: yName,
		},
	}
	if len(dates) > 0 {
		c.XAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(dates[0]),
			Max: chart.TimeToFloat64(dates[len(dates)-1]),
		}
		if len(dates) == 1 {
			c.XAxis.Range = &chart.ContinuousRange{
				Min: chart.TimeToFloat64(dates[0].AddDate(0, 0, -1)),
				Max: chart.TimeToFloat64(dates[0].AddDate(0, 0, 1)),
			}
		}
	}
	c.Elements = []chart.Renderable{chart.LegendLeft(c)}
	return c
}

// lineSegments splits a column into runs of present values so gaps stay
// gaps. Runs shorter than two points draw nothing and are dropped. Only the
// first run carries the legend name.
func lineSegments(name string, dates []time.Time, vals []float64, style chart.Style) []chart.Series {
	var out []chart.Series
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= 2 {
			s := chart.TimeSeries{
				XValues: dates[start:end],
				YValues: vals[start:end],
				Style:   style,
			}
			if len(out) == 0 {
				s.Name = name
			}
			out = append(out, s)
		}
		start = -1
	}
	for i := 0; i < len(vals) && i < len(dates); i++ {
		if math.IsNaN(vals[i]) || math.IsInf(vals[i], 0) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(min(len(vals), len(dates)))
	return out
}

func guide(name string, first, last time.Time, level float64, color drawing.Color) chart.Series {
	return chart.TimeSeries{
		Name:    name,
		XValues: []time.Time{first, last},
		YValues: []float64{level, level},
		Style: chart.Style{
			StrokeColor:     color,
			StrokeWidth:     1,
			StrokeDashArray: dashed,
		},
	}
}

func paddedRange(lo, hi float64) *chart.ContinuousRange {
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
