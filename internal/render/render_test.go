package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2"

	"stockview/internal/dashboard"
	"stockview/internal/dataset"
	"stockview/internal/domain"
)

func derived(t *testing.T, n int, fields []domain.Field) dashboard.DerivedSeries {
	t.Helper()
	bars := make([]domain.Bar, n)
	day := time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 50 + 5*math.Sin(float64(i)/3)
		bars[i] = domain.Bar{
			Symbol: "MMM", Timestamp: day.AddDate(0, 0, i),
			Open: c, High: c + 1, Low: c - 1, Close: c,
			Volume: int64(1_000_000 + 1000*i),
		}
	}
	d, err := dashboard.Recompute(dataset.New(bars),
		dashboard.ViewState{Symbol: "MMM", Year: 2016, SMAWindow: 10, RSIWindow: 5, Fields: fields},
		dashboard.Options{})
	require.NoError(t, err)
	return d
}

func TestRenderPanels(t *testing.T) {
	d := derived(t, 40, domain.AllFields)
	for _, p := range []Panel{PanelPrice, PanelVolume, PanelRSI} {
		t.Run(string(p), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, d, p, Options{Width: 640, Height: 240}))

			img, err := png.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, 640, img.Bounds().Dx())
			assert.Equal(t, 240, img.Bounds().Dy())
		})
	}
}

func TestRenderNoData(t *testing.T) {
	empty := derived(t, 0, domain.AllFields)
	for _, p := range []Panel{PanelPrice, PanelVolume, PanelRSI} {
		var buf bytes.Buffer
		assert.ErrorIs(t, Render(&buf, empty, p, Options{}), ErrNoData, "panel %s", p)
		assert.Zero(t, buf.Len())
	}

	// Too short for any RSI value.
	short := derived(t, 4, domain.AllFields)
	assert.ErrorIs(t, Render(&bytes.Buffer{}, short, PanelRSI, Options{}), ErrNoData)
}

func TestPriceChartSeries(t *testing.T) {
	d := derived(t, 30, []domain.Field{domain.FieldClose})
	c, err := PriceChart(d)
	require.NoError(t, err)
	require.Len(t, c.Series, 2)
	assert.Equal(t, "Close", c.Series[0].GetName())
	assert.Equal(t, "SMA", c.Series[1].GetName())
	assert.Equal(t, dashed, c.Series[1].GetStyle().StrokeDashArray)

	// Hidden fields still leave the SMA to draw.
	d = derived(t, 30, nil)
	c, err = PriceChart(d)
	require.NoError(t, err)
	require.Len(t, c.Series, 1)
	assert.Equal(t, "SMA", c.Series[0].GetName())
}

func TestRSIChartGuides(t *testing.T) {
	c, err := RSIChart(derived(t, 30, nil))
	require.NoError(t, err)
	names := make([]string, len(c.Series))
	for i, s := range c.Series {
		names[i] = s.GetName()
	}
	assert.Equal(t, []string{"RSI", "RSI 30", "RSI 70"}, names)
	assert.Equal(t, 0.0, c.YAxis.Range.GetMin())
	assert.Equal(t, 100.0, c.YAxis.Range.GetMax())
}

func TestLineSegments(t *testing.T) {
	day := time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 8)
	for i := range dates {
		dates[i] = day.AddDate(0, 0, i)
	}
	nan := math.NaN()
	vals := []float64{nan, 1, 2, 3, nan, 4, nan, 5}

	segs := lineSegments("x", dates, vals, chart.Style{})
	require.Len(t, segs, 1, "single points are dropped")
	ts := segs[0].(chart.TimeSeries)
	assert.Equal(t, []float64{1, 2, 3}, ts.YValues)
	assert.Equal(t, "x", ts.Name)

	segs = lineSegments("x", dates, []float64{1, 2, nan, 3, 4, 5, nan, nan}, chart.Style{})
	require.Len(t, segs, 2)
	assert.Equal(t, "", segs[1].GetName(), "legend entry only on the first run")

	assert.Empty(t, lineSegments("x", dates, make([]float64, 0), chart.Style{}))
}

func TestParsePanel(t *testing.T) {
	p, err := ParsePanel("RSI")
	require.NoError(t, err)
	assert.Equal(t, PanelRSI, p)
	_, err = ParsePanel("candles")
	assert.Error(t, err)
}
