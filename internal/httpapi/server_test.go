package httpapi

import (
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockview/internal/dashboard"
	"stockview/internal/dataset"
	"stockview/internal/domain"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	var bars []domain.Bar
	day := time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		c := 100 + float64(i)
		bars = append(bars, domain.Bar{
			Symbol: "AAA", Timestamp: day.AddDate(0, 0, i),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 500,
		})
	}
	bars = append(bars,
		domain.Bar{Symbol: "MMM", Timestamp: time.Date(2013, 3, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1},
		domain.Bar{Symbol: "MMM", Timestamp: time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1},
	)
	return newTestServer(t, bars)
}

func newTestServer(t *testing.T, bars []domain.Bar) *httptest.Server {
	t.Helper()
	ds := dataset.New(bars)
	controls := dashboard.NewControls(ds, dashboard.DefaultSMABounds, dashboard.DefaultRSIBounds)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := httptest.NewServer(NewDashboardServer(ds, controls, dashboard.Options{}, log).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestControls(t *testing.T) {
	srv := testServer(t)
	var got ControlsResponse
	resp := getJSON(t, srv.URL+"/api/controls", &got)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, []string{"AAA", "MMM"}, got.Symbols)
	assert.Equal(t, 2013, got.MinYear)
	assert.Equal(t, 2017, got.MaxYear)
	assert.Equal(t, dashboard.DefaultSMABounds, got.SMA)
	assert.Equal(t, "MMM", got.Default.Symbol)
	assert.Equal(t, 2017, got.Default.Year)
	assert.Equal(t, 20, got.Default.SMAWindow)
	assert.Equal(t, 14, got.Default.RSIWindow)
	assert.Len(t, got.Default.Fields, 4)
}

func TestSymbolsAndYears(t *testing.T) {
	srv := testServer(t)

	var syms SymbolsResponse
	getJSON(t, srv.URL+"/api/symbols", &syms)
	assert.Equal(t, []string{"AAA", "MMM"}, syms.Symbols)

	var years YearsResponse
	getJSON(t, srv.URL+"/api/years?symbol=mmm", &years)
	assert.Equal(t, "MMM", years.Symbol)
	assert.Equal(t, []int{2013, 2017}, years.Years)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/years?symbol=ZZZ", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/years", nil).StatusCode)
}

func TestSeries(t *testing.T) {
	srv := testServer(t)
	var got SeriesResponse
	resp := getJSON(t, srv.URL+"/api/series?symbol=AAA&year=2015&sma=10&rsi=14&fields=close", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, got.Dates, 30)
	assert.Equal(t, "2015-01-02", got.Dates[0])
	assert.Len(t, got.SMA, 30)
	assert.Len(t, got.Volume, 30)

	assert.InDelta(t, 104.5, got.SMA[9].Float64, 1e-9)
	assert.False(t, got.RSI[13].Valid, "rsi[13] should be null")
	require.True(t, got.RSI[14].Valid)
	assert.InDelta(t, 100, got.RSI[14].Float64, 1e-9)

	require.Contains(t, got.Prices, domain.FieldClose)
	assert.NotContains(t, got.Prices, domain.FieldOpen)
	assert.Equal(t, 129.0, got.Prices[domain.FieldClose][29].Float64)
	assert.Equal(t, []domain.Field{domain.FieldClose}, got.State.Fields)
}

func TestSeriesDefaults(t *testing.T) {
	srv := testServer(t)

	// A bare symbol selects its latest year and the default windows.
	var got SeriesResponse
	getJSON(t, srv.URL+"/api/series?symbol=aaa", &got)
	assert.Equal(t, "AAA", got.State.Symbol)
	assert.Equal(t, 2015, got.State.Year)
	assert.Equal(t, 20, got.State.SMAWindow)
	assert.Len(t, got.Dates, 30)

	// An existing year with no rows for the symbol is empty, not an error.
	got = SeriesResponse{}
	resp := getJSON(t, srv.URL+"/api/series?symbol=MMM&year=2015", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, got.Dates)
	assert.NotNil(t, got.SMA)
}

func TestSeriesDefaultYearFollowsSymbol(t *testing.T) {
	// MMM stops in 2014 while the dataset runs to 2016.
	srv := newTestServer(t, []domain.Bar{
		{Symbol: "MMM", Timestamp: time.Date(2014, 6, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1},
		{Symbol: "MMM", Timestamp: time.Date(2014, 6, 3, 0, 0, 0, 0, time.UTC), Open: 2, High: 2, Low: 2, Close: 2},
		{Symbol: "ZZZ", Timestamp: time.Date(2016, 6, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1},
	})

	var ctrl ControlsResponse
	getJSON(t, srv.URL+"/api/controls", &ctrl)
	assert.Equal(t, 2016, ctrl.MaxYear)
	assert.Equal(t, "MMM", ctrl.Default.Symbol)
	assert.Equal(t, 2014, ctrl.Default.Year)

	var got SeriesResponse
	resp := getJSON(t, srv.URL+"/api/series", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MMM", got.State.Symbol)
	assert.Equal(t, 2014, got.State.Year)
	assert.Len(t, got.Dates, 2)
}

func TestSeriesInvalid(t *testing.T) {
	srv := testServer(t)
	for _, q := range []string{
		"symbol=ZZZ",
		"symbol=AAA&year=2020",
		"symbol=AAA&sma=0",
		"symbol=AAA&sma=abc",
		"symbol=AAA&rsi=51",
		"symbol=AAA&fields=volume",
	} {
		var body map[string]string
		resp := getJSON(t, srv.URL+"/api/series?"+q, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.NotEmpty(t, body["error"], q)
	}
}

func TestChart(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/chart/price.png?symbol=AAA&year=2015&width=400&height=200")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())

	// Only one bar for MMM in 2017: nothing to draw.
	resp2, err := http.Get(srv.URL + "/api/chart/rsi.png?symbol=MMM&year=2017")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp2.StatusCode)

	for url, status := range map[string]int{
		"/api/chart/candles.png":        http.StatusNotFound,
		"/api/chart/price":              http.StatusNotFound,
		"/api/chart/price.png?width=-1": http.StatusBadRequest,
		"/api/chart/volume.png?sma=7":   http.StatusBadRequest,
	} {
		r, err := http.Get(srv.URL + url)
		require.NoError(t, err)
		r.Body.Close()
		assert.Equal(t, status, r.StatusCode, url)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/series", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
