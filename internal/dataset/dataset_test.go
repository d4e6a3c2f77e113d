package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockview/internal/domain"
	"stockview/internal/store"
)

func bar(sym string, y int, m time.Month, d int, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    sym,
		Timestamp: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Open:      close, High: close, Low: close, Close: close,
		Volume: 100,
	}
}

func TestFilter(t *testing.T) {
	ds := New([]domain.Bar{
		bar("BBB", 2015, 3, 2, 20),
		bar("AAA", 2015, 1, 5, 3),
		bar("AAA", 2014, 12, 31, 1),
		bar("AAA", 2015, 1, 2, 2),
		bar("AAA", 2016, 1, 4, 4),
	})

	got := ds.Filter("AAA", 2015)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Close)
	assert.Equal(t, 3.0, got[1].Close)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))

	// Case-insensitive symbol lookup.
	assert.Len(t, ds.Filter("aaa", 2016), 1)

	// Absent combinations are empty, not errors.
	assert.Empty(t, ds.Filter("AAA", 2013))
	assert.Empty(t, ds.Filter("ZZZ", 2015))
	assert.Empty(t, New(nil).Filter("AAA", 2015))
}

func TestFilterReturnsCopy(t *testing.T) {
	ds := New([]domain.Bar{bar("AAA", 2015, 1, 2, 2)})
	got := ds.Filter("AAA", 2015)
	got[0].Close = 999

	again := ds.Filter("AAA", 2015)
	assert.Equal(t, 2.0, again[0].Close)
}

func TestSymbolsAndYears(t *testing.T) {
	ds := New([]domain.Bar{
		bar("mmm", 2013, 2, 8, 1),
		bar("MMM", 2017, 2, 7, 1),
		bar("AAL", 2014, 2, 8, 1),
	})

	assert.Equal(t, []string{"AAL", "MMM"}, ds.Symbols())
	assert.Equal(t, []int{2013, 2014, 2017}, ds.Years())
	assert.Equal(t, []int{2013, 2017}, ds.YearsFor("MMM"))
	assert.Nil(t, ds.YearsFor("XYZ"))
	assert.True(t, ds.HasSymbol("aal"))
	assert.False(t, ds.HasSymbol("XYZ"))
	assert.Equal(t, 3, ds.Len())
}

const sampleCSV = `date,open,high,low,close,volume,Name
2013-02-08,15.07,15.12,14.63,14.75,8407500,AAL
2013-02-11,14.89,15.01,14.26,14.46,8882000,AAL
2015-06-01,,,,165.2,1200,MMM
2015-06-02,164.9,166.0,164.1,165.7,,MMM
`

func TestReadCSV(t *testing.T) {
	bars, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, bars, 4)

	assert.Equal(t, "AAL", bars[0].Symbol)
	assert.Equal(t, 14.75, bars[0].Close)
	assert.Equal(t, int64(8407500), bars[0].Volume)
	assert.Equal(t, 2013, bars[0].Year())

	assert.True(t, math.IsNaN(bars[2].Open), "empty open should be NaN")
	assert.Equal(t, 165.2, bars[2].Close)
	assert.Equal(t, int64(0), bars[3].Volume)
}

func TestReadCSVHeaderOrderAndAlias(t *testing.T) {
	in := "Symbol,Volume,Close,Low,High,Open,Date\nxyz,10,2,1,3,1.5,2016-01-04\n"
	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "XYZ", bars[0].Symbol)
	assert.Equal(t, 1.5, bars[0].Open)
	assert.Equal(t, 3.0, bars[0].High)
}

func TestReadCSVErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "date,open,high,low,close,Name\n",
		"bad date":       "date,open,high,low,close,volume,Name\n02/08/2013,1,1,1,1,1,AAL\n",
		"bad price":      "date,open,high,low,close,volume,Name\n2013-02-08,x,1,1,1,1,AAL\n",
		"negative price": "date,open,high,low,close,volume,Name\n2013-02-08,-1,1,1,1,1,AAL\n",
		"empty symbol":   "date,open,high,low,close,volume,Name\n2013-02-08,1,1,1,1,1,\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all_stocks.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAL", "MMM"}, ds.Symbols())
	assert.Len(t, ds.Filter("MMM", 2015), 2)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestFromStore(t *testing.T) {
	ctx := context.Background()
	ps := store.NewParquetStore(t.TempDir())

	bars, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, ps.WriteBars(ctx, domain.MarketUS, bars))

	ds, err := FromStore(ctx, ps, domain.MarketUS)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, []int{2013, 2015}, ds.Years())
	assert.Len(t, ds.Filter("AAL", 2013), 2)

	empty, err := FromStore(ctx, store.NewParquetStore(t.TempDir()), domain.MarketUS)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "all_stocks.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))

	bars, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, store.NewParquetStore(dir).WriteBars(ctx, domain.MarketUS, bars))

	sqlitePath := filepath.Join(dir, "bars.db")
	sq, err := store.NewSQLiteStore(sqlitePath)
	require.NoError(t, err)
	require.NoError(t, sq.WriteBars(ctx, domain.MarketUS, bars))
	require.NoError(t, sq.Close())

	for _, kind := range []string{"", "csv", "parquet", "sqlite"} {
		ds, err := Open(ctx, Source{Kind: kind, CSVPath: csvPath, DataDir: dir, SQLitePath: sqlitePath})
		require.NoError(t, err, kind)
		assert.Equal(t, 4, ds.Len(), kind)
		assert.Equal(t, []string{"AAL", "MMM"}, ds.Symbols(), kind)
	}

	_, err = Open(ctx, Source{Kind: "feather"})
	assert.Error(t, err)
}
