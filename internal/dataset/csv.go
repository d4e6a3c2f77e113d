package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"stockview/internal/domain"
)

// csvColumns maps accepted header names to canonical column keys.
var csvColumns = map[string]string{
	"date":   "date",
	"open":   "open",
	"high":   "high",
	"low":    "low",
	"close":  "close",
	"volume": "volume",
	"name":   "symbol",
	"symbol": "symbol",
	"ticker": "symbol",
}

var requiredColumns = []string{"date", "open", "high", "low", "close", "volume", "symbol"}

// LoadCSV reads a CSV file of daily bars. See ReadCSV for the format.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV %s: %w", path, err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading CSV %s: %w", path, err)
	}
	return New(bars), nil
}

// ReadCSV parses daily bars from r. The first row is a header naming at
// least date, open, high, low, close, volume and the ticker column (Name,
// symbol or ticker), in any order and case. Dates are YYYY-MM-DD. Empty
// price cells become NaN and an empty volume becomes 0; any other
// unparsable cell is an error.
func ReadCSV(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}
	idx := make(map[string]int, len(requiredColumns))
	for i, h := range header {
		if key, ok := csvColumns[strings.ToLower(strings.TrimSpace(h))]; ok {
			idx[key] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		b, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseRow(row []string, idx map[string]int) (domain.Bar, error) {
	var b domain.Bar
	cell := func(col string) string { return strings.TrimSpace(row[idx[col]]) }

	b.Symbol = strings.ToUpper(cell("symbol"))
	if b.Symbol == "" {
		return b, errors.New("empty symbol")
	}

	ts, err := time.Parse("2006-01-02", cell("date"))
	if err != nil {
		return b, fmt.Errorf("parsing date: %w", err)
	}
	b.Timestamp = ts

	prices := []struct {
		col string
		dst *float64
	}{
		{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
	}
	for _, p := range prices {
		v, err := parsePrice(cell(p.col))
		if err != nil {
			return b, fmt.Errorf("parsing %s: %w", p.col, err)
		}
		*p.dst = v
	}

	if s := cell("volume"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return b, fmt.Errorf("parsing volume: %w", err)
		}
		if v < 0 {
			return b, fmt.Errorf("negative volume %v", v)
		}
		b.Volume = int64(v)
	}
	return b, nil
}

func parsePrice(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 || math.IsInf(v, 0) {
		return 0, fmt.Errorf("price %v must be positive", v)
	}
	return v, nil
}
