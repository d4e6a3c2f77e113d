// Package domain defines the core value types shared across stockview:
// daily OHLCV bars, markets, and the price fields a chart can draw.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Market identifies the exchange family a bar belongs to. It only affects
// on-disk layout in the bar stores.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is one trading day for one ticker. Prices that were missing in the
// source are NaN.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Year returns the calendar year of the bar's date.
func (b Bar) Year() int { return b.Timestamp.Year() }

// Price returns the value of the given price field.
func (b Bar) Price(f Field) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	case FieldClose:
		return b.Close
	}
	return math.NaN()
}

// Field is one of the four drawable price columns.
type Field string

const (
	FieldOpen  Field = "open"
	FieldClose Field = "close"
	FieldHigh  Field = "high"
	FieldLow   Field = "low"
)

// AllFields lists the price fields in display order.
var AllFields = []Field{FieldOpen, FieldClose, FieldHigh, FieldLow}

// Label returns the capitalised legend label ("Open", "Close", ...).
func (f Field) Label() string {
	s := string(f)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseField parses a case-insensitive field name.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FieldOpen, FieldClose, FieldHigh, FieldLow:
		return f, nil
	}
	return "", fmt.Errorf("unknown price field %q", s)
}

// ParseFields parses a comma-separated list of field names. An empty string
// yields an empty set.
func ParseFields(s string) ([]Field, error) {
	var out []Field
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseField(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
