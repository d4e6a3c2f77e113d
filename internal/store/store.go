// Package store defines storage interfaces for persisting and retrieving
// daily OHLCV bars, with Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"stockview/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// Name identifies the store in logs and keys per-store state such as
	// fetch progress.
	Name() string

	// WriteBars persists a batch of bars under the given market, merging with
	// what is already stored. A bar with the same (symbol, date) replaces the
	// stored one.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within
	// [start, end], ascending by date.
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market,
	// sorted.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)

	// ListYears returns the sorted calendar years that have bars for symbol.
	ListYears(ctx context.Context, symbol string, market domain.Market) ([]int, error)
}

// YearRange returns the inclusive [start, end] instants covering a calendar
// year in UTC.
func YearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	return start, end
}
