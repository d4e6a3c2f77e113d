package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stockview/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ BarStore = (*SQLiteStore)(nil)

const barsSchema = `
CREATE TABLE IF NOT EXISTS bars (
	market TEXT    NOT NULL,
	symbol TEXT    NOT NULL,
	ts     INTEGER NOT NULL,
	year   INTEGER NOT NULL,
	open   REAL,
	high   REAL,
	low    REAL,
	close  REAL,
	volume INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (market, symbol, ts)
);
CREATE INDEX IF NOT EXISTS idx_bars_symbol_year ON bars (market, symbol, year);
`

// SQLiteStore implements BarStore backed by a SQLite database. Missing
// prices (NaN) are stored as NULL.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// bars table if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers from concurrent fetch workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(barsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bars schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Name returns "sqlite-" followed by the database file name without its
// extension.
func (s *SQLiteStore) Name() string {
	base := filepath.Base(s.path)
	return "sqlite-" + strings.TrimSuffix(base, filepath.Ext(base))
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteBars upserts bars in a single transaction.
func (s *SQLiteStore) WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO bars (market, symbol, ts, year, open, high, low, close, volume)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (market, symbol, ts) DO UPDATE SET
	open = excluded.open,
	high = excluded.high,
	low = excluded.low,
	close = excluded.close,
	volume = excluded.volume`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		ts := b.Timestamp.UTC()
		_, err := stmt.ExecContext(ctx,
			string(market), strings.ToUpper(b.Symbol), ts.UnixMilli(), ts.Year(),
			nullable(b.Open), nullable(b.High), nullable(b.Low), nullable(b.Close),
			b.Volume,
		)
		if err != nil {
			return fmt.Errorf("inserting %s %s: %w", b.Symbol, ts.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

// ReadBars returns bars for symbol within [start, end], ascending by date.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT symbol, ts, open, high, low, close, volume
FROM bars
WHERE market = ? AND symbol = ? AND ts >= ? AND ts <= ?
ORDER BY ts`,
		string(market), strings.ToUpper(symbol), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			b                      domain.Bar
			ts                     int64
			open, high, low, close sql.NullFloat64
		)
		if err := rows.Scan(&b.Symbol, &ts, &open, &high, &low, &close, &b.Volume); err != nil {
			return nil, err
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		b.Open = floatOrNaN(open)
		b.High = floatOrNaN(high)
		b.Low = floatOrNaN(low)
		b.Close = floatOrNaN(close)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns all distinct symbols in the given market.
func (s *SQLiteStore) ListSymbols(ctx context.Context, market domain.Market) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM bars WHERE market = ? ORDER BY symbol`, string(market))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// ListYears returns the distinct years stored for symbol.
func (s *SQLiteStore) ListYears(ctx context.Context, symbol string, market domain.Market) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT year FROM bars WHERE market = ? AND symbol = ? ORDER BY year`,
		string(market), strings.ToUpper(symbol))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
