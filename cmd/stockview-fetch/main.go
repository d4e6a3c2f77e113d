package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockview/internal/config"
	"stockview/internal/dataset"
	"stockview/internal/gather"
	"stockview/internal/gather/us"
	"stockview/internal/store"
	"stockview/internal/util"
)

func main() { os.Exit(run(os.Args[1:])) }

// run returns the process exit code: 0 on success, 1 on error, 2 when the
// fetch finished with failed requests. Deferred cleanup runs before exit.
func run(args []string) int {
	fs := flag.NewFlagSet("stockview-fetch", flag.ContinueOnError)
	symbolsFlag := fs.String("symbols", "", "comma-separated symbols (default: fetch.symbols, then the CSV dataset's symbols)")
	useSQLite := fs.Bool("sqlite", false, "write to the SQLite store instead of parquet")
	workers := fs.Int("workers", 4, "concurrent requests")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		return fail("failed to load config: %v", err)
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return fail("alpaca credentials missing: set alpaca.api_key/api_secret or APCA_API_KEY_ID/APCA_API_SECRET_KEY")
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/stockview-fetch-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		return fail("failed to create log file: %v", err)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, "text")
	util.SetDefault(logger)

	symbols, err := resolveSymbols(*symbolsFlag, cfg)
	if err != nil {
		slog.Error("resolving symbols", "error", err)
		return 1
	}
	r, err := gather.ParseDateRange(cfg.Fetch.StartDate, cfg.Fetch.EndDate)
	if err != nil {
		slog.Error("invalid fetch dates", "error", err)
		return 1
	}

	var bs store.BarStore = store.NewParquetStore(cfg.Storage.DataDir)
	if *useSQLite {
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			slog.Error("opening sqlite", "path", cfg.Storage.SQLitePath, "error", err)
			return 1
		}
		defer sq.Close()
		bs = sq
	}

	fetcher := us.NewDailyBarFetcher(
		us.NewMarketDataClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL),
		us.NewCalendarClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL),
		bs,
		us.DailyFetchConfig{
			Symbols:         symbols,
			Range:           r,
			BatchSize:       cfg.Fetch.BatchSize,
			MaxWorkers:      *workers,
			RateLimitPerMin: cfg.Fetch.RateLimitPerMin,
			MaxRetries:      cfg.Fetch.MaxRetries,
			Feed:            marketdata.Feed(cfg.Alpaca.Feed),
			ProgressDir:     filepath.Join(cfg.Storage.DataDir, cfg.Dataset.Market),
		},
		logger,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting stockview-fetch", "logFile", logFileName, "symbols", len(symbols), "start", cfg.Fetch.StartDate)
	sum, err := fetcher.Fetch(ctx)
	if err != nil {
		slog.Error("fetch error", "error", err)
		return 1
	}
	slog.Info("fetch finished", "bars", sum.Bars, "symbols", sum.Symbols, "empty", sum.Empty, "failures", sum.Failures)
	if sum.Failures > 0 {
		return 2
	}
	return 0
}

func fail(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return 1
}

func resolveSymbols(flagVal string, cfg *config.Config) ([]string, error) {
	if flagVal != "" {
		return strings.Split(flagVal, ","), nil
	}
	if len(cfg.Fetch.Symbols) > 0 {
		return cfg.Fetch.Symbols, nil
	}
	ds, err := dataset.LoadCSV(cfg.Dataset.CSVPath)
	if err != nil {
		return nil, err
	}
	return ds.Symbols(), nil
}
