package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockview/internal/config"
	"stockview/internal/dataset"
	"stockview/internal/domain"
	"stockview/internal/store"
	"stockview/internal/util"
)

func main() { os.Exit(run(os.Args[1:])) }

// run returns the process exit code. Deferred cleanup runs before exit.
func run(args []string) int {
	fs := flag.NewFlagSet("stockview-import", flag.ContinueOnError)
	csvPath := fs.String("csv", "", "CSV file to import (default: dataset.csv_path)")
	toParquet := fs.Bool("parquet", true, "write bars to the parquet store under storage.data_dir")
	toSQLite := fs.Bool("sqlite", false, "write bars to the SQLite store at storage.sqlite_path")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, "text"))

	if *csvPath == "" {
		*csvPath = cfg.Dataset.CSVPath
	}
	market := domain.Market(cfg.Dataset.Market)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	f, err := os.Open(*csvPath)
	if err != nil {
		slog.Error("opening csv", "path", *csvPath, "error", err)
		return 1
	}
	bars, err := dataset.ReadCSV(f)
	f.Close()
	if err != nil {
		slog.Error("reading csv", "path", *csvPath, "error", err)
		return 1
	}
	slog.Info("read csv", "path", *csvPath, "bars", len(bars), "elapsed", time.Since(start).Round(time.Millisecond))

	var targets []store.BarStore
	if *toParquet {
		targets = append(targets, store.NewParquetStore(cfg.Storage.DataDir))
	}
	if *toSQLite {
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			slog.Error("opening sqlite", "path", cfg.Storage.SQLitePath, "error", err)
			return 1
		}
		defer sq.Close()
		targets = append(targets, sq)
	}
	if len(targets) == 0 {
		slog.Warn("nothing to do: both -parquet and -sqlite are off")
		return 0
	}

	for _, t := range targets {
		start := time.Now()
		if err := t.WriteBars(ctx, market, bars); err != nil {
			slog.Error("import failed", "store", t.Name(), "error", err)
			return 1
		}
		slog.Info("imported", "store", t.Name(), "bars", len(bars), "elapsed", time.Since(start).Round(time.Millisecond))
	}
	return 0
}
