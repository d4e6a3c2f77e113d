package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stockview/internal/config"
	"stockview/internal/dashboard"
	"stockview/internal/dataset"
	"stockview/internal/httpapi"
	"stockview/internal/util"
)

func main() { os.Exit(run()) }

func run() int {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	ds, err := dataset.Open(ctx, cfg.DatasetSource())
	if err != nil {
		slog.Error("loading dataset", "source", cfg.Dataset.Source, "error", err)
		return 1
	}
	slog.Info("dataset loaded",
		"source", cfg.Dataset.Source,
		"bars", ds.Len(),
		"symbols", len(ds.Symbols()),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if ds.Len() == 0 {
		slog.Warn("dataset is empty")
	}

	controls := dashboard.NewControls(ds, cfg.Controls.SMA, cfg.Controls.RSI)
	opts := dashboard.Options{FlatPolicy: cfg.FlatPolicy()}
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           httpapi.NewDashboardServer(ds, controls, opts, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting stockview-server", "addr", srv.Addr, "flatPolicy", opts.FlatPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		return 1
	}
	slog.Info("stockview-server stopped")
	return 0
}
