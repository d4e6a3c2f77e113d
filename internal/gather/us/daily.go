// Package us gathers daily bars for US equities from the Alpaca market data
// API into a bar store.
package us

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"stockview/internal/domain"
	"stockview/internal/gather"
	"stockview/internal/store"
	"stockview/internal/util"
)

var _ gather.Gatherer = (*DailyBarFetcher)(nil)

// BarSource is the part of the Alpaca market data client the fetcher uses.
type BarSource interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// NewMarketDataClient returns an Alpaca market data client.
func NewMarketDataClient(apiKey, apiSecret, dataURL string) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return marketdata.NewClient(opts)
}

// DailyFetchConfig parameterises a DailyBarFetcher.
type DailyFetchConfig struct {
	Symbols         []string
	Range           gather.DateRange // zero End resolves to the latest finished trading day
	BatchSize       int              // symbols per API call
	MaxWorkers      int
	RateLimitPerMin int
	MaxRetries      int
	RetryDelay      time.Duration
	Feed            marketdata.Feed
	ProgressDir     string // progress is kept per store under ProgressDir/<store name>
}

// Summary reports the outcome of one fetch run.
type Summary struct {
	Bars     int
	Symbols  int // symbols that returned at least one bar
	Empty    int // symbols that returned nothing
	Failures int // requests that failed after retries
}

// DailyBarFetcher downloads daily bars for a symbol list and writes them to
// a BarStore. Requests are split by symbol batch and calendar year, run
// concurrently under a shared rate limit, and retried with backoff.
type DailyBarFetcher struct {
	source  BarSource
	cal     CalendarSource
	store   store.BarStore
	cfg     DailyFetchConfig
	limiter *util.RateLimiter
	log     *slog.Logger
	now     func() time.Time
}

// NewDailyBarFetcher creates a fetcher. cal may be nil when cfg.Range.End
// is set.
func NewDailyBarFetcher(src BarSource, cal CalendarSource, s store.BarStore, cfg DailyFetchConfig, log *slog.Logger) *DailyBarFetcher {
	cfg.BatchSize = max(cfg.BatchSize, 1)
	cfg.MaxWorkers = max(cfg.MaxWorkers, 1)
	cfg.MaxRetries = max(cfg.MaxRetries, 1)
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 200
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Feed == "" {
		cfg.Feed = "sip"
	}
	if log == nil {
		log = slog.Default()
	}
	return &DailyBarFetcher{
		source:  src,
		cal:     cal,
		store:   s,
		cfg:     cfg,
		limiter: util.NewBurstLimiter(cfg.RateLimitPerMin, cfg.MaxWorkers),
		log:     log.With("gatherer", "us-daily"),
		now:     time.Now,
	}
}

// Name returns the gatherer identifier.
func (f *DailyBarFetcher) Name() string { return "us-daily" }

// Run performs one fetch pass and discards the summary.
func (f *DailyBarFetcher) Run(ctx context.Context) error {
	_, err := f.Fetch(ctx)
	return err
}

// Fetch downloads every configured symbol over the configured range. It is
// resumable: symbols that came back empty are skipped on the next run with
// the same end date, and a run that already completed for that end date is
// a no-op.
func (f *DailyBarFetcher) Fetch(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	end, err := f.resolveEnd()
	if err != nil {
		return sum, err
	}
	endStr := end.Format("2006-01-02")
	spans := util.YearSpans(f.cfg.Range.Start, time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC))
	if len(spans) == 0 {
		return sum, fmt.Errorf("empty range %s..%s", f.cfg.Range.Start.Format("2006-01-02"), endStr)
	}

	tracker, err := newProgressTracker(f.progressDir())
	if err != nil {
		return sum, err
	}
	if tracker.IsCompleted(endStr) {
		f.log.Info("already completed", "endDate", endStr)
		return sum, nil
	}
	if last := tracker.LastCompleted(); last != "" && last != endStr {
		// A later end date may have data for symbols that were empty before.
		if err := tracker.Reset(); err != nil {
			return sum, fmt.Errorf("resetting progress: %w", err)
		}
	}

	var remaining []string
	for _, sym := range NormalizeSymbols(f.cfg.Symbols) {
		if !tracker.IsEmpty(sym) {
			remaining = append(remaining, sym)
		}
	}
	batches := Batches(remaining, f.cfg.BatchSize)
	f.log.Info("starting fetch",
		"endDate", endStr,
		"store", f.store.Name(),
		"symbols", len(remaining),
		"batches", len(batches),
		"years", len(spans),
	)

	var (
		mu       sync.Mutex
		hits     = make(map[string]struct{})
		bars     atomic.Int64
		failures atomic.Int64
		runStart = time.Now()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.MaxWorkers)
	for bi, batch := range batches {
		for _, span := range spans {
			g.Go(func() error {
				got, err := f.fetchBatch(gctx, batch, span)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					failures.Add(1)
					f.log.Error("batch fetch failed",
						"batch", fmt.Sprintf("%d/%d", bi+1, len(batches)),
						"year", span.Start.Year(),
						"error", err,
					)
					return nil
				}
				if len(got) == 0 {
					return nil
				}
				if err := f.store.WriteBars(gctx, domain.MarketUS, got); err != nil {
					return fmt.Errorf("writing bars: %w", err)
				}
				mu.Lock()
				for _, b := range got {
					hits[b.Symbol] = struct{}{}
				}
				mu.Unlock()
				bars.Add(int64(len(got)))
				f.log.Debug("batch done",
					"batch", fmt.Sprintf("%d/%d", bi+1, len(batches)),
					"year", span.Start.Year(),
					"bars", len(got),
				)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}

	var empty []string
	for _, sym := range remaining {
		if _, ok := hits[sym]; !ok {
			empty = append(empty, sym)
		}
	}
	sum = Summary{
		Bars:     int(bars.Load()),
		Symbols:  len(hits),
		Empty:    len(empty),
		Failures: int(failures.Load()),
	}

	if sum.Failures > 0 {
		// Empty results are unreliable when some requests failed.
		f.log.Warn("fetch incomplete", "failures", sum.Failures)
		return sum, nil
	}
	if len(empty) > 0 {
		if err := tracker.MarkEmpty(empty); err != nil {
			return sum, fmt.Errorf("marking empty: %w", err)
		}
	}
	if err := tracker.MarkCompleted(endStr); err != nil {
		return sum, fmt.Errorf("marking completed: %w", err)
	}

	f.log.Info("complete",
		"bars", sum.Bars,
		"symbols", sum.Symbols,
		"empty", sum.Empty,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return sum, nil
}

// progressDir scopes resume state to the target store, so a run completed
// into one store never short-circuits a run into another.
func (f *DailyBarFetcher) progressDir() string {
	return filepath.Join(f.cfg.ProgressDir, f.store.Name())
}

func (f *DailyBarFetcher) resolveEnd() (time.Time, error) {
	if !f.cfg.Range.End.IsZero() {
		return f.cfg.Range.End, nil
	}
	if f.cal == nil {
		return time.Time{}, fmt.Errorf("no end date and no trading calendar")
	}
	end, err := LatestFinishedTradingDay(f.cal, f.now())
	if err != nil {
		return time.Time{}, fmt.Errorf("determining end date: %w", err)
	}
	return end, nil
}

// fetchBatch fetches one symbol batch over one span, honouring the rate
// limit before every attempt.
func (f *DailyBarFetcher) fetchBatch(ctx context.Context, symbols []string, span util.Span) ([]domain.Bar, error) {
	var multi map[string][]marketdata.Bar
	err := util.Retry(ctx, f.cfg.MaxRetries, f.cfg.RetryDelay, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		multi, err = f.source.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     span.Start,
			End:       span.End,
			Feed:      f.cfg.Feed,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}
	return convertBars(multi), nil
}

func convertBars(multi map[string][]marketdata.Bar) []domain.Bar {
	var bars []domain.Bar
	for symbol, abs := range multi {
		for _, ab := range abs {
			bars = append(bars, domain.Bar{
				Symbol:    strings.ToUpper(symbol),
				Timestamp: ab.Timestamp.UTC().Truncate(24 * time.Hour),
				Open:      ab.Open,
				High:      ab.High,
				Low:       ab.Low,
				Close:     ab.Close,
				Volume:    int64(ab.Volume),
			})
		}
	}
	return bars
}
