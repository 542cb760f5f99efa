package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/internal/domain/repository"
	applogger "StockFrame/pkg/logger"
)

// TableAssembler fetches every ticker and stacks the bars into one table.
type TableAssembler struct {
	src     repository.BarSource
	metrics repository.Metrics
	l       *applogger.Logger
	workers int
	timeout time.Duration
}

// AssemblerOption configures TableAssembler.
type AssemblerOption func(*TableAssembler)

// WithFetchWorkers bounds the number of concurrent ticker fetches.
func WithFetchWorkers(n int) AssemblerOption {
	return func(a *TableAssembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithTickerTimeout bounds a single ticker fetch, pagination included.
func WithTickerTimeout(d time.Duration) AssemblerOption {
	return func(a *TableAssembler) { a.timeout = d }
}

func NewTableAssembler(src repository.BarSource, metrics repository.Metrics, l *applogger.Logger, opts ...AssemblerOption) *TableAssembler {
	a := &TableAssembler{src: src, metrics: metrics, l: l, workers: 1}
	for _, opt := range opts {
		opt(a)
	}
	if a.l == nil {
		a.l = applogger.Nop()
	}
	return a
}

type fetchResult struct {
	bars []models.Bar
	err  error
	took time.Duration
}

// Assemble fetches tickers concurrently and appends their rows in ticker order.
// A failed ticker is logged and contributes no rows; a schema mismatch aborts.
func (a *TableAssembler) Assemble(ctx context.Context, tickers []string, start, end time.Time) (*models.FeatureTable, []models.SymbolResult, error) {
	results := make([]fetchResult, len(tickers))
	jobs := make(chan int, len(tickers))
	for i := range tickers {
		jobs <- i
	}
	close(jobs)

	workers := a.workers
	if workers > len(tickers) {
		workers = len(tickers)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = fetchResult{err: err}
					continue
				}
				results[i] = a.fetchOne(ctx, tickers[i], start, end)
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("assemble: %w", err)
	}

	rows := make([]models.Row, 0)
	report := make([]models.SymbolResult, 0, len(tickers))
	for i, ticker := range tickers {
		res := results[i]
		if res.err != nil {
			if errors.Is(res.err, models.ErrSchemaMismatch) {
				return nil, nil, models.NewStageError("assemble", ticker, "", res.err)
			}
			a.l.Error("ticker fetch failed, skipping",
				applogger.String("symbol", ticker),
				applogger.String("stage", "assemble"),
				applogger.Duration("duration_ms", res.took),
				applogger.Error(res.err),
			)
			if a.metrics != nil {
				a.metrics.RecordFetchFailure(ticker)
			}
			report = append(report, models.SymbolResult{Symbol: ticker, Status: models.StatusFailed, Error: res.err.Error()})
			continue
		}
		for _, b := range res.bars {
			b.Symbol = ticker
			rows = append(rows, b.Row())
		}
		a.l.Info("ticker fetched",
			applogger.String("symbol", ticker),
			applogger.Int("bars", len(res.bars)),
			applogger.Duration("duration_ms", res.took),
		)
		report = append(report, models.SymbolResult{Symbol: ticker, Status: models.StatusSuccess, Rows: len(res.bars)})
	}
	return models.NewFeatureTable(rows), report, nil
}

func (a *TableAssembler) fetchOne(ctx context.Context, ticker string, start, end time.Time) fetchResult {
	began := time.Now()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	bars, err := a.src.FetchBars(ctx, ticker, start, end)
	if err != nil {
		return fetchResult{err: fmt.Errorf("%w: %s: %w", models.ErrTickerFetch, ticker, err), took: time.Since(began)}
	}
	return fetchResult{bars: bars, took: time.Since(began)}
}
