package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/internal/usecase"
	"StockFrame/pkg/config"
	xhttp "StockFrame/pkg/http"
	applogger "StockFrame/pkg/logger"
)

// Pipeline runs one feature pass.
type Pipeline interface {
	Run(ctx context.Context, req usecase.Request) (*models.FeatureTable, *models.RunReport, error)
}

// Closer releases one resource at shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	pipeline   Pipeline
	httpServer *xhttp.Server
	closers    []Closer
	now        func() time.Time
}

// New creates a new App instance with all dependencies. httpServer may be
// nil; closers run in reverse order at shutdown.
func New(cfg *config.Config, l *applogger.Logger, pipeline Pipeline, httpServer *xhttp.Server, closers ...Closer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		l:          l,
		pipeline:   pipeline,
		httpServer: httpServer,
		closers:    closers,
		now:        time.Now,
	}
}

// Run starts the application and blocks until the work is done or the
// process is interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

// run executes the pipeline once, then either returns, repeats on the
// configured interval or keeps serving HTTP until ctx ends.
func (a *App) run(ctx context.Context) error {
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	firstErr := a.runOnce(ctx)
	interval := a.cfg.Pipeline.Interval
	if interval <= 0 && a.httpServer == nil {
		a.shutdown()
		return firstErr
	}

	var serverErr <-chan error
	if a.httpServer != nil {
		serverErr = a.httpServer.Errors()
	}
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
		a.l.Info("scheduled runs enabled", applogger.Duration("interval", interval))
	}

	for {
		select {
		case <-ctx.Done():
			a.l.Info("shutdown signal received")
			a.shutdown()
			return nil
		case err := <-serverErr:
			a.shutdown()
			return err
		case <-tick:
			_ = a.runOnce(ctx)
		}
	}
}

func (a *App) runOnce(ctx context.Context) error {
	start, end, err := a.cfg.Range(a.now())
	if err != nil {
		a.l.Error("pipeline range error", applogger.Error(err))
		return err
	}
	table, report, err := a.pipeline.Run(ctx, usecase.Request{
		Tickers: a.cfg.Pipeline.Tickers,
		Start:   start,
		End:     end,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		a.l.Error("pipeline run failed", applogger.Error(err))
		return err
	}
	a.l.Info("pipeline run complete",
		applogger.Int("rows", table.Len()),
		applogger.Int("symbols", len(table.Symbols())),
		applogger.Strings("failed_symbols", report.FailedSymbols()),
		applogger.Int("epoch_fallbacks", report.EpochFallbacks),
	)
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown() {
	a.l.Info("shutting down")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(context.Background()); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if c.Close == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
}
