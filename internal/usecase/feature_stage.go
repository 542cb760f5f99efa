package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/internal/domain/repository"
	"StockFrame/internal/services/indicators"
	applogger "StockFrame/pkg/logger"
)

// ShortHistoryPolicy decides what happens to a symbol the indicators cannot
// cover.
type ShortHistoryPolicy string

const (
	// PolicyFail aborts the run.
	PolicyFail ShortHistoryPolicy = "fail"
	// PolicyDegrade keeps the symbol with null indicators.
	PolicyDegrade ShortHistoryPolicy = "degrade"
)

// FeatureStage computes the indicator columns per symbol.
type FeatureStage struct {
	workers int
	policy  ShortHistoryPolicy
	metrics repository.Metrics
	l       *applogger.Logger
}

// FeatureOption configures FeatureStage.
type FeatureOption func(*FeatureStage)

// WithFeatureWorkers sets how many partitions are computed at once.
func WithFeatureWorkers(n int) FeatureOption {
	return func(s *FeatureStage) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithShortHistoryPolicy selects the short partition behaviour.
func WithShortHistoryPolicy(p ShortHistoryPolicy) FeatureOption {
	return func(s *FeatureStage) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithFeatureMetrics records per-symbol outcomes.
func WithFeatureMetrics(m repository.Metrics) FeatureOption {
	return func(s *FeatureStage) { s.metrics = m }
}

// WithFeatureLogger sets the logger.
func WithFeatureLogger(l *applogger.Logger) FeatureOption {
	return func(s *FeatureStage) {
		if l != nil {
			s.l = l
		}
	}
}

func NewFeatureStage(opts ...FeatureOption) *FeatureStage {
	s := &FeatureStage{workers: 1, policy: PolicyFail, l: applogger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type partitionResult struct {
	rows   []models.Row
	result models.SymbolResult
	err    error
}

// Compute fills the indicator columns of every row. The output is sorted by
// symbol then timestamp whatever order the partitions finish in.
func (s *FeatureStage) Compute(ctx context.Context, t *models.FeatureTable) (*models.FeatureTable, []models.SymbolResult, error) {
	rows := make([]models.Row, t.Len())
	if t.Len() > 0 {
		copy(rows, t.Rows)
	}
	models.SortRows(rows)
	parts := models.Partitions(rows)

	results := make([]partitionResult, len(parts))
	jobs := make(chan int, len(parts))
	for i := range parts {
		jobs <- i
	}
	close(jobs)

	workers := s.workers
	if workers > len(parts) {
		workers = len(parts)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = partitionResult{err: err}
					continue
				}
				results[i] = s.computePartition(parts[i])
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("feature stage: %w", err)
	}

	out := make([]models.Row, 0, len(rows))
	report := make([]models.SymbolResult, 0, len(parts))
	for _, res := range results {
		if res.err != nil {
			return nil, nil, res.err
		}
		out = append(out, res.rows...)
		report = append(report, res.result)
		if s.metrics != nil {
			s.metrics.RecordSymbolStatus(res.result.Symbol, res.result.Status)
		}
	}
	return models.NewFeatureTable(out), report, nil
}

func (s *FeatureStage) computePartition(p models.Partition) partitionResult {
	began := time.Now()
	n := len(p.Rows)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)

	var err error
	for i, r := range p.Rows {
		if !r.High.Valid || !r.Low.Valid || !r.Close.Valid {
			err = fmt.Errorf("%w: null price at row %d of %d", models.ErrInsufficientHistory, i, n)
			break
		}
		high[i], low[i], closes[i] = r.High.Float64, r.Low.Float64, r.Close.Float64
	}

	var set *indicators.Set
	if err == nil {
		set, err = indicators.Compute(high, low, closes)
	}

	out := make([]models.Row, n)
	copy(out, p.Rows)
	if err != nil {
		if !errors.Is(err, models.ErrInsufficientHistory) || s.policy != PolicyDegrade {
			return partitionResult{err: models.NewStageError("features", p.Symbol, fmt.Sprintf("%d rows", n), err)}
		}
		s.l.Warn("insufficient history, indicators left null",
			applogger.String("symbol", p.Symbol),
			applogger.String("stage", "features"),
			applogger.Int("rows", n),
			applogger.Error(err),
		)
		for i := range out {
			out[i].Indicators = models.Indicators{}
		}
		return partitionResult{
			rows:   out,
			result: models.SymbolResult{Symbol: p.Symbol, Status: models.StatusSkipped, Rows: n, Error: err.Error()},
		}
	}

	for i := range out {
		out[i].Indicators = models.Indicators{
			ADX:        toNull(set.ADX[i]),
			ATR:        toNull(set.ATR[i]),
			AroonOsc:   toNull(set.AroonOsc[i]),
			AroonUp:    toNull(set.AroonUp[i]),
			AroonDown:  toNull(set.AroonDown[i]),
			BBandUp:    toNull(set.BBandUp[i]),
			BBandMid:   toNull(set.BBandMid[i]),
			BBandLow:   toNull(set.BBandLow[i]),
			MACD:       toNull(set.MACD[i]),
			MACDSignal: toNull(set.MACDSignal[i]),
			MACDHist:   toNull(set.MACDHist[i]),
			RSI:        toNull(set.RSI[i]),
			StochSlowK: toNull(set.StochSlowK[i]),
			StochSlowD: toNull(set.StochSlowD[i]),
			SMA:        toNull(set.SMA[i]),
		}
	}
	s.l.Debug("indicators computed",
		applogger.String("symbol", p.Symbol),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(began)),
	)
	return partitionResult{
		rows:   out,
		result: models.SymbolResult{Symbol: p.Symbol, Status: models.StatusSuccess, Rows: n},
	}
}

func toNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
