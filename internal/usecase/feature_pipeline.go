package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/internal/domain/repository"
	applogger "StockFrame/pkg/logger"
)

// Request selects the tickers and the [Start, End) range of one run.
type Request struct {
	Tickers []string
	Start   time.Time
	End     time.Time
}

// FeaturePipeline runs the stages in order and exports the result.
type FeaturePipeline struct {
	assembler   *TableAssembler
	features    *FeatureStage
	session     SessionWindow
	maxGridRows int
	sinks       []repository.FeatureSink
	reports     []repository.ReportSink
	metrics     repository.Metrics
	l           *applogger.Logger
	now         func() time.Time
}

// PipelineOption configures FeaturePipeline.
type PipelineOption func(*FeaturePipeline)

// WithSession sets the trading window kept by the last stage.
func WithSession(w SessionWindow) PipelineOption {
	return func(p *FeaturePipeline) { p.session = w }
}

// WithMaxGridRows caps the densified table size; zero disables the cap.
func WithMaxGridRows(n int) PipelineOption {
	return func(p *FeaturePipeline) { p.maxGridRows = n }
}

// WithSinks sets the exporters the finished table is written to.
func WithSinks(sinks ...repository.FeatureSink) PipelineOption {
	return func(p *FeaturePipeline) { p.sinks = append(p.sinks, sinks...) }
}

// WithReportSinks sets the receivers of run reports.
func WithReportSinks(sinks ...repository.ReportSink) PipelineOption {
	return func(p *FeaturePipeline) { p.reports = append(p.reports, sinks...) }
}

// WithPipelineMetrics sets the metrics recorder.
func WithPipelineMetrics(m repository.Metrics) PipelineOption {
	return func(p *FeaturePipeline) { p.metrics = m }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *FeaturePipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func NewFeaturePipeline(assembler *TableAssembler, features *FeatureStage, opts ...PipelineOption) *FeaturePipeline {
	p := &FeaturePipeline{
		assembler: assembler,
		features:  features,
		session:   DefaultSession,
		l:         applogger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one full pass. The report is returned even when err is set.
// A sink failure still returns the finished table.
func (p *FeaturePipeline) Run(ctx context.Context, req Request) (*models.FeatureTable, *models.RunReport, error) {
	report := &models.RunReport{StartedAt: p.now().UTC(), Start: req.Start, End: req.End}
	p.l.Info("pipeline started",
		applogger.Strings("tickers", req.Tickers),
		applogger.Time("start", req.Start),
		applogger.Time("end", req.End),
	)

	table, err := p.transform(ctx, req, report)
	if err != nil {
		report.Error = err.Error()
		report.FinishedAt = p.now().UTC()
		p.recordError(err)
		p.l.Error("pipeline failed", applogger.Error(err))
		p.publishReport(ctx, report)
		return nil, report, err
	}
	report.Rows = table.Len()

	exportErr := p.export(ctx, table)
	if exportErr != nil {
		report.Error = exportErr.Error()
		if p.metrics != nil {
			p.metrics.RecordError("export")
		}
	}
	report.FinishedAt = p.now().UTC()
	if p.metrics != nil {
		p.metrics.RecordRunCompleted(report.FinishedAt)
	}
	p.l.Info("pipeline finished",
		applogger.Int("rows", table.Len()),
		applogger.Strings("failed_symbols", report.FailedSymbols()),
		applogger.Duration("duration_ms", report.FinishedAt.Sub(report.StartedAt)),
	)
	p.publishReport(ctx, report)
	return table, report, exportErr
}

func (p *FeaturePipeline) transform(ctx context.Context, req Request, report *models.RunReport) (*models.FeatureTable, error) {
	var (
		table *models.FeatureTable
		err   error
	)

	err = p.stage(report, "assemble", func() (*models.FeatureTable, error) {
		var fetched []models.SymbolResult
		table, fetched, err = p.assembler.Assemble(ctx, req.Tickers, req.Start, req.End)
		report.Fetch = fetched
		return table, err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(report, "parse_timestamps", func() (*models.FeatureTable, error) {
		var fallbacks int
		table, fallbacks, err = ParseTimestamps(table)
		report.EpochFallbacks = fallbacks
		if fallbacks > 0 {
			p.l.Warn("timestamps replaced by epoch fallback", applogger.Int("rows", fallbacks))
		}
		return table, err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(report, "densify", func() (*models.FeatureTable, error) {
		var stats DensifyStats
		table, stats, err = Densify(table, p.maxGridRows)
		if err == nil {
			report.Grid = models.GridStats(stats)
			p.l.Debug("grid reconciled",
				applogger.Int("grid_points", stats.GridPoints),
				applogger.Int("inserted", stats.Inserted),
				applogger.Int("duplicates", stats.Duplicates),
				applogger.Int("off_grid", stats.OffGrid),
			)
		}
		return table, err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(report, "repair_nulls", func() (*models.FeatureTable, error) {
		table = RepairNulls(table)
		return table, nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(report, "features", func() (*models.FeatureTable, error) {
		var computed []models.SymbolResult
		table, computed, err = p.features.Compute(ctx, table)
		report.Features = computed
		return table, err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(report, "session_filter", func() (*models.FeatureTable, error) {
		table = FilterSession(table, p.session)
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (p *FeaturePipeline) stage(report *models.RunReport, name string, fn func() (*models.FeatureTable, error)) error {
	began := time.Now()
	t, err := fn()
	took := time.Since(began)
	if err != nil {
		return err
	}
	report.AddStage(name, t.Len(), took)
	if p.metrics != nil {
		p.metrics.RecordStage(name, t.Len(), took.Seconds())
	}
	p.l.Info("stage finished",
		applogger.String("stage", name),
		applogger.Int("rows", t.Len()),
		applogger.Duration("duration_ms", took),
	)
	return nil
}

func (p *FeaturePipeline) export(ctx context.Context, table *models.FeatureTable) error {
	var errs []error
	for _, sink := range p.sinks {
		began := time.Now()
		if err := sink.Save(ctx, table); err != nil {
			p.l.Error("sink export failed",
				applogger.String("sink", sink.Name()),
				applogger.Error(err),
			)
			errs = append(errs, fmt.Errorf("sink %s: %w", sink.Name(), err))
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordRowsExported(sink.Name(), table.Len())
		}
		p.l.Info("table exported",
			applogger.String("sink", sink.Name()),
			applogger.Int("rows", table.Len()),
			applogger.Duration("duration_ms", time.Since(began)),
		)
	}
	return errors.Join(errs...)
}

func (p *FeaturePipeline) publishReport(ctx context.Context, report *models.RunReport) {
	for _, rs := range p.reports {
		if err := rs.SaveReport(ctx, report); err != nil {
			p.l.Warn("run report not saved", applogger.Error(err))
		}
	}
}

func (p *FeaturePipeline) recordError(err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordError(errorKind(err))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, models.ErrParse):
		return "parse"
	case errors.Is(err, models.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, models.ErrGridTooLarge):
		return "grid_too_large"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "pipeline"
	}
}
