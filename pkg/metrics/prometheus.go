package metrics

import (
	"time"

	"StockFrame/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pagesFetched  *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	stageRows     *prometheus.GaugeVec
	stageLatency  *prometheus.HistogramVec
	symbolStatus  *prometheus.CounterVec
	rowsExported  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		pagesFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockframe_pages_fetched_total",
				Help: "Bar pages fetched from the market data API",
			},
			[]string{"symbol"},
		),
		fetchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockframe_fetch_failures_total",
				Help: "Tickers skipped because their fetch failed",
			},
			[]string{"symbol"},
		),
		stageRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockframe_stage_rows",
				Help: "Rows produced by the last run of each stage",
			},
			[]string{"stage"},
		),
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockframe_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		symbolStatus: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockframe_feature_symbols_total",
				Help: "Feature stage outcomes per symbol",
			},
			[]string{"symbol", "status"},
		),
		rowsExported: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockframe_rows_exported_total",
				Help: "Rows written to each sink",
			},
			[]string{"sink"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockframe_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "stockframe_last_run_timestamp_seconds",
			Help: "Unix time of the last completed pipeline run",
		}),
	}
}

// RecordPageFetched counts one fetched page.
func (r *Recorder) RecordPageFetched(symbol string) {
	r.pagesFetched.WithLabelValues(symbol).Inc()
}

// RecordFetchFailure counts a skipped ticker.
func (r *Recorder) RecordFetchFailure(symbol string) {
	r.fetchFailures.WithLabelValues(symbol).Inc()
}

// RecordStage records a stage's output size and latency.
func (r *Recorder) RecordStage(stage string, rows int, seconds float64) {
	r.stageRows.WithLabelValues(stage).Set(float64(rows))
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordSymbolStatus counts a feature stage outcome.
func (r *Recorder) RecordSymbolStatus(symbol string, status models.SymbolStatus) {
	r.symbolStatus.WithLabelValues(symbol, string(status)).Inc()
}

// RecordRowsExported counts rows written by a sink.
func (r *Recorder) RecordRowsExported(sink string, rows int) {
	r.rowsExported.WithLabelValues(sink).Add(float64(rows))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRunCompleted stamps the last completed run.
func (r *Recorder) RecordRunCompleted(at time.Time) {
	r.lastRun.Set(float64(at.Unix()))
}
