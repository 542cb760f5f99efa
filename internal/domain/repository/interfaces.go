package repository

import (
	"context"
	"time"

	"StockFrame/internal/domain/models"
)

// BarSource retrieves raw minute bars for one ticker over [start, end).
type BarSource interface {
	FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]models.Bar, error)
}

// FeatureSink persists or forwards a finished FeatureTable.
type FeatureSink interface {
	Name() string
	Save(ctx context.Context, table *models.FeatureTable) error
	Close() error
}

// Metrics records pipeline activity.
type Metrics interface {
	RecordPageFetched(symbol string)
	RecordFetchFailure(symbol string)
	RecordStage(stage string, rows int, seconds float64)
	RecordSymbolStatus(symbol string, status models.SymbolStatus)
	RecordRowsExported(sink string, rows int)
	RecordError(kind string)
	RecordRunCompleted(at time.Time)
}
