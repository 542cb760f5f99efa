package repository

import (
	"context"

	"StockFrame/internal/domain/models"
)

// FeatureQuery filters rows of a stored FeatureTable.
type FeatureQuery struct {
	Symbol string
	Limit  int
	Offset int
}

// FeatureReader gives read access to the most recent finished table.
type FeatureReader interface {
	Features(ctx context.Context, q FeatureQuery) (rows []models.Row, total int, err error)
	LastReport(ctx context.Context) (*models.RunReport, bool)
}

// ReportSink receives the report of every finished run, failed runs included.
type ReportSink interface {
	SaveReport(ctx context.Context, report *models.RunReport) error
}
