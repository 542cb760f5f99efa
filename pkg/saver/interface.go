// Package saver writes a FeatureTable to a local file as CSV, JSON or Parquet.
package saver

import "StockFrame/internal/domain/models"

// TableSaver writes a whole table to path, replacing any existing file.
type TableSaver interface {
	Save(t *models.FeatureTable, path string) error
	Extension() string
}
