package repository

import (
	"context"

	"StockFrame/internal/domain/models"
	domrepo "StockFrame/internal/domain/repository"
	"StockFrame/pkg/saver"
)

// FileSink writes the table to a local file in the saver's format.
type FileSink struct {
	saver saver.TableSaver
	path  string
}

var _ domrepo.FeatureSink = (*FileSink)(nil)

// NewFileSink builds a sink for format (csv, json or parquet) writing to path.
func NewFileSink(format, path string) (*FileSink, error) {
	s, err := saver.New(format)
	if err != nil {
		return nil, err
	}
	return &FileSink{saver: s, path: path}, nil
}

func (s *FileSink) Name() string { return "file" }

// Path is the export destination.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Save(ctx context.Context, t *models.FeatureTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.saver.Save(t, s.path)
}

func (s *FileSink) Close() error { return nil }
