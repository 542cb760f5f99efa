package repository

import (
	"context"
	"sync"

	"StockFrame/internal/domain/models"
	domrepo "StockFrame/internal/domain/repository"
)

// Snapshot keeps the latest finished table and run report in memory for the
// HTTP API.
type Snapshot struct {
	mu     sync.RWMutex
	table  *models.FeatureTable
	report *models.RunReport
}

var (
	_ domrepo.FeatureSink   = (*Snapshot)(nil)
	_ domrepo.FeatureReader = (*Snapshot)(nil)
	_ domrepo.ReportSink    = (*Snapshot)(nil)
)

func NewSnapshot() *Snapshot { return &Snapshot{} }

func (s *Snapshot) Name() string { return "snapshot" }

// Save replaces the held table. Tables are not mutated after a run, so the
// pointer is kept as is.
func (s *Snapshot) Save(_ context.Context, t *models.FeatureTable) error {
	s.mu.Lock()
	s.table = t
	s.mu.Unlock()
	return nil
}

func (s *Snapshot) SaveReport(_ context.Context, r *models.RunReport) error {
	s.mu.Lock()
	s.report = r
	s.mu.Unlock()
	return nil
}

// Features returns one page of rows matching q and the total match count.
func (s *Snapshot) Features(_ context.Context, q domrepo.FeatureQuery) ([]models.Row, int, error) {
	s.mu.RLock()
	t := s.table
	s.mu.RUnlock()

	var matched []models.Row
	if t != nil {
		if q.Symbol == "" {
			matched = t.Rows
		} else {
			for _, r := range t.Rows {
				if r.Symbol == q.Symbol {
					matched = append(matched, r)
				}
			}
		}
	}

	total := len(matched)
	lo := q.Offset
	if lo > total {
		lo = total
	}
	hi := total
	if q.Limit > 0 && lo+q.Limit < hi {
		hi = lo + q.Limit
	}
	page := make([]models.Row, hi-lo)
	copy(page, matched[lo:hi])
	return page, total, nil
}

func (s *Snapshot) LastReport(_ context.Context) (*models.RunReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report, s.report != nil
}

func (s *Snapshot) Close() error { return nil }
