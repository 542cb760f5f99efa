package usecase

import (
	"fmt"
	"strings"
	"time"

	"StockFrame/internal/domain/models"
)

// EpochFallback replaces timestamps that have no literal to parse. Rows that
// carry it stay distinguishable from real observations.
var EpochFallback = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// ParseTimestamps converts every raw RFC3339 literal to a UTC instant with
// millisecond precision. It returns the number of rows given EpochFallback.
func ParseTimestamps(t *models.FeatureTable) (*models.FeatureTable, int, error) {
	rows := make([]models.Row, len(t.Rows))
	fallbacks := 0
	for i, r := range t.Rows {
		raw := strings.TrimSpace(r.RawTimestamp)
		if raw == "" {
			r.Timestamp = EpochFallback
			fallbacks++
			rows[i] = r
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fallbacks, models.NewStageError("parse_timestamps", r.Symbol, raw,
				fmt.Errorf("%w: row %d: %v", models.ErrParse, i, err))
		}
		r.Timestamp = ts.UTC().Truncate(time.Millisecond)
		rows[i] = r
	}
	return models.NewFeatureTable(rows), fallbacks, nil
}
