package usecase

import "StockFrame/internal/domain/models"

// SessionWindow is an inclusive range of UTC hours.
type SessionWindow struct {
	StartHour int
	EndHour   int
}

// DefaultSession covers the regular US equity session in UTC hours.
var DefaultSession = SessionWindow{StartHour: 14, EndHour: 20}

// Contains reports whether hour lies in the window.
func (w SessionWindow) Contains(hour int) bool {
	return hour >= w.StartHour && hour <= w.EndHour
}

// FilterSession keeps rows whose UTC hour falls inside w. Row order is kept.
func FilterSession(t *models.FeatureTable, w SessionWindow) *models.FeatureTable {
	out := make([]models.Row, 0, t.Len())
	if t == nil {
		return models.NewFeatureTable(out)
	}
	for _, r := range t.Rows {
		if w.Contains(r.Timestamp.UTC().Hour()) {
			out = append(out, r)
		}
	}
	return models.NewFeatureTable(out)
}
