package usecase

import (
	"StockFrame/internal/domain/models"
)

// RepairNulls fills price gaps per symbol. Close is carried forward, then
// backward for leading gaps; null open, high and low take the repaired close.
// Volume, vwap and trade_count stay null. A symbol with no close at all keeps
// its nulls.
func RepairNulls(t *models.FeatureTable) *models.FeatureTable {
	rows := make([]models.Row, t.Len())
	if t.Len() > 0 {
		copy(rows, t.Rows)
	}
	models.SortRows(rows)

	for _, p := range models.Partitions(rows) {
		fillClose(p.Rows)
		for i := range p.Rows {
			r := &p.Rows[i]
			if !r.Close.Valid {
				continue
			}
			if !r.Open.Valid {
				r.Open = r.Close
			}
			if !r.High.Valid {
				r.High = r.Close
			}
			if !r.Low.Valid {
				r.Low = r.Close
			}
		}
	}
	return models.NewFeatureTable(rows)
}

func fillClose(rows []models.Row) {
	first := -1
	for i := range rows {
		if rows[i].Close.Valid {
			if first < 0 {
				first = i
			}
			continue
		}
		if i > 0 && rows[i-1].Close.Valid {
			rows[i].Close = rows[i-1].Close
		}
	}
	if first <= 0 {
		return
	}
	for i := 0; i < first; i++ {
		rows[i].Close = rows[first].Close
	}
}
