package usecase

import (
	"fmt"
	"sort"
	"time"

	"StockFrame/internal/domain/models"
)

// GridStep is the spacing of the reconciled time grid.
const GridStep = time.Minute

// DensifyStats describes what the reconciler changed.
type DensifyStats struct {
	GridPoints int
	Inserted   int
	Duplicates int
	OffGrid    int
}

// Densify reindexes the table so each symbol has one row per grid minute
// between the global minimum and maximum timestamp of the whole table. Missing
// rows are added with null values, rows off the grid are kept, and duplicate
// (symbol, timestamp) keys keep their first row. maxRows caps the output size;
// zero disables the cap.
func Densify(t *models.FeatureTable, maxRows int) (*models.FeatureTable, DensifyStats, error) {
	var stats DensifyStats
	if t.Len() == 0 {
		return models.NewFeatureTable(nil), stats, nil
	}

	lo, hi := t.Rows[0].Timestamp, t.Rows[0].Timestamp
	for _, r := range t.Rows {
		if r.Timestamp.Before(lo) {
			lo = r.Timestamp
		}
	}
	for _, r := range t.Rows {
		if r.Timestamp.After(hi) {
			hi = r.Timestamp
		}
	}

	stats.GridPoints = int(hi.Sub(lo)/GridStep) + 1
	symbols := t.Symbols()
	if maxRows > 0 && stats.GridPoints > maxRows/len(symbols) {
		return nil, stats, models.NewStageError("densify", "",
			fmt.Sprintf("%d symbols x %d minutes from %s", len(symbols), stats.GridPoints, lo.Format(time.RFC3339)),
			fmt.Errorf("%w: limit is %d rows", models.ErrGridTooLarge, maxRows))
	}

	bySymbol := make(map[string]map[int64]models.Row, len(symbols))
	for _, r := range t.Rows {
		m := bySymbol[r.Symbol]
		if m == nil {
			m = make(map[int64]models.Row)
			bySymbol[r.Symbol] = m
		}
		k := r.Timestamp.UnixMilli()
		if _, dup := m[k]; dup {
			stats.Duplicates++
			continue
		}
		m[k] = r
	}

	out := make([]models.Row, 0, stats.GridPoints*len(symbols))
	for _, s := range symbols {
		m := bySymbol[s]
		part := make([]models.Row, 0, stats.GridPoints)
		for i := 0; i < stats.GridPoints; i++ {
			ts := lo.Add(time.Duration(i) * GridStep)
			k := ts.UnixMilli()
			if r, ok := m[k]; ok {
				part = append(part, r)
				delete(m, k)
				continue
			}
			part = append(part, models.EmptyRow(s, ts))
			stats.Inserted++
		}
		if len(m) > 0 {
			stats.OffGrid += len(m)
			for _, r := range m {
				part = append(part, r)
			}
			sort.SliceStable(part, func(i, j int) bool { return part[i].Timestamp.Before(part[j].Timestamp) })
		}
		out = append(out, part...)
	}
	return models.NewFeatureTable(out), stats, nil
}
