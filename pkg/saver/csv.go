package saver

import (
	"encoding/csv"

	"StockFrame/internal/domain/models"
)

// CSVSaver writes the canonical columns as header, nulls as empty fields.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(t *models.FeatureTable, path string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(models.Columns); err != nil {
		return err
	}
	if t != nil {
		for _, r := range t.Rows {
			if err := w.Write(r.Strings()); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
