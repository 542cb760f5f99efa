package saver

import (
	"encoding/json"

	"StockFrame/internal/domain/models"
)

// JSONSaver writes an array of row objects keyed by column name.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(t *models.FeatureTable, path string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows := []models.Row{}
	if t != nil {
		rows = t.Rows
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return err
	}
	return f.Close()
}
