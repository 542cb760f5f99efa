package saver

import (
	"fmt"
	"strings"
)

// New returns the saver for format (csv, json or parquet).
func New(format string) (TableSaver, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}, nil
	case "json":
		return JSONSaver{}, nil
	case "parquet":
		return ParquetSaver{}, nil
	default:
		return nil, fmt.Errorf("saver: unsupported format %q (use csv, json or parquet)", format)
	}
}
