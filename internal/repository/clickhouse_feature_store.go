package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockFrame/internal/domain/models"
	domrepo "StockFrame/internal/domain/repository"
	pkgch "StockFrame/pkg/clickhouse"
	applogger "StockFrame/pkg/logger"
)

// DefaultFeatureTable is the ClickHouse table features are written to.
const DefaultFeatureTable = "stockframe.features"

// CHFeatureStore writes finished tables to ClickHouse.
type CHFeatureStore struct {
	db        *sql.DB
	table     string
	batchSize int
	l         *applogger.Logger
}

var _ domrepo.FeatureSink = (*CHFeatureStore)(nil)

func NewCHFeatureStore(ch *pkgch.Client, table string, batchSize int) *CHFeatureStore {
	if table == "" {
		table = DefaultFeatureTable
	}
	if batchSize <= 0 {
		batchSize = 2000
	}
	return &CHFeatureStore{db: ch.DB(), table: table, batchSize: batchSize}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHFeatureStore) Name() string { return "clickhouse" }

// SchemaStatements returns the DDL that InitSchema runs.
func (s *CHFeatureStore) SchemaStatements() []string {
	stmts := make([]string, 0, 2)
	if db, _, ok := strings.Cut(s.table, "."); ok {
		stmts = append(stmts, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db))
	}
	return append(stmts, createTableSQL(s.table))
}

// InitSchema creates the database and table when missing.
func (s *CHFeatureStore) InitSchema(ctx context.Context) error {
	return pkgch.NewClientFromDB(s.db).InitSchema(ctx, s.SchemaStatements())
}

// Save inserts every row using multi-row VALUES statements of at most
// batchSize rows.
func (s *CHFeatureStore) Save(ctx context.Context, t *models.FeatureTable) error {
	start := time.Now()
	rows := t.Len()
	for lo := 0; lo < rows; lo += s.batchSize {
		hi := lo + s.batchSize
		if hi > rows {
			hi = rows
		}
		chunk := t.Rows[lo:hi]
		args := make([]any, 0, len(chunk)*len(models.Columns))
		for _, r := range chunk {
			args = append(args, sqlArgs(r)...)
		}
		if _, err := s.db.ExecContext(ctx, insertSQL(s.table, len(chunk)), args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse insert features error",
					applogger.String("table", s.table),
					applogger.Int("offset", lo),
					applogger.Int("rows", len(chunk)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("insert features: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse insert features ok",
			applogger.String("table", s.table),
			applogger.Int("rows", rows),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// Close is a no-op; the connection pool belongs to pkg/clickhouse.Client.
func (s *CHFeatureStore) Close() error { return nil }

func createTableSQL(table string) string {
	cols := make([]string, 0, len(models.Columns))
	for _, c := range models.Columns {
		var typ string
		switch c {
		case "symbol":
			typ = "LowCardinality(String)"
		case "timestamp":
			typ = "DateTime64(3, 'UTC')"
		case "volume", "trade_count":
			typ = "Nullable(Int64)"
		default:
			typ = "Nullable(Float64)"
		}
		cols = append(cols, fmt.Sprintf("    %s %s", c, typ))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n) ENGINE = ReplacingMergeTree\nORDER BY (symbol, timestamp)",
		table, strings.Join(cols, ",\n"))
}

func insertSQL(table string, rows int) string {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(models.Columns)), ", ") + ")"
	values := make([]string, rows)
	for i := range values {
		values[i] = placeholder
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(models.Columns, ", "), strings.Join(values, ","))
}

// sqlArgs flattens a row to driver values, nulls as untyped nil.
func sqlArgs(r models.Row) []any {
	vals := r.Values()
	out := make([]any, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case *float64:
			if x != nil {
				out[i] = *x
			}
		case *int64:
			if x != nil {
				out[i] = *x
			}
		case time.Time:
			out[i] = x.UTC()
		default:
			out[i] = x
		}
	}
	return out
}
