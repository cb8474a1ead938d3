// Package warehouse executes compiled SQL against DuckDB.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/shopspring/decimal"

	"semsql/internal/domain"
)

var _ domain.Warehouse = (*DuckDB)(nil)

// DuckDB runs queries on a DuckDB database.
type DuckDB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens and pings the DuckDB database at dsn. An empty dsn opens an
// in-memory database.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*DuckDB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an already opened database.
func New(db *sql.DB, logger *slog.Logger) *DuckDB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDB{db: db, logger: logger}
}

// DB exposes the underlying handle, e.g. for seeding tables.
func (w *DuckDB) DB() *sql.DB { return w.db }

// Close releases the database.
func (w *DuckDB) Close() error { return w.db.Close() }

// Execute runs sqlQuery and returns every row.
func (w *DuckDB) Execute(ctx context.Context, sqlQuery string) (*domain.QueryResult, error) {
	if strings.TrimSpace(sqlQuery) == "" {
		return nil, domain.ErrValidation("sql query is required")
	}

	start := time.Now()
	rows, err := w.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	w.logger.DebugContext(ctx, "query executed",
		"rows", result.TotalRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func scanRows(rows *sql.Rows) (*domain.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	resultRows := make([][]interface{}, 0)
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		resultRows = append(resultRows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.QueryResult{
		Columns:   cols,
		Rows:      resultRows,
		TotalRows: len(resultRows),
	}, nil
}

// normalizeValue converts driver types into values that encode cleanly as JSON.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case duckdb.Decimal:
		if t.Value == nil {
			return nil
		}
		return decimal.NewFromBigInt(t.Value, -int32(t.Scale))
	default:
		return v
	}
}
