package internal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/lychee-technology/tempora"
	"go.uber.org/zap"
)

// DuckDBSourceLoader reads a source batch from a Parquet/CSV object (on S3
// or local disk) instead of a live Postgres table, using DuckDB as the
// in-process scan engine. This is the supplemental ingest path: the
// teacher's e2e harness exports a Postgres table to S3 Parquet the same
// way (internal/e2e_harness/fixtures.go's WriteTargetParquetMirror), so
// reading a source batch back in from Parquet is the same integration
// surface used in reverse.
type DuckDBSourceLoader struct {
	db     *sql.DB
	object string // s3://bucket/key.parquet or a local path
}

// NewDuckDBSourceLoader opens an in-process DuckDB connection configured
// per cfg and points it at object (a Parquet or CSV path/URI).
func NewDuckDBSourceLoader(ctx context.Context, cfg tempora.DuckDBConfig, object string) (*DuckDBSourceLoader, error) {
	if !cfg.Enabled {
		return nil, tempora.NewValidationError("duckdb source loader requires DuckDBConfig.Enabled")
	}

	dsn := cfg.DBPath
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, tempora.NewInternalError("open duckdb", err)
	}
	db.SetMaxOpenConns(1)
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, tempora.NewInternalError("ping duckdb", err)
	}

	if cfg.EnableS3 {
		if _, err := db.ExecContext(ctx, "INSTALL httpfs; LOAD httpfs;"); err != nil {
			zap.S().Warnw("duckdb source loader: install/load httpfs failed", "err", err)
		}
		if cfg.S3Region != "" {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA s3_region='%s';", cfg.S3Region)); err != nil {
				zap.S().Warnw("duckdb source loader: set s3_region failed", "err", err)
			}
		}
		if cfg.S3Endpoint != "" {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA s3_endpoint='%s';", cfg.S3Endpoint)); err != nil {
				zap.S().Warnw("duckdb source loader: set s3_endpoint failed", "err", err)
			}
		}
		if cfg.S3AccessKey != "" {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA s3_access_key='%s';", cfg.S3AccessKey)); err != nil {
				zap.S().Warnw("duckdb source loader: set s3_access_key failed", "err", err)
			}
		}
		if cfg.S3SecretKey != "" {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA s3_secret_key='%s';", cfg.S3SecretKey)); err != nil {
				zap.S().Warnw("duckdb source loader: set s3_secret_key failed", "err", err)
			}
		}
	}
	if cfg.EnableParquet {
		if _, err := db.ExecContext(ctx, "INSTALL parquet; LOAD parquet;"); err != nil {
			zap.S().Warnw("duckdb source loader: install/load parquet failed", "err", err)
		}
	}

	return &DuckDBSourceLoader{db: db, object: object}, nil
}

func (d *DuckDBSourceLoader) Close() error { return d.db.Close() }

// ReadBatch satisfies SourceBatchReader by scanning the configured Parquet
// or CSV object (CSV when the object name ends in ".csv") and adapting each
// row into the same shape the Postgres backend produces.
func (d *DuckDBSourceLoader) ReadBatch(ctx context.Context, table tempora.TableIdentity, rowIDColumn, foundingIDColumn string) ([]rawSourceRow, error) {
	reader := "read_parquet"
	if strings.HasSuffix(strings.ToLower(d.object), ".csv") {
		reader = "read_csv_auto"
	}
	query := fmt.Sprintf("SELECT * FROM %s('%s')", reader, d.object)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, tempora.NewExecutionError("duckdb scan source parquet", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, tempora.NewExecutionError("duckdb read column names", err)
	}

	var out []rawSourceRow
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, tempora.NewExecutionError("duckdb scan source row", err)
		}

		colMap := make(map[string]any, len(cols))
		for i, c := range cols {
			colMap[c] = vals[i]
		}

		var rowID int64
		if v, ok := colMap[rowIDColumn].(int64); ok {
			rowID = v
		}
		var foundingID string
		if foundingIDColumn != "" {
			if v, ok := colMap[foundingIDColumn].(string); ok {
				foundingID = v
			}
		}

		out = append(out, rawSourceRow{RowID: rowID, FoundingID: foundingID, Columns: colMap})
	}
	if err := rows.Err(); err != nil {
		return nil, tempora.NewExecutionError("duckdb iterate source batch", err)
	}

	return out, nil
}
