package factory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tempora"
	"github.com/lychee-technology/tempora/internal"
	"go.uber.org/zap"
)

// queryPool is a minimal interface used for querying table names.
// It matches *pgxpool.Pool and pgxmock pools used in tests.
type queryPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// tableCollector is a test hook for catalog discovery.
var tableCollector = collectTablesFromPool

// collectTablesFromPool queries information_schema for table/view names and returns the list.
func collectTablesFromPool(pool queryPool) ([]string, error) {
	rows, err := pool.Query(context.Background(), `SELECT table_name FROM information_schema.tables t
WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
union SELECT table_name FROM information_schema.views v WHERE table_schema = 'public';`)

	if err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	defer rows.Close()

	zap.S().Info("Database tables:")
	tables := []string{}
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
		zap.S().Infow("found table", "name", tableName)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tables, nil
}

// EraRegistrySource picks how era descriptors are resolved: against a
// catalog view in the target database, or from a directory of era
// descriptor JSON files. EraDirectory wins when both are set.
type EraRegistrySource struct {
	EraCatalogView string
	EraDirectory   string
}

// DuckDBOptions wires the optional DuckDB-backed source loader and
// target federated read path. DB is nil when the DuckDB path is
// disabled entirely, in which case the merger only ever uses the
// direct pgx path for source and target reads.
type DuckDBOptions struct {
	DB             *sql.DB
	SourceObject   string            // Parquet object the DuckDB source loader reads from, if source batches come from DuckDB rather than Postgres
	ParquetMirrors map[string]string // "schema.table" -> parquet object URI, for the target federated read path
}

// NewTemporalMergerWithConfig constructs a tempora.TemporalMerger wired
// from config: a metadata resolver (catalog-view or file-backed), a
// source batch reader (direct Postgres, or DuckDB over the object named
// by duck.SourceObject when both duck.DB and duck.SourceObject are set),
// a dual-path target slice
// loader, and an L2 plan cache repository.
//
// Usage:
//
// import (
//
//	"github.com/lychee-technology/tempora"
//	"github.com/lychee-technology/tempora/factory"
//
// )
//
// config := tempora.DefaultConfig()
// merger, err := factory.NewTemporalMergerWithConfig(config, pool, factory.EraRegistrySource{EraCatalogView: "temporal_merge_era_catalog"}, factory.DuckDBOptions{})
//
//	if err != nil {
//	   // handle error
//	}
func NewTemporalMergerWithConfig(config *tempora.Config, pool *pgxpool.Pool, eras EraRegistrySource, duck DuckDBOptions) (tempora.TemporalMerger, error) {
	tables, err := tableCollector(pool)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables found in the database")
	}

	resolver, err := buildMetadataResolver(pool, eras)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata resolver: %w", err)
	}

	if duck.DB != nil && internal.GetDuckDBCircuitBreaker() == nil {
		breaker := internal.NewCircuitBreaker(config.Metrics.CircuitBreakerThreshold, config.Metrics.CircuitBreakerWindow, config.Metrics.CircuitBreakerWindow)
		internal.SetGlobalDuckDBCircuitBreaker(breaker)
	}

	var source internal.SourceBatchReader
	if duck.DB != nil && duck.SourceObject != "" {
		zap.S().Infow("using DuckDB-backed source reader", "object", duck.SourceObject)
		loader, err := internal.NewDuckDBSourceLoader(context.Background(), config.DuckDB, duck.SourceObject)
		if err != nil {
			return nil, fmt.Errorf("failed to build duckdb source loader: %w", err)
		}
		source = loader
	} else {
		zap.S().Info("using direct Postgres source reader")
		source = internal.NewPostgresSourceReader(pool)
	}

	target := internal.NewDualPathTargetLoader(pool, duck.DB, duck.ParquetMirrors, config.Planner.TargetSliceRowThreshold)

	var l2 *internal.PostgresPlanCacheRepository
	if config.Cache.L2Table != "" {
		l2 = internal.NewPostgresPlanCacheRepository(pool, config.Cache)
	}

	zap.S().Info("temporal merge engine initialized")
	return internal.NewMergeEngine(pool, resolver, source, target, l2), nil
}

func buildMetadataResolver(pool *pgxpool.Pool, eras EraRegistrySource) (internal.MetadataResolver, error) {
	if eras.EraDirectory != "" {
		zap.S().Infow("using file-backed era registry", "dir", eras.EraDirectory)
		return internal.NewFileEraRegistry(eras.EraDirectory)
	}
	zap.S().Infow("using Postgres era catalog resolver", "view", eras.EraCatalogView)
	return internal.NewPostgresMetadataResolver(pool, eras.EraCatalogView), nil
}
