package factory

import (
	"testing"

	"github.com/lychee-technology/tempora"
	"github.com/lychee-technology/tempora/internal"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectTablesFromPool_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT table_name FROM information_schema.tables`).WillReturnError(assert.AnError)

	_, err = collectTablesFromPool(mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to verify database connection")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectTablesFromPool_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"table_name"}).
		AddRow("employee_compensation").
		AddRow("temporal_merge_era_catalog")
	mock.ExpectQuery(`SELECT table_name FROM information_schema.tables`).WillReturnRows(rows)

	tables, err := collectTablesFromPool(mock)
	require.NoError(t, err)
	assert.Contains(t, tables, "employee_compensation")
	assert.Contains(t, tables, "temporal_merge_era_catalog")
	require.NoError(t, mock.ExpectationsWereMet())
}

func withTableCollector(t *testing.T, collector func(queryPool) ([]string, error)) {
	t.Helper()
	original := tableCollector
	tableCollector = collector
	t.Cleanup(func() {
		tableCollector = original
	})
}

func TestBuildMetadataResolver_PrefersEraDirectory(t *testing.T) {
	// When EraDirectory is set it must win over EraCatalogView, matching
	// buildMetadataResolver's documented precedence. A nil pool is safe here:
	// the file-backed registry never touches it.
	dir := t.TempDir()
	resolver, err := buildMetadataResolver(nil, EraRegistrySource{EraCatalogView: "temporal_merge_era_catalog", EraDirectory: dir})
	require.NoError(t, err)
	require.NotNil(t, resolver)
	require.IsType(t, &internal.FileEraRegistry{}, resolver)
}

func TestBuildMetadataResolver_FallsBackToCatalogView(t *testing.T) {
	// NewPostgresMetadataResolver only stores the pool; it issues no query
	// until Resolve is called, so a nil pool is safe for this constructor check.
	resolver, err := buildMetadataResolver(nil, EraRegistrySource{EraCatalogView: "temporal_merge_era_catalog"})
	require.NoError(t, err)
	require.NotNil(t, resolver)
	require.IsType(t, &internal.PostgresMetadataResolver{}, resolver)
}

func TestNewTemporalMergerWithConfig_PropagatesTableCollectorError(t *testing.T) {
	withTableCollector(t, func(queryPool) ([]string, error) {
		return nil, assert.AnError
	})

	_, err := NewTemporalMergerWithConfig(tempora.DefaultConfig(), nil, EraRegistrySource{}, DuckDBOptions{})
	require.Error(t, err)
}

func TestNewTemporalMergerWithConfig_NoTablesFound(t *testing.T) {
	withTableCollector(t, func(queryPool) ([]string, error) {
		return nil, nil
	})

	_, err := NewTemporalMergerWithConfig(tempora.DefaultConfig(), nil, EraRegistrySource{}, DuckDBOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables found")
}

func TestNewTemporalMergerWithConfig_BuildsDirectPostgresSourceByDefault(t *testing.T) {
	withTableCollector(t, func(queryPool) ([]string, error) {
		return []string{"employee_compensation"}, nil
	})

	merger, err := NewTemporalMergerWithConfig(tempora.DefaultConfig(), nil, EraRegistrySource{EraCatalogView: "temporal_merge_era_catalog"}, DuckDBOptions{})
	require.NoError(t, err)
	require.NotNil(t, merger)
}

func TestNewTemporalMergerWithConfig_RequiresDuckOptionsForSourceObject(t *testing.T) {
	// A SourceObject with no duck.DB set isn't enough to route to the
	// DuckDB-backed source reader; factory falls back to direct Postgres.
	withTableCollector(t, func(queryPool) ([]string, error) {
		return []string{"employee_compensation"}, nil
	})

	merger, err := NewTemporalMergerWithConfig(tempora.DefaultConfig(), nil, EraRegistrySource{EraCatalogView: "temporal_merge_era_catalog"},
		DuckDBOptions{SourceObject: "s3://bucket/batch.parquet"})
	require.NoError(t, err)
	require.NotNil(t, merger)
}
