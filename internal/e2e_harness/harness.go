package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tempora"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestHarness holds the containerized dependencies an end-to-end merge run
// exercises: a real Postgres target/source database, an S3-compatible
// object store for the Parquet mirror, and an in-process DuckDB handle
// that reads from it — the same dual-path wiring factory.NewTemporalMergerWithConfig
// builds in production, stood up against real services instead of mocks.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	Pool        *pgxpool.Pool
	S3Container testcontainers.Container
	S3Endpoint  string
	Duck        *sql.DB
}

// StartPostgres starts a postgres container and opens a pgxpool against it.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	h.PGContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	dsn := fmt.Sprintf("postgres://postgres:password@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	h.PGDSN = dsn

	deadline := time.Now().Add(20 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, dsn)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				h.Pool = pool
				return dsn, nil
			}
			pool.Close()
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StopPostgres stops the Postgres container and closes the pool.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.Pool != nil {
		h.Pool.Close()
		h.Pool = nil
	}
	if h.PGContainer != nil {
		if err := h.PGContainer.Terminate(ctx); err != nil {
			return err
		}
		h.PGContainer = nil
	}
	return nil
}

// StartS3 starts an S3-compatible object store container and returns its endpoint.
func (h *TestHarness) StartS3(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": "minio",
			"RUSTFS_SECRET_KEY": "minio",
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	h.S3Container = container
	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, "9000")
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("http://%s:%s", host, mapped.Port())
	h.S3Endpoint = endpoint
	return endpoint, nil
}

// StopS3 stops the object store container.
func (h *TestHarness) StopS3(ctx context.Context) error {
	if h.S3Container != nil {
		if err := h.S3Container.Terminate(ctx); err != nil {
			return err
		}
		h.S3Container = nil
	}
	return nil
}

// StartDuckDB opens an in-process DuckDB handle configured per cfg — the
// same configuration shape NewDuckDBSourceLoader and the dual-path target
// loader consume in production.
func (h *TestHarness) StartDuckDB(ctx context.Context, cfg tempora.DuckDBConfig) error {
	dsn := cfg.DBPath
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	if cfg.EnableS3 {
		if _, err := db.ExecContext(ctx, "INSTALL httpfs; LOAD httpfs;"); err != nil {
			return fmt.Errorf("load httpfs: %w", err)
		}
		if cfg.S3Endpoint != "" {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("SET s3_endpoint='%s';", cfg.S3Endpoint)); err != nil {
				return fmt.Errorf("set s3_endpoint: %w", err)
			}
			if _, err := db.ExecContext(ctx, "SET s3_url_style='path';"); err != nil {
				return fmt.Errorf("set s3_url_style: %w", err)
			}
			if _, err := db.ExecContext(ctx, "SET s3_use_ssl=false;"); err != nil {
				return fmt.Errorf("set s3_use_ssl: %w", err)
			}
		}
		if cfg.S3AccessKey != "" {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("SET s3_access_key_id='%s';", cfg.S3AccessKey)); err != nil {
				return fmt.Errorf("set s3_access_key_id: %w", err)
			}
		}
		if cfg.S3SecretKey != "" {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("SET s3_secret_access_key='%s';", cfg.S3SecretKey)); err != nil {
				return fmt.Errorf("set s3_secret_access_key: %w", err)
			}
		}
	}
	if cfg.EnableParquet {
		if _, err := db.ExecContext(ctx, "INSTALL parquet; LOAD parquet;"); err != nil {
			return fmt.Errorf("load parquet: %w", err)
		}
	}
	h.Duck = db
	return nil
}

// StopDuckDB closes the duckdb handle.
func (h *TestHarness) StopDuckDB() error {
	if h.Duck != nil {
		if err := h.Duck.Close(); err != nil {
			return err
		}
		h.Duck = nil
	}
	return nil
}
