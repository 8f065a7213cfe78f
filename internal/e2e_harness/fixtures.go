package e2e_harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedTargetDatabase provisions the era catalog and a target history table
// (employee_compensation) with an existing, non-overlapping timeline for
// one entity, then registers the era row a PostgresMetadataResolver reads.
func SeedTargetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS temporal_merge_era_catalog (
  schema_name TEXT, table_name TEXT, era_name TEXT,
  identity_columns TEXT[], lookup_keys TEXT[][], mode TEXT,
  valid_from TEXT, valid_until TEXT, valid_to TEXT, validity TEXT,
  domain TEXT, range_ctor TEXT, ephemeral_columns TEXT[]
);`,
		`CREATE TABLE IF NOT EXISTS employee_compensation (
  ltbase_row_id BIGSERIAL PRIMARY KEY,
  employee_id INTEGER NOT NULL,
  valid_from DATE NOT NULL,
  valid_until DATE NOT NULL,
  salary_cents BIGINT NOT NULL,
  title TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS employee_compensation_src (
  row_id BIGSERIAL PRIMARY KEY,
  founding_id TEXT,
  employee_id INTEGER NOT NULL,
  valid_from DATE NOT NULL,
  valid_until DATE NOT NULL,
  salary_cents BIGINT NOT NULL,
  title TEXT NOT NULL
);`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if _, err := pool.Exec(ctx, `
INSERT INTO temporal_merge_era_catalog
  (schema_name, table_name, era_name, identity_columns, lookup_keys, mode,
   valid_from, valid_until, valid_to, validity, domain, range_ctor, ephemeral_columns)
VALUES ('public', 'employee_compensation', 'valid', ARRAY['employee_id'], ARRAY[ARRAY['employee_id']]::text[][],
        'VALID_TIME', 'valid_from', 'valid_until', 'valid_to', 'range', 'date', 'daterange', ARRAY[]::text[])
ON CONFLICT DO NOTHING;`); err != nil {
		return fmt.Errorf("register era catalog row: %w", err)
	}

	if _, err := pool.Exec(ctx, `
INSERT INTO employee_compensation (employee_id, valid_from, valid_until, salary_cents, title)
VALUES (1, '2024-01-01', '2025-01-01', 9000000, 'Engineer')
ON CONFLICT DO NOTHING;`); err != nil {
		return fmt.Errorf("seed target history: %w", err)
	}
	return nil
}

// WriteSourceParquet exports a source batch (a raise effective mid-timeline,
// forcing a SHRINK+INSERT split against the seeded row) as a Parquet file
// DuckDBSourceLoader reads back in place of a live Postgres source table.
func WriteSourceParquet(ctx context.Context, duck *sql.DB, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	csvPath := filepath.Join(outDir, "source_batch.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString("row_id,founding_id,employee_id,valid_from,valid_until,salary_cents,title\n"); err != nil {
		return "", err
	}
	if _, err := f.WriteString("1,,1,2024-07-01,2025-01-01,9800000,Engineer\n"); err != nil {
		return "", err
	}
	f.Sync()

	ctxExec, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	parquetPath := filepath.Join(outDir, "source_batch.parquet")
	if _, err := duck.ExecContext(ctxExec, fmt.Sprintf(
		"COPY (SELECT * FROM read_csv_auto('%s')) TO '%s' (FORMAT PARQUET);", csvPath, parquetPath)); err != nil {
		return "", fmt.Errorf("export source parquet: %w", err)
	}
	return parquetPath, nil
}

// WriteTargetParquetMirror exports the current employee_compensation table
// to Parquet over the DuckDB postgres_scanner, the same cold-path mirror
// DualPathTargetLoader reads when an entity's full history exceeds the
// configured row threshold.
func WriteTargetParquetMirror(ctx context.Context, duck *sql.DB, pgDSN, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	ctxExec, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := duck.ExecContext(ctxExec, "INSTALL postgres; LOAD postgres;"); err != nil {
		return "", fmt.Errorf("load postgres scanner: %w", err)
	}
	attachStmt := fmt.Sprintf("ATTACH '%s' AS pgsrc (TYPE postgres, READ_ONLY);", pgDSN)
	if _, err := duck.ExecContext(ctxExec, attachStmt); err != nil {
		return "", fmt.Errorf("attach postgres: %w", err)
	}

	parquetPath := filepath.Join(outDir, "employee_compensation_mirror.parquet")
	if _, err := duck.ExecContext(ctxExec, fmt.Sprintf(
		"COPY (SELECT * FROM pgsrc.public.employee_compensation) TO '%s' (FORMAT PARQUET);", parquetPath)); err != nil {
		return "", fmt.Errorf("export target mirror parquet: %w", err)
	}
	return parquetPath, nil
}

// UploadFileToS3 uploads a local file to the harness's S3-compatible store,
// creating the bucket on first use.
func UploadFileToS3(ctx context.Context, endpoint, accessKey, secretKey, bucket, objectName, filePath string) error {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	}
	if endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	uploader := manager.NewUploader(s3Client)

	in, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer in.Close()

	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		if _, cerr := s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); cerr != nil {
			var apiErr smithy.APIError
			if errors.As(cerr, &apiErr) {
				code := apiErr.ErrorCode()
				if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
					return fmt.Errorf("create bucket: %w", cerr)
				}
			} else {
				return fmt.Errorf("create bucket: %w", cerr)
			}
		}
	}

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectName),
		Body:   in,
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}
