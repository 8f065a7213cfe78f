package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lychee-technology/tempora"
	"github.com/lychee-technology/tempora/factory"
)

type options struct {
	host           string
	port           int
	database       string
	user           string
	password       string
	sslMode        string
	targetTable    string
	sourceTable    string
	eraCatalogView string
	entityCount    int
	rowsPerEntity  int
	chunkSize      int
	iterations     int
	seed           int64
	seedProvided   bool
	purge          bool
}

type syntheticRow struct {
	EmployeeID string
	ValidFrom  time.Time
	ValidUntil time.Time
	Name       string
	Department string
	Salary     int
}

func main() {
	log.SetFlags(0)

	opts := parseFlags()
	ctx := context.Background()

	connString := buildConnString(opts)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		log.Fatalf("failed to create connection pool: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		log.Fatalf("failed to acquire connection: %v", err)
	}

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		return ensureTables(ctx, tx, opts)
	}); err != nil {
		conn.Release()
		log.Fatalf("failed to initialize tables: %v", err)
	}

	if opts.purge {
		if err := withTx(ctx, conn, func(tx pgx.Tx) error {
			return purgeTables(ctx, tx, opts)
		}); err != nil {
			conn.Release()
			log.Fatalf("failed to purge existing data: %v", err)
		}
	}

	if !opts.seedProvided {
		log.Printf("[info] Using random seed %d", opts.seed)
	}
	random := rand.New(rand.NewSource(opts.seed))

	targetRows, sourceRows := generateRows(random, opts.entityCount, opts.rowsPerEntity)

	if err := copyRowsInChunks(ctx, conn, opts.targetTable, targetRows, opts.chunkSize); err != nil {
		conn.Release()
		log.Fatalf("failed to seed target table: %v", err)
	}
	if err := copyRowsInChunks(ctx, conn, opts.sourceTable, sourceRows, opts.chunkSize); err != nil {
		conn.Release()
		log.Fatalf("failed to seed source table: %v", err)
	}
	conn.Release()

	log.Printf("[info] seeded %d target rows, %d source rows", len(targetRows), len(sourceRows))

	config := tempora.DefaultConfig()
	merger, err := factory.NewTemporalMergerWithConfig(
		config,
		pool,
		factory.EraRegistrySource{EraCatalogView: opts.eraCatalogView},
		factory.DuckDBOptions{},
	)
	if err != nil {
		log.Fatalf("failed to initialize temporal merger: %v", err)
	}

	req := &tempora.MergeRequest{
		TargetTable:     tempora.TableIdentity{Schema: "public", Table: opts.targetTable},
		SourceTable:     tempora.TableIdentity{Schema: "public", Table: opts.sourceTable},
		IdentityColumns: []string{"employee_id"},
		Mode:            tempora.ModeMergeEntityUpsert,
		EraName:         "valid",
		RowIDColumn:     "row_id",
	}

	var totalOps int
	start := time.Now()
	for i := 0; i < opts.iterations; i++ {
		ops, err := merger.PlanOnly(ctx, req)
		if err != nil {
			log.Fatalf("plan iteration %d failed: %v", i, err)
		}
		totalOps += len(ops)
	}
	elapsed := time.Since(start)

	log.Println("[success] Benchmark complete:")
	log.Printf("  - iterations:        %d", opts.iterations)
	log.Printf("  - source rows:       %d", len(sourceRows))
	log.Printf("  - total plan ops:    %d", totalOps)
	log.Printf("  - elapsed:           %s", elapsed)
	if elapsed > 0 {
		log.Printf("  - plans/sec:         %.2f", float64(opts.iterations)/elapsed.Seconds())
		log.Printf("  - source rows/sec:   %.2f", float64(opts.iterations*len(sourceRows))/elapsed.Seconds())
	}
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flag.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flag.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", "tempora"), "database name")
	flag.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flag.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flag.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	flag.StringVar(&opts.targetTable, "target-table", getenvDefault("BENCHMARK_TARGET_TABLE", "benchmark_employees"), "bitemporal target table")
	flag.StringVar(&opts.sourceTable, "source-table", getenvDefault("BENCHMARK_SOURCE_TABLE", "benchmark_employees_src"), "source staging table")
	flag.StringVar(&opts.eraCatalogView, "era-catalog-table", getenvDefault("ERA_CATALOG_VIEW", "temporal_merge_era_catalog"), "era catalog table name")
	flag.IntVar(&opts.entityCount, "entities", 10_000, "number of distinct business entities to generate")
	flag.IntVar(&opts.rowsPerEntity, "rows-per-entity", 3, "number of timeline segments per entity")
	flag.IntVar(&opts.chunkSize, "chunk-size", 5000, "number of rows to COPY per batch")
	flag.IntVar(&opts.iterations, "iterations", 20, "number of PlanOnly calls to time")
	flag.BoolVar(&opts.purge, "purge", true, "truncate target/source tables before seeding")
	seed := flag.Int64("seed", 0, "random seed (0 uses current time)")

	flag.Parse()

	if *seed == 0 {
		opts.seed = time.Now().UnixNano()
		opts.seedProvided = false
	} else {
		opts.seed = *seed
		opts.seedProvided = true
	}

	if opts.entityCount < 0 || opts.rowsPerEntity < 1 {
		log.Fatal("entities must be non-negative and rows-per-entity must be at least 1")
	}

	return opts
}

func buildConnString(opts options) string {
	hostPort := fmt.Sprintf("%s:%d", opts.host, opts.port)

	var userInfo *url.Userinfo
	if opts.password != "" {
		userInfo = url.UserPassword(opts.user, opts.password)
	} else {
		userInfo = url.User(opts.user)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   hostPort,
		Path:   "/" + opts.database,
	}

	q := u.Query()
	if opts.sslMode != "" {
		q.Set("sslmode", opts.sslMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func withTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ensureTables provisions a bitemporal target table and its source staging
// table, and registers the target table with the era catalog the planner
// reads through internal.PostgresMetadataResolver.
func ensureTables(ctx context.Context, tx pgx.Tx, opts options) error {
	target := quoteIdentifier(opts.targetTable)
	source := quoteIdentifier(opts.sourceTable)
	eraCatalog := quoteIdentifier(opts.eraCatalogView)

	ddlTarget := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		row_id         BIGSERIAL PRIMARY KEY,
		employee_id    TEXT NOT NULL,
		valid_from     TIMESTAMPTZ NOT NULL,
		valid_until    TIMESTAMPTZ NOT NULL,
		name           TEXT NOT NULL,
		department     TEXT NOT NULL,
		salary         INTEGER NOT NULL
	)`, target)
	if _, err := tx.Exec(ctx, ddlTarget); err != nil {
		return fmt.Errorf("ensure target table: %w", err)
	}
	fmt.Printf("Created %s\n", opts.targetTable)

	ddlSource := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		row_id         BIGSERIAL PRIMARY KEY,
		employee_id    TEXT NOT NULL,
		valid_from     TIMESTAMPTZ NOT NULL,
		valid_until    TIMESTAMPTZ NOT NULL,
		name           TEXT NOT NULL,
		department     TEXT NOT NULL,
		salary         INTEGER NOT NULL
	)`, source)
	if _, err := tx.Exec(ctx, ddlSource); err != nil {
		return fmt.Errorf("ensure source table: %w", err)
	}
	fmt.Printf("Created %s\n", opts.sourceTable)

	idxTarget := quoteIdentifier(makeIndexName(opts.targetTable, "employee_id"))
	createIdxTarget := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (employee_id)`, idxTarget, target)
	if _, err := tx.Exec(ctx, createIdxTarget); err != nil {
		return fmt.Errorf("create target employee_id index: %w", err)
	}

	registerEra := fmt.Sprintf(`INSERT INTO %s
		(schema_name, table_name, era_name, identity_columns, lookup_keys, mode,
		 valid_from, valid_until, valid_to, validity, domain, range_ctor, ephemeral_columns)
		VALUES ('public', $1, 'valid', ARRAY['employee_id'], '{}', 'MERGE_ENTITY_UPSERT',
		        'valid_from', 'valid_until', '', '', 'timestamptz', '', '{}')
		ON CONFLICT (schema_name, table_name, era_name) DO NOTHING`, eraCatalog)
	if _, err := tx.Exec(ctx, registerEra, opts.targetTable); err != nil {
		return fmt.Errorf("register era catalog row: %w", err)
	}

	return nil
}

func purgeTables(ctx context.Context, tx pgx.Tx, opts options) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, quoteIdentifier(opts.targetTable))); err != nil {
		return fmt.Errorf("truncate target table: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, quoteIdentifier(opts.sourceTable))); err != nil {
		return fmt.Errorf("truncate source table: %w", err)
	}
	return nil
}

// generateRows builds a target timeline per entity and a source timeline
// that overlaps it, so PlanOnly has real SHRINK/MOVE/GROW work to classify.
func generateRows(r *rand.Rand, entityCount, rowsPerEntity int) (target, source []syntheticRow) {
	departments := []string{"engineering", "sales", "support", "finance", "operations"}
	names := []string{"Alex Kim", "Taylor Suzuki", "Jordan Watanabe", "Morgan Sato", "Casey Tanaka"}

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	target = make([]syntheticRow, 0, entityCount*rowsPerEntity)
	source = make([]syntheticRow, 0, entityCount*rowsPerEntity)

	for e := 0; e < entityCount; e++ {
		employeeID := fmt.Sprintf("emp-%06d", e)
		cursor := base.AddDate(0, r.Intn(12), 0)

		for s := 0; s < rowsPerEntity; s++ {
			segmentDays := 30 + r.Intn(120)
			validFrom := cursor
			validUntil := cursor.AddDate(0, 0, segmentDays)

			target = append(target, syntheticRow{
				EmployeeID: employeeID,
				ValidFrom:  validFrom,
				ValidUntil: validUntil,
				Name:       names[r.Intn(len(names))],
				Department: departments[r.Intn(len(departments))],
				Salary:     4_000_000 + r.Intn(4_000_000),
			})

			// the source row shifts valid_until forward, forcing a GROW/MOVE
			// reclassification against the matching target segment.
			source = append(source, syntheticRow{
				EmployeeID: employeeID,
				ValidFrom:  validFrom,
				ValidUntil: validUntil.AddDate(0, 0, r.Intn(30)),
				Name:       names[r.Intn(len(names))],
				Department: departments[r.Intn(len(departments))],
				Salary:     4_000_000 + r.Intn(4_000_000),
			})

			cursor = validUntil
		}
	}

	return target, source
}

func copyRowsInChunks(ctx context.Context, conn *pgxpool.Conn, table string, rows []syntheticRow, chunkSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = len(rows)
	}

	tableIdent := pgx.Identifier(splitIdentifier(table))
	columns := []string{"employee_id", "valid_from", "valid_until", "name", "department", "salary"}

	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := make([][]any, end-start)
		for i := start; i < end; i++ {
			row := rows[i]
			batch[i-start] = []any{row.EmployeeID, row.ValidFrom, row.ValidUntil, row.Name, row.Department, row.Salary}
		}

		if err := withTx(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.CopyFrom(ctx, tableIdent, columns, pgx.CopyFromRows(batch)); err != nil {
				return fmt.Errorf("copy into %s: %w", table, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	return nil
}

func quoteIdentifier(name string) string {
	return pgx.Identifier(splitIdentifier(name)).Sanitize()
}

func splitIdentifier(name string) []string {
	parts := strings.Split(name, ".")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return []string{name}
	}
	return result
}

func makeIndexName(table string, suffix string) string {
	base := strings.ReplaceAll(table, ".", "_")
	base = strings.ReplaceAll(base, `"`, "")
	return fmt.Sprintf("%s_%s_idx", base, suffix)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
