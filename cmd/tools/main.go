package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lychee-technology/tempora"
	"github.com/lychee-technology/tempora/factory"
)

func main() {
	log := fmt.Println
	_ = log

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init-db":
		if err := runInitDB(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "init-db: %v\n", err)
			os.Exit(1)
		}
	case "planexplain":
		if err := runPlanExplain(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "planexplain: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: tempora-tools <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init-db       Create the era catalog and plan cache tables")
	fmt.Println("  planexplain   Run the planner against a merge request and print the plan, without executing it")
}

// --- init-db ---

type initDBOptions struct {
	host           string
	port           int
	database       string
	user           string
	password       string
	sslMode        string
	eraCatalogView string
	planCacheTable string
}

func runInitDB(args []string) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: tempora-tools init-db [options]")
		fmt.Println()
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := initDBOptions{}
	flags.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flags.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flags.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", "tempora"), "database name")
	flags.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	flags.StringVar(&opts.eraCatalogView, "era-catalog-table", getenvDefault("ERA_CATALOG_VIEW", "temporal_merge_era_catalog"), "era catalog table name")
	flags.StringVar(&opts.planCacheTable, "plan-cache-table", getenvDefault("PLAN_CACHE_TABLE", "temporal_merge_plan_cache"), "L2 plan cache table name")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return initDatabase(opts)
}

func initDatabase(opts initDBOptions) error {
	ctx := context.Background()

	connString := buildConnString(opts)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		return ensureTables(ctx, tx, opts)
	}); err != nil {
		return err
	}

	fmt.Println("Database initialized successfully.")
	return nil
}

func buildConnString(opts initDBOptions) string {
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

	q := url.Values{}
	if opts.sslMode != "" {
		q.Set("sslmode", opts.sslMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// ensureTables provisions the era catalog (the table a deployment curates by
// hand, one row per (schema, table, era_name) its PostgresMetadataResolver
// queries) and the L2 plan cache table.
func ensureTables(ctx context.Context, tx pgx.Tx, opts initDBOptions) error {
	eraCatalog := quoteIdentifier(opts.eraCatalogView)
	planCache := quoteIdentifier(opts.planCacheTable)

	ddlEraCatalog := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		schema_name        TEXT NOT NULL,
		table_name         TEXT NOT NULL,
		era_name           TEXT NOT NULL,
		identity_columns   TEXT[] NOT NULL,
		lookup_keys        TEXT[][] NOT NULL DEFAULT '{}',
		mode               TEXT NOT NULL,
		valid_from         TEXT NOT NULL,
		valid_until        TEXT NOT NULL,
		valid_to           TEXT NOT NULL DEFAULT '',
		validity           TEXT NOT NULL DEFAULT '',
		domain             TEXT NOT NULL,
		range_ctor         TEXT NOT NULL DEFAULT '',
		ephemeral_columns  TEXT[] NOT NULL DEFAULT '{}',
		PRIMARY KEY (schema_name, table_name, era_name)
	)`, eraCatalog)

	if _, err := tx.Exec(ctx, ddlEraCatalog); err != nil {
		return fmt.Errorf("ensure era catalog table: %w", err)
	}
	fmt.Printf("Created %s\n", opts.eraCatalogView)

	ddlPlanCache := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		cache_key            TEXT PRIMARY KEY,
		source_columns_hash  TEXT NOT NULL,
		plan_sqls            BYTEA NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL,
		last_used_at         TIMESTAMPTZ NOT NULL,
		use_count            BIGINT NOT NULL DEFAULT 0
	)`, planCache)

	if _, err := tx.Exec(ctx, ddlPlanCache); err != nil {
		return fmt.Errorf("ensure plan cache table: %w", err)
	}
	fmt.Printf("Created %s\n", opts.planCacheTable)

	idxLRU := quoteIdentifier(makeIndexName(opts.planCacheTable, "last_used_at"))
	createIdxLRU := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (last_used_at)`, idxLRU, planCache)
	if _, err := tx.Exec(ctx, createIdxLRU); err != nil {
		return fmt.Errorf("create plan cache lru index: %w", err)
	}

	return nil
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

// --- planexplain ---

type planExplainRequest struct {
	TargetSchema     string     `json:"target_schema"`
	TargetTable      string     `json:"target_table"`
	SourceSchema     string     `json:"source_schema"`
	SourceTable      string     `json:"source_table"`
	IdentityColumns  []string   `json:"identity_columns"`
	Mode             string     `json:"mode"`
	EraName          string     `json:"era_name"`
	RowIDColumn      string     `json:"row_id_column"`
	FoundingIDColumn string     `json:"founding_id_column"`
	DeleteMode       string     `json:"delete_mode"`
	LookupKeys       [][]string `json:"lookup_keys"`
	EphemeralColumns []string   `json:"ephemeral_columns"`
}

func runPlanExplain(args []string) error {
	flags := flag.NewFlagSet("planexplain", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: tempora-tools planexplain -request <path-to-json>")
	}

	requestPath := flags.String("request", "", "path to a JSON-encoded merge request")
	dbHost := flags.String("db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	dbPort := flags.Int("db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	dbName := flags.String("db-name", getenvDefault("DB_NAME", "tempora"), "database name")
	dbUser := flags.String("db-user", getenvDefault("DB_USER", "postgres"), "database user")
	dbPassword := flags.String("db-password", getenvDefault("DB_PASSWORD", ""), "database password")
	dbSSLMode := flags.String("db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	eraCatalogView := flags.String("era-catalog-table", getenvDefault("ERA_CATALOG_VIEW", "temporal_merge_era_catalog"), "era catalog table name")
	eraDir := flags.String("era-dir", os.Getenv("ERA_DIRECTORY"), "era descriptor directory (overrides era-catalog-table)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *requestPath == "" {
		return fmt.Errorf("-request is required")
	}

	raw, err := os.ReadFile(*requestPath)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}

	var reqPayload planExplainRequest
	if err := json.Unmarshal(raw, &reqPayload); err != nil {
		return fmt.Errorf("parse request JSON: %w", err)
	}

	req := &tempora.MergeRequest{
		TargetTable:      tempora.TableIdentity{Schema: reqPayload.TargetSchema, Table: reqPayload.TargetTable},
		SourceTable:      tempora.TableIdentity{Schema: reqPayload.SourceSchema, Table: reqPayload.SourceTable},
		IdentityColumns:  reqPayload.IdentityColumns,
		Mode:             tempora.MergeMode(reqPayload.Mode),
		EraName:          reqPayload.EraName,
		RowIDColumn:      reqPayload.RowIDColumn,
		FoundingIDColumn: reqPayload.FoundingIDColumn,
		DeleteMode:       tempora.DeleteMode(reqPayload.DeleteMode),
		LookupKeys:       reqPayload.LookupKeys,
		EphemeralColumns: reqPayload.EphemeralColumns,
	}

	connString := buildConnString(initDBOptions{host: *dbHost, port: *dbPort, database: *dbName, user: *dbUser, password: *dbPassword, sslMode: *dbSSLMode})
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	config := tempora.DefaultConfig()
	merger, err := factory.NewTemporalMergerWithConfig(
		config,
		pool,
		factory.EraRegistrySource{EraCatalogView: *eraCatalogView, EraDirectory: *eraDir},
		factory.DuckDBOptions{},
	)
	if err != nil {
		return fmt.Errorf("initialize temporal merger: %w", err)
	}

	ops, err := merger.PlanOnly(ctx, req)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	encoded, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	fmt.Println(string(encoded))
	return nil
}
