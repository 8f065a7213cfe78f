package internal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tempora"
)

// DualPathTargetLoader routes the per-entity target-slice read between a
// direct pgx range-overlap query (hot path) and a DuckDB federated query
// over a read-only Parquet mirror of the target table (cold path), picked
// per-entity by an estimated row-count threshold — the same cost-based
// routing judgment the teacher's main-table-vs-EAV query path makes, here
// repurposed as live-Postgres-vs-DuckDB-mirror routing.
type DualPathTargetLoader struct {
	pool           *pgxpool.Pool
	duck           *sql.DB // optional; nil disables the federated path
	parquetMirrors map[string]string // "schema.table" -> parquet object URI
	rowThreshold   int
}

func NewDualPathTargetLoader(pool *pgxpool.Pool, duck *sql.DB, parquetMirrors map[string]string, rowThreshold int) *DualPathTargetLoader {
	return &DualPathTargetLoader{pool: pool, duck: duck, parquetMirrors: parquetMirrors, rowThreshold: rowThreshold}
}

// LookupEntity checks whether an entity exists for the given lookup column
// values, returning its full identity-column projection if so.
func (l *DualPathTargetLoader) LookupEntity(ctx context.Context, era *tempora.EraDescriptor, lookup map[string]any) (map[string]any, bool, error) {
	where, args := buildLookupWhere(lookup, 1)
	query := fmt.Sprintf(`SELECT %s FROM %s.%s WHERE %s LIMIT 1`,
		projectColumns(era.Identity), pgx.Identifier{era.Schema}.Sanitize(), pgx.Identifier{era.Table}.Sanitize(), where)

	row := l.pool.QueryRow(ctx, query, args...)
	vals := make([]any, len(era.Identity))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, tempora.NewExecutionError("lookup entity", err)
	}

	identity := make(map[string]any, len(era.Identity))
	for i, c := range era.Identity {
		identity[c] = vals[i]
	}
	return identity, true, nil
}

// LoadSlice retrieves every target row of the entity identified by
// identity, choosing the read path by an estimated row-count for the
// entity's full history. union does not narrow the read: both paths return
// the entity's whole history, not only the rows overlapping union.
func (l *DualPathTargetLoader) LoadSlice(ctx context.Context, era *tempora.EraDescriptor, identity map[string]any, union tempora.Interval) ([]tempora.TargetRow, error) {
	useFederated := false
	breaker := GetDuckDBCircuitBreaker()
	if l.duck != nil && !breaker.IsOpen() {
		if n, err := l.estimateEntityRowCount(ctx, era, identity); err == nil && n > l.rowThreshold {
			useFederated = true
		}
	}

	if useFederated {
		start := time.Now()
		rows, scanned, err := l.loadSliceDuckDB(ctx, era, identity, union)
		EmitLatency(ctx, "duckdb_target_slice", time.Since(start).Milliseconds())
		if err == nil {
			breaker.RecordSuccess()
			EmitRowCount(ctx, "duckdb", int64(len(rows)))
			if scanned > 0 {
				EmitPushdownEfficiency(ctx, era.Schema+"."+era.Table, float64(len(rows))/float64(scanned))
			}
			return rows, nil
		}
		breaker.RecordFailure()
		// fall through to the direct path on federated-read failure
	}

	start := time.Now()
	rows, err := l.loadSlicePostgres(ctx, era, identity, union)
	EmitLatency(ctx, "postgres_target_slice", time.Since(start).Milliseconds())
	if err == nil {
		EmitRowCount(ctx, "pg", int64(len(rows)))
	}
	return rows, err
}

func (l *DualPathTargetLoader) estimateEntityRowCount(ctx context.Context, era *tempora.EraDescriptor, identity map[string]any) (int, error) {
	where, args := buildLookupWhere(identity, 1)
	query := fmt.Sprintf(`SELECT count(*) FROM %s.%s WHERE %s`,
		pgx.Identifier{era.Schema}.Sanitize(), pgx.Identifier{era.Table}.Sanitize(), where)
	var n int
	if err := l.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (l *DualPathTargetLoader) loadSlicePostgres(ctx context.Context, era *tempora.EraDescriptor, identity map[string]any, union tempora.Interval) ([]tempora.TargetRow, error) {
	where, args := buildLookupWhere(identity, 1)
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s FROM %s.%s WHERE %s ORDER BY %s`,
		pgx.Identifier{"ltbase_row_id"}.Sanitize(), projectColumns(era.Identity),
		pgx.Identifier{era.ValidFrom}.Sanitize(), pgx.Identifier{era.ValidUntil}.Sanitize(),
		pgx.Identifier{era.Schema}.Sanitize(), pgx.Identifier{era.Table}.Sanitize(),
		where, pgx.Identifier{era.ValidFrom}.Sanitize())

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, tempora.NewExecutionError("load target slice", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []tempora.TargetRow
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, tempora.NewExecutionError("scan target row", err)
		}
		cols := make(map[string]any, len(fields))
		for i, f := range fields {
			cols[string(f.Name)] = vals[i]
		}
		tr, err := rowToTargetRow(era, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// loadSliceDuckDB scans the full Parquet mirror and filters by identity
// in-process — read_parquet carries no index, so every row of the mirror
// is scanned regardless of how selective identity is. scanned is the total
// row count read off the mirror, used to report pushdown efficiency.
func (l *DualPathTargetLoader) loadSliceDuckDB(ctx context.Context, era *tempora.EraDescriptor, identity map[string]any, union tempora.Interval) ([]tempora.TargetRow, int, error) {
	object, ok := l.parquetMirrors[era.Schema+"."+era.Table]
	if !ok {
		return nil, 0, tempora.NewInternalError("no parquet mirror registered for "+era.Schema+"."+era.Table, nil)
	}
	query := fmt.Sprintf("SELECT * FROM read_parquet('%s')", object)
	rows, err := l.duck.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, tempora.NewExecutionError("duckdb load target slice", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, tempora.NewExecutionError("duckdb read column names", err)
	}

	scanned := 0
	var out []tempora.TargetRow
	for rows.Next() {
		scanned++
		vals := make([]any, len(cols))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, scanned, tempora.NewExecutionError("duckdb scan target row", err)
		}
		colMap := make(map[string]any, len(cols))
		for i, c := range cols {
			colMap[c] = vals[i]
		}

		match := true
		for k, v := range identity {
			if fmt.Sprintf("%v", colMap[k]) != fmt.Sprintf("%v", v) {
				match = false
				break
			}
		}
		if !match {
			continue
		}

		tr, err := rowToTargetRow(era, colMap)
		if err != nil {
			return nil, scanned, err
		}
		out = append(out, tr)
	}
	return out, scanned, rows.Err()
}

func buildLookupWhere(cols map[string]any, paramStart int) (string, []any) {
	where := ""
	args := make([]any, 0, len(cols))
	i := paramStart
	first := true
	for c, v := range cols {
		if !first {
			where += " AND "
		}
		where += fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i)
		args = append(args, v)
		i++
		first = false
	}
	if where == "" {
		where = "true"
	}
	return where, args
}

func projectColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += pgx.Identifier{c}.Sanitize()
	}
	return out
}

func rowToTargetRow(era *tempora.EraDescriptor, cols map[string]any) (tempora.TargetRow, error) {
	identity := make(map[string]any, len(era.Identity))
	for _, c := range era.Identity {
		identity[c] = cols[c]
	}
	payload := make(map[string]any, len(cols))
	for k, v := range cols {
		if k == era.ValidFrom || k == era.ValidUntil || k == "ltbase_row_id" {
			continue
		}
		if isIdentityColumn(era, k) {
			continue
		}
		payload[k] = v
	}

	return tempora.TargetRow{
		RowID:    uuid.New(),
		Identity: identity,
		Interval: tempora.Interval{
			From:  tempora.FiniteBound(cols[era.ValidFrom]),
			Until: tempora.FiniteBound(cols[era.ValidUntil]),
		},
		Payload: payload,
	}, nil
}

func isIdentityColumn(era *tempora.EraDescriptor, col string) bool {
	for _, c := range era.Identity {
		if c == col {
			return true
		}
	}
	return false
}
