package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tempora"
)

// PostgresSourceReader reads the source batch directly from a live
// Postgres table via pgx.
type PostgresSourceReader struct {
	pool *pgxpool.Pool
}

func NewPostgresSourceReader(pool *pgxpool.Pool) *PostgresSourceReader {
	return &PostgresSourceReader{pool: pool}
}

func (s *PostgresSourceReader) ReadBatch(ctx context.Context, table tempora.TableIdentity, rowIDColumn, foundingIDColumn string) ([]rawSourceRow, error) {
	query := fmt.Sprintf(`SELECT * FROM %s.%s ORDER BY %s`, pgx.Identifier{table.Schema}.Sanitize(), pgx.Identifier{table.Table}.Sanitize(), pgx.Identifier{rowIDColumn}.Sanitize())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, tempora.NewExecutionError("read source batch", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []rawSourceRow
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, tempora.NewExecutionError("scan source row", err)
		}

		cols := make(map[string]any, len(fields))
		for i, f := range fields {
			cols[string(f.Name)] = vals[i]
		}

		var rowID int64
		if v, ok := cols[rowIDColumn].(int64); ok {
			rowID = v
		} else if v, ok := cols[rowIDColumn].(int32); ok {
			rowID = int64(v)
		}

		var foundingID string
		if foundingIDColumn != "" {
			if v, ok := cols[foundingIDColumn].(string); ok {
				foundingID = v
			}
		}

		out = append(out, rawSourceRow{RowID: rowID, FoundingID: foundingID, Columns: cols})
	}
	if err := rows.Err(); err != nil {
		return nil, tempora.NewExecutionError("iterate source batch", err)
	}

	return out, nil
}
