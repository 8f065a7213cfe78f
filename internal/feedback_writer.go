package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/tempora"
)

// WriteFeedback persists the per-source-row outcome back onto the source
// table's status column, one UPDATE per feedback row keyed by the source
// table's row id column, per §4.9's "column update on the source"
// feedback channel. Passing a side table as source, with
// statusColumn/rowIDColumn naming its columns, writes there instead.
func WriteFeedback(ctx context.Context, tx pgx.Tx, source tempora.TableIdentity, rowIDColumn, statusColumn string, rows []tempora.FeedbackRow) error {
	if statusColumn == "" || len(rows) == 0 {
		return nil
	}

	for _, fr := range rows {
		query := fmt.Sprintf("UPDATE %s.%s SET %s = $1 WHERE %s = $2",
			pgx.Identifier{source.Schema}.Sanitize(), pgx.Identifier{source.Table}.Sanitize(),
			pgx.Identifier{statusColumn}.Sanitize(), pgx.Identifier{rowIDColumn}.Sanitize())
		if _, err := tx.Exec(ctx, query, string(fr.Status), fr.SourceRowID); err != nil {
			return tempora.NewExecutionError(fmt.Sprintf("write feedback for source row_id=%d", fr.SourceRowID), err)
		}
	}

	return nil
}
