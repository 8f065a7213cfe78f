package internal

import (
	"context"
	"fmt"

	"github.com/lychee-technology/tempora"
)

// SourceBatchReader fetches the raw source rows for a merge call. The
// Postgres and DuckDB backends both satisfy this interface; the ingestor
// itself is backend-agnostic.
type SourceBatchReader interface {
	ReadBatch(ctx context.Context, table tempora.TableIdentity, rowIDColumn, foundingIDColumn string) ([]rawSourceRow, error)
}

// rawSourceRow is what a SourceBatchReader produces before the ingestor
// resolves its interval: a column-name-to-value map plus the well-known
// row/founding id columns.
type rawSourceRow struct {
	RowID      int64
	FoundingID string
	Columns    map[string]any
}

// IngestBatch validates and normalizes raw rows into tempora.SourceRow,
// deriving valid_until from valid_to on discrete domains when needed.
func IngestBatch(era *tempora.EraDescriptor, rows []rawSourceRow) ([]tempora.SourceRow, []tempora.OperationError) {
	out := make([]tempora.SourceRow, 0, len(rows))
	var errs []tempora.OperationError

	binding := era.ColumnBinding()

	for _, r := range rows {
		iv, err := resolveRowInterval(era, binding, r)
		if err != nil {
			errs = append(errs, tempora.OperationError{
				SourceRowID: r.RowID,
				Error:       err.Error(),
				Code:        string(classifyIntervalErr(err)),
			})
			continue
		}

		payload := make(map[string]any, len(r.Columns))
		for k, v := range r.Columns {
			if k == era.ValidFrom || k == era.ValidUntil || k == era.ValidTo || k == era.Validity {
				continue
			}
			payload[k] = v
		}

		lookups := make(map[int]map[string]any, len(era.LookupKeys))
		for idx, lookup := range era.LookupKeys {
			cols := make(map[string]any, len(lookup))
			for _, c := range lookup {
				if v, ok := r.Columns[c]; ok {
					cols[c] = v
				}
			}
			lookups[idx] = cols
		}

		out = append(out, tempora.SourceRow{
			RowID:               r.RowID,
			FoundingID:          r.FoundingID,
			Interval:            iv,
			Payload:             payload,
			EntityKeysPerLookup: lookups,
		})
	}

	return out, errs
}

func classifyIntervalErr(err error) tempora.ErrorKind {
	if tempora.IsMissingInterval(err) {
		return tempora.ErrKindMissingInterval
	}
	if tempora.IsAmbiguousInterval(err) {
		return tempora.ErrKindAmbiguousInterval
	}
	if tempora.IsInvalidInterval(err) {
		return tempora.ErrKindInvalidInterval
	}
	return tempora.ErrKindValidation
}

func resolveRowInterval(era *tempora.EraDescriptor, binding tempora.IntervalColumnBinding, r rawSourceRow) (tempora.Interval, error) {
	rowRef := fmt.Sprintf("row_id=%d", r.RowID)

	fromVal, hasFrom := r.Columns[era.ValidFrom]
	untilVal, hasUntil := r.Columns[era.ValidUntil]
	hasTo := false
	if binding.ToColumn != "" {
		_, hasTo = r.Columns[binding.ToColumn]
	}

	if !hasFrom {
		return tempora.Interval{}, tempora.NewMissingIntervalError(rowRef)
	}
	if !hasUntil && !hasTo {
		return tempora.Interval{}, tempora.NewMissingIntervalError(rowRef)
	}

	from := tempora.FiniteBound(fromVal)

	var until tempora.Bound
	switch {
	case hasUntil && hasTo:
		derived, err := tempora.Successor(era.Domain, r.Columns[binding.ToColumn])
		if err != nil {
			return tempora.Interval{}, err
		}
		cmp, cerr := tempora.CompareBounds(tempora.FiniteBound(derived), tempora.FiniteBound(untilVal))
		if cerr != nil {
			return tempora.Interval{}, cerr
		}
		if cmp != 0 {
			return tempora.Interval{}, tempora.NewAmbiguousIntervalError(rowRef)
		}
		until = tempora.FiniteBound(untilVal)
	case hasUntil:
		until = tempora.FiniteBound(untilVal)
	default: // hasTo only
		derived, err := tempora.Successor(era.Domain, r.Columns[binding.ToColumn])
		if err != nil {
			return tempora.Interval{}, err
		}
		until = tempora.FiniteBound(derived)
	}

	iv := tempora.Interval{From: from, Until: until}
	cmp, err := tempora.CompareBounds(iv.From, iv.Until)
	if err != nil {
		return tempora.Interval{}, err
	}
	if cmp >= 0 {
		return tempora.Interval{}, tempora.NewInvalidIntervalError(rowRef, from.String(), until.String())
	}
	return iv, nil
}
