package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/tempora"
)

// Executor applies a planned sequence of DML operations against the target
// table inside a caller-supplied transaction, in plan_op_seq order. It does
// not derive per-source-row feedback; the caller derives that from the
// plan. It never begins or commits
// the transaction itself — the caller controls the deferred-constraint
// transaction boundary the planner's ordering contract depends on.
type Executor struct {
	target tempora.TableIdentity
	era    *tempora.EraDescriptor
}

func NewExecutor(target tempora.TableIdentity, era *tempora.EraDescriptor) *Executor {
	return &Executor{target: target, era: era}
}

// Execute runs every plan op in PlanOpSeq order against tx. It stops at the
// first storage-layer error and returns it wrapped as an ExecutionError;
// the caller is responsible for rolling back tx.
func (x *Executor) Execute(ctx context.Context, tx pgx.Tx, ops []tempora.PlanOp) error {
	binding := x.era.ColumnBinding()

	for _, op := range ops {
		var err error
		switch op.Operation {
		case tempora.OpInsert:
			err = x.execInsert(ctx, tx, binding, op)
		case tempora.OpUpdate:
			err = x.execUpdate(ctx, tx, binding, op)
		case tempora.OpDelete:
			err = x.execDelete(ctx, tx, binding, op)
		case tempora.OpSkipIdentical, tempora.OpSkipFiltered, tempora.OpSkipNoTarget, tempora.OpSkipEclipsed:
			// no storage work; feedback is derived by the caller from the plan.
		case tempora.OpError:
			return tempora.NewExecutionError(op.Message, nil)
		default:
			return tempora.NewPlannerInvariantViolationError("unknown plan op kind: " + string(op.Operation))
		}
		if err != nil {
			return tempora.NewExecutionError(fmt.Sprintf("plan_op_seq=%d operation=%s", op.PlanOpSeq, op.Operation), err)
		}
	}

	return nil
}

func (x *Executor) execInsert(ctx context.Context, tx pgx.Tx, binding tempora.IntervalColumnBinding, op tempora.PlanOp) error {
	cols := make([]string, 0, len(op.EntityKeys)+len(op.Data)+3)
	args := make([]any, 0, cap(cols))

	for k, v := range op.EntityKeys {
		cols = append(cols, k)
		args = append(args, v)
	}
	for k, v := range op.Data {
		cols = append(cols, k)
		args = append(args, v)
	}

	cols = append(cols, binding.FromColumn, binding.UntilColumn)
	args = append(args, boundValue(op.NewValidFrom), boundValue(op.NewValidUntil))

	placeholders := make([]string, len(cols))
	identifiers := make([]string, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		identifiers[i] = pgx.Identifier{c}.Sanitize()
	}

	query := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		pgx.Identifier{x.target.Schema}.Sanitize(), pgx.Identifier{x.target.Table}.Sanitize(),
		joinIdentifiers(identifiers), joinIdentifiers(placeholders))

	_, err := tx.Exec(ctx, query, args...)
	return err
}

func (x *Executor) execUpdate(ctx context.Context, tx pgx.Tx, binding tempora.IntervalColumnBinding, op tempora.PlanOp) error {
	setCols := make([]string, 0, len(op.Data)+2)
	args := make([]any, 0, len(op.Data)+4)

	for k, v := range op.Data {
		setCols = append(setCols, k)
		args = append(args, v)
	}
	if op.NewValidFrom != nil {
		setCols = append(setCols, binding.FromColumn)
		args = append(args, boundValue(op.NewValidFrom))
	}
	if op.NewValidUntil != nil {
		setCols = append(setCols, binding.UntilColumn)
		args = append(args, boundValue(op.NewValidUntil))
	}

	setClauses := make([]string, len(setCols))
	for i, c := range setCols {
		setClauses[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i+1)
	}

	nextParam := len(args) + 1
	whereClauses, whereArgs := identityWhere(op.EntityKeys, nextParam)
	nextParam += len(whereArgs)
	if op.OldValidFrom != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", pgx.Identifier{binding.FromColumn}.Sanitize(), nextParam))
		whereArgs = append(whereArgs, boundValue(op.OldValidFrom))
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s.%s SET %s WHERE %s",
		pgx.Identifier{x.target.Schema}.Sanitize(), pgx.Identifier{x.target.Table}.Sanitize(),
		joinIdentifiers(setClauses), joinWhere(whereClauses))

	_, err := tx.Exec(ctx, query, args...)
	return err
}

func (x *Executor) execDelete(ctx context.Context, tx pgx.Tx, binding tempora.IntervalColumnBinding, op tempora.PlanOp) error {
	whereClauses, args := identityWhere(op.EntityKeys, 1)
	if op.OldValidFrom != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", pgx.Identifier{binding.FromColumn}.Sanitize(), len(args)+1))
		args = append(args, boundValue(op.OldValidFrom))
	}

	query := fmt.Sprintf("DELETE FROM %s.%s WHERE %s",
		pgx.Identifier{x.target.Schema}.Sanitize(), pgx.Identifier{x.target.Table}.Sanitize(),
		joinWhere(whereClauses))

	_, err := tx.Exec(ctx, query, args...)
	return err
}

func identityWhere(identity map[string]any, paramStart int) ([]string, []any) {
	clauses := make([]string, 0, len(identity))
	args := make([]any, 0, len(identity))
	i := paramStart
	for k, v := range identity {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", pgx.Identifier{k}.Sanitize(), i))
		args = append(args, v)
		i++
	}
	return clauses, args
}

func boundValue(b *tempora.Bound) any {
	if b == nil {
		return nil
	}
	return b.Value
}

func joinIdentifiers(parts []string) string {
	return joinWith(parts, ", ")
}

func joinWhere(parts []string) string {
	return joinWith(parts, " AND ")
}

func joinWith(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
