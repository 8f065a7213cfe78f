package internal

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tempora"
	"github.com/lychee-technology/tempora/internal/planner"
)

// pgxTxOptionsDeferred opens the merge transaction at the default
// read-committed isolation level; deferring the target table's uniqueness
// constraints to end-of-transaction (a migration concern, not something
// pgx.TxOptions controls) is what makes the planner's DELETE<UPDATE<INSERT
// ordering contract safe.
func pgxTxOptionsDeferred() pgx.TxOptions {
	return pgx.TxOptions{}
}

// MergeEngine wires the full temporal-merge pipeline (§4.1–§4.9) together
// and implements tempora.TemporalMerger. It is the orchestration
// counterpart of the teacher's entity_manager.go, kept in this single
// file.
type MergeEngine struct {
	pool      *pgxpool.Pool
	resolver  MetadataResolver
	source    SourceBatchReader
	target    TargetSliceLoader
	l1        *planCache
	l2        *PostgresPlanCacheRepository
}

func NewMergeEngine(pool *pgxpool.Pool, resolver MetadataResolver, source SourceBatchReader, target TargetSliceLoader, l2 *PostgresPlanCacheRepository) *MergeEngine {
	return &MergeEngine{
		pool:     pool,
		resolver: resolver,
		source:   source,
		target:   target,
		l1:       newPlanCache(),
		l2:       l2,
	}
}

func normalizeRequest(req *tempora.MergeRequest) {
	if req.EraName == "" {
		req.EraName = "valid"
	}
	if req.RowIDColumn == "" {
		req.RowIDColumn = "row_id"
	}
	if req.DeleteMode == "" {
		req.DeleteMode = tempora.DeleteModeNone
	}
}

func (m *MergeEngine) cacheKey(era *tempora.EraDescriptor, req *tempora.MergeRequest) PlanCacheKey {
	return PlanCacheKey{
		TargetSchema:     req.TargetTable.Schema,
		TargetTable:      req.TargetTable.Table,
		IdentityColumns:  req.IdentityColumns,
		EphemeralColumns: req.EphemeralColumns,
		Mode:             req.Mode,
		EraName:          req.EraName,
		RowIDColumn:      req.RowIDColumn,
		FoundingIDColumn: req.FoundingIDColumn,
		RangeConstructor: era.RangeCtor,
		DeleteMode:       req.DeleteMode,
		LookupKeys:       req.LookupKeys,
	}
}

// touchPlanCache implements §4.10: hash the source table's current column
// signature, check L1 then L2 for a matching entry, and store a fresh one
// on miss or signature mismatch. The cached payload itself is the era's
// column-binding shape, the part of planning that depends only on schema,
// not on the batch's row values — a real plan-SQL-template cache, were one
// introduced later, would slot in at the same two checkpoints.
func (m *MergeEngine) touchPlanCache(ctx context.Context, era *tempora.EraDescriptor, req *tempora.MergeRequest) bool {
	cols, err := loadSourceColumnSignature(ctx, m.pool, req.SourceTable)
	if err != nil {
		return false // caching is an optimization; a signature-lookup failure just forces a miss
	}
	hash := HashSourceColumns(cols)
	key := m.cacheKey(era, req)

	if _, ok := m.l1.get(key, hash); ok {
		return true
	}

	if m.l2 != nil {
		if entry, ok, err := m.l2.Lookup(ctx, key, hash); err == nil && ok {
			m.l1.put(key, entry)
			return true
		}
	}

	payload, _ := bindingPayload(era)
	entry := CachedPlanEntry{SourceColumnsHash: hash, Payload: payload}
	m.l1.put(key, entry)
	if m.l2 != nil {
		_ = m.l2.Store(ctx, key, entry)
	}
	return false
}

func bindingPayload(era *tempora.EraDescriptor) ([]byte, error) {
	return json.Marshal(era.ColumnBinding())
}

func loadSourceColumnSignature(ctx context.Context, pool *pgxpool.Pool, table tempora.TableIdentity) (map[string]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2`, table.Schema, table.Table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name, dtype string
		if err := rows.Scan(&name, &dtype); err != nil {
			return nil, err
		}
		cols[name] = dtype
	}
	return cols, rows.Err()
}

// buildPlan runs §4.2–§4.8 end to end: resolve metadata, ingest the source
// batch, resolve entities, segment/classify/coalesce each entity's
// timeline, and diff against the pre-existing target to produce the
// globally ordered plan op sequence.
func (m *MergeEngine) buildPlan(ctx context.Context, req *tempora.MergeRequest) (*tempora.EraDescriptor, []tempora.PlanOp, []tempora.FeedbackRow, []tempora.OperationError, bool, error) {
	normalizeRequest(req)

	era, err := m.resolver.Resolve(ctx, req.TargetTable.Schema, req.TargetTable.Table, req.EraName)
	if err != nil {
		return nil, nil, nil, nil, false, err
	}

	cacheHit := m.touchPlanCache(ctx, era, req)

	raw, err := m.source.ReadBatch(ctx, req.SourceTable, req.RowIDColumn, req.FoundingIDColumn)
	if err != nil {
		return era, nil, nil, nil, cacheHit, err
	}

	sourceRows, ingestErrs := IngestBatch(era, raw)

	groups, err := ResolveEntities(ctx, m.target, era, sourceRows)
	if err != nil {
		return era, nil, nil, ingestErrs, cacheHit, err
	}

	type phasedOp struct {
		phase int
		op    tempora.PlanOp
	}

	var allOps []phasedOp
	var allFeedback []tempora.FeedbackRow

	for _, g := range groups {
		segs, err := Segment(g)
		if err != nil {
			return era, nil, nil, ingestErrs, cacheHit, err
		}

		sourcesByID := make(map[int64]tempora.SourceRow, len(g.Sources))
		for _, s := range g.Sources {
			sourcesByID[s.RowID] = s
		}

		classified, err := ClassifySegments(era, req.Mode, segs, sourcesByID)
		if err != nil {
			return era, nil, nil, ingestErrs, cacheHit, err
		}
		classified = applyDeleteMode(classified, req.DeleteMode, len(g.Sources) > 0)

		coalesced, err := Coalesce(era, classified)
		if err != nil {
			return era, nil, nil, ingestErrs, cacheHit, err
		}

		ops, feedback, err := planner.Plan(era, g, coalesced, classified)
		if err != nil {
			return era, nil, nil, ingestErrs, cacheHit, err
		}

		for _, op := range ops {
			allOps = append(allOps, phasedOp{phase: planner.PhaseOf(op), op: op})
		}
		allFeedback = append(allFeedback, feedback...)
	}

	sort.SliceStable(allOps, func(i, j int) bool { return allOps[i].phase < allOps[j].phase })

	finalOps := make([]tempora.PlanOp, len(allOps))
	for i, p := range allOps {
		p.op.PlanOpSeq = i
		p.op.StatementSeq = p.phase
		finalOps[i] = p.op
	}

	return era, finalOps, allFeedback, ingestErrs, cacheHit, nil
}

// PlanOnly satisfies tempora.TemporalMerger: it runs the full pipeline and
// returns the plan without executing it.
func (m *MergeEngine) PlanOnly(ctx context.Context, req *tempora.MergeRequest) ([]tempora.PlanOp, error) {
	_, ops, _, _, _, err := m.buildPlan(ctx, req)
	return ops, err
}

// Merge satisfies tempora.TemporalMerger: it plans and then executes the
// plan inside a single transaction, writing feedback when requested.
func (m *MergeEngine) Merge(ctx context.Context, req *tempora.MergeRequest) (*tempora.MergeResult, error) {
	start := time.Now()

	era, ops, feedback, ingestErrs, cacheHit, err := m.buildPlan(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(ingestErrs) > 0 && len(ops) == 0 {
		return nil, tempora.NewValidationError("source rows failed ingestion and no plan operations remain")
	}

	for _, op := range ops {
		if op.Operation == tempora.OpError {
			return nil, tempora.NewPlannerInvariantViolationError(op.Message)
		}
	}

	tx, err := m.pool.BeginTx(ctx, pgxTxOptionsDeferred())
	if err != nil {
		return nil, tempora.NewExecutionError("begin merge transaction", err)
	}
	defer tx.Rollback(ctx)

	executor := NewExecutor(req.TargetTable, era)
	if err := executor.Execute(ctx, tx, ops); err != nil {
		return nil, err
	}

	if req.UpdateSourceWithFeedback {
		if err := WriteFeedback(ctx, tx, req.SourceTable, req.RowIDColumn, req.FeedbackStatusColumn, feedback); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, tempora.NewExecutionError("commit merge transaction", err)
	}

	return &tempora.MergeResult{
		PlanOps:  ops,
		Feedback: feedback,
		Duration: time.Since(start),
		CacheHit: cacheHit,
	}, nil
}
