package internal

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tempora"
)

// PostgresPlanCacheRepository is the L2 plan cache: a persistent table
// keyed by cache_key, carrying a source_columns_hash for staleness
// detection and use_count/last_used_at for the amortized purge. Mirrors
// the teacher's persistent-repository's own persistent-state-plus-
// probabilistic-maintenance shape (probabilistic purge on write, rather
// than a background sweep goroutine).
type PostgresPlanCacheRepository struct {
	pool             *pgxpool.Pool
	table            string
	maxEntries       int
	maxAge           time.Duration
	purgeProbability float64
	rollDice         func() float64
}

func NewPostgresPlanCacheRepository(pool *pgxpool.Pool, cfg tempora.CacheConfig) *PostgresPlanCacheRepository {
	table := cfg.L2Table
	if table == "" {
		table = "temporal_merge_plan_cache"
	}
	return &PostgresPlanCacheRepository{
		pool:             pool,
		table:            table,
		maxEntries:       cfg.L2MaxEntries,
		maxAge:           cfg.L2MaxAge,
		purgeProbability: cfg.PurgeProbability,
		rollDice:         rand.Float64,
	}
}

// Lookup returns the cached plan payload if present and its
// source_columns_hash matches, bumping use_count/last_used_at on hit.
func (r *PostgresPlanCacheRepository) Lookup(ctx context.Context, key PlanCacheKey, sourceColumnsHash string) (CachedPlanEntry, bool, error) {
	var payload []byte
	var storedHash string

	query := `SELECT source_columns_hash, plan_sqls FROM ` + r.table + ` WHERE cache_key = $1`
	err := r.pool.QueryRow(ctx, query, key.String()).Scan(&storedHash, &payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return CachedPlanEntry{}, false, nil
		}
		return CachedPlanEntry{}, false, tempora.NewExecutionError("plan cache lookup", err)
	}

	if storedHash != sourceColumnsHash {
		if _, derr := r.pool.Exec(ctx, `DELETE FROM `+r.table+` WHERE cache_key = $1`, key.String()); derr != nil {
			return CachedPlanEntry{}, false, tempora.NewExecutionError("plan cache evict stale entry", derr)
		}
		return CachedPlanEntry{}, false, nil
	}

	if _, err := r.pool.Exec(ctx, `UPDATE `+r.table+` SET last_used_at = now(), use_count = use_count + 1 WHERE cache_key = $1`, key.String()); err != nil {
		return CachedPlanEntry{}, false, tempora.NewExecutionError("plan cache bump use_count", err)
	}

	return CachedPlanEntry{SourceColumnsHash: storedHash, Payload: payload}, true, nil
}

// Store upserts the entry and, with probability cfg.PurgeProbability, runs
// the amortized LRU+age purge in the same call so no separate maintenance
// job is needed.
func (r *PostgresPlanCacheRepository) Store(ctx context.Context, key PlanCacheKey, entry CachedPlanEntry) error {
	query := `
		INSERT INTO ` + r.table + ` (cache_key, source_columns_hash, plan_sqls, created_at, last_used_at, use_count)
		VALUES ($1, $2, $3, now(), now(), 1)
		ON CONFLICT (cache_key) DO UPDATE SET
			source_columns_hash = EXCLUDED.source_columns_hash,
			plan_sqls = EXCLUDED.plan_sqls,
			last_used_at = now(),
			use_count = ` + r.table + `.use_count + 1`

	if _, err := r.pool.Exec(ctx, query, key.String(), entry.SourceColumnsHash, entry.Payload); err != nil {
		return tempora.NewExecutionError("plan cache store", err)
	}

	if r.rollDice() < r.purgeProbability {
		if err := r.purge(ctx); err != nil {
			return err
		}
	}

	return nil
}

// InvalidateTable deletes every L2 entry referencing schema.table, for the
// ALTER/DROP invalidation hook.
func (r *PostgresPlanCacheRepository) InvalidateTable(ctx context.Context, schema, table string) error {
	pattern := `%"TargetSchema":"` + schema + `","TargetTable":"` + table + `"%`
	_, err := r.pool.Exec(ctx, `DELETE FROM `+r.table+` WHERE cache_key LIKE $1`, pattern)
	if err != nil {
		return tempora.NewExecutionError("plan cache invalidate table", err)
	}
	return nil
}

func (r *PostgresPlanCacheRepository) purge(ctx context.Context) error {
	if r.maxAge > 0 {
		query := `DELETE FROM ` + r.table + ` WHERE last_used_at < now() - ($1 * interval '1 second')`
		if _, err := r.pool.Exec(ctx, query, r.maxAge.Seconds()); err != nil {
			return tempora.NewExecutionError("plan cache age purge", err)
		}
	}

	if r.maxEntries > 0 {
		query := `
			DELETE FROM ` + r.table + ` WHERE cache_key IN (
				SELECT cache_key FROM ` + r.table + `
				ORDER BY last_used_at DESC
				OFFSET $1
			)`
		if _, err := r.pool.Exec(ctx, query, r.maxEntries); err != nil {
			return tempora.NewExecutionError("plan cache lru purge", err)
		}
	}

	return nil
}
