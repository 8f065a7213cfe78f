package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tempora"
)

// PostgresMetadataResolver resolves era descriptors from an abstract
// metadata view over the catalog (a view the caller is expected to
// provision, named eraCatalogView, exposing one row per (schema, table,
// era_name)). Resolved descriptors are cached in the resolver, keyed by
// (schema, table, era_name) — not by OID — so the cache survives
// schema-preserving DDL such as view recreation. The cache is shared by
// every connection of the pool; it is not scoped per connection.
type PostgresMetadataResolver struct {
	pool           *pgxpool.Pool
	eraCatalogView string

	mu    sync.RWMutex
	cache map[string]*tempora.EraDescriptor
}

// NewPostgresMetadataResolver constructs a resolver backed by pool. If
// eraCatalogView is empty it defaults to "temporal_merge_era_catalog".
func NewPostgresMetadataResolver(pool *pgxpool.Pool, eraCatalogView string) *PostgresMetadataResolver {
	if eraCatalogView == "" {
		eraCatalogView = "temporal_merge_era_catalog"
	}
	return &PostgresMetadataResolver{
		pool:           pool,
		eraCatalogView: eraCatalogView,
		cache:          make(map[string]*tempora.EraDescriptor),
	}
}

func (r *PostgresMetadataResolver) Resolve(ctx context.Context, schema, table, eraName string) (*tempora.EraDescriptor, error) {
	key := eraCacheKey(schema, table, eraName)

	r.mu.RLock()
	if d, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return d, nil
	}
	r.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT identity_columns, lookup_keys, mode, valid_from, valid_until,
		       valid_to, validity, domain, range_ctor, ephemeral_columns
		FROM %s
		WHERE schema_name = $1 AND table_name = $2 AND era_name = $3`, r.eraCatalogView)

	row := r.pool.QueryRow(ctx, query, schema, table, eraName)

	var (
		identity   []string
		lookupRaw  [][]string
		mode       string
		validFrom  string
		validUntil string
		validTo    string
		validity   string
		domain     string
		rangeCtor  string
		ephemeral  []string
	)
	if err := row.Scan(&identity, &lookupRaw, &mode, &validFrom, &validUntil,
		&validTo, &validity, &domain, &rangeCtor, &ephemeral); err != nil {
		return nil, tempora.NewEraNotFoundError(schema, table, eraName).WithCause(err)
	}

	domainVal := tempora.RangeDomain(domain)
	switch domainVal {
	case tempora.RangeDomainInteger, tempora.RangeDomainBigint, tempora.RangeDomainDate,
		tempora.RangeDomainTimestamp, tempora.RangeDomainTimestampTZ, tempora.RangeDomainNumeric:
	default:
		return nil, tempora.NewRangeDomainUnsupportedError(domain)
	}

	desc := &tempora.EraDescriptor{
		Schema:     schema,
		Table:      table,
		EraName:    eraName,
		Identity:   identity,
		LookupKeys: lookupRaw,
		Mode:       tempora.IntervalMode(mode),
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		ValidTo:    validTo,
		Validity:   validity,
		Domain:     domainVal,
		RangeCtor:  rangeCtor,
		Ephemeral:  ephemeral,
	}

	r.mu.Lock()
	r.cache[key] = desc
	r.mu.Unlock()

	return desc, nil
}

// Invalidate drops a single cached descriptor so the next Resolve reads the
// catalog again. Nothing in this module calls it.
func (r *PostgresMetadataResolver) Invalidate(schema, table, eraName string) {
	r.mu.Lock()
	delete(r.cache, eraCacheKey(schema, table, eraName))
	r.mu.Unlock()
}
