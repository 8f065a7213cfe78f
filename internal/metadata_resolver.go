package internal

import (
	"context"

	"github.com/lychee-technology/tempora"
)

// MetadataResolver resolves era descriptors for a target table, caching by
// (schema, table, era_name).
type MetadataResolver interface {
	Resolve(ctx context.Context, schema, table, eraName string) (*tempora.EraDescriptor, error)
}

func eraCacheKey(schema, table, era string) string {
	return schema + "." + table + "#" + era
}
