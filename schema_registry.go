package tempora

// AttributeStorageLocation enumerates where an era descriptor's interval
// endpoint physically resides, mirroring the main-table-vs-EAV distinction
// the rest of the example pack uses for attribute storage.
type AttributeStorageLocation string

const (
	AttributeStorageLocationBoundsOnly AttributeStorageLocation = "bounds_only"
	AttributeStorageLocationInclusive  AttributeStorageLocation = "bounds_plus_inclusive_end"
	AttributeStorageLocationRange      AttributeStorageLocation = "bounds_plus_range"
)

// IntervalColumnBinding describes which physical columns an era descriptor's
// interval representation mode actually populates.
type IntervalColumnBinding struct {
	Location   AttributeStorageLocation
	FromColumn string
	UntilColumn string
	ToColumn    string // populated only in bounds_plus_inclusive_end / all_three
	RangeColumn string // populated only in bounds_plus_range / all_three
}

// ColumnBinding derives which physical columns participate for this era
// descriptor's interval mode.
func (e *EraDescriptor) ColumnBinding() IntervalColumnBinding {
	b := IntervalColumnBinding{FromColumn: e.ValidFrom, UntilColumn: e.ValidUntil}
	switch e.Mode {
	case IntervalModeBoundsOnly:
		b.Location = AttributeStorageLocationBoundsOnly
	case IntervalModeBoundsPlusInclusiveEnd:
		b.Location = AttributeStorageLocationInclusive
		b.ToColumn = e.ValidTo
	case IntervalModeBoundsPlusRange:
		b.Location = AttributeStorageLocationRange
		b.RangeColumn = e.Validity
	case IntervalModeAllThree:
		b.Location = AttributeStorageLocationInclusive
		b.ToColumn = e.ValidTo
		b.RangeColumn = e.Validity
	}
	return b
}

// EraRegistry provides era-descriptor lookup operations; implementations can
// load descriptors from files, a Postgres catalog view, or other sources.
// This is the root-package-visible counterpart of the Metadata Resolver.
type EraRegistry interface {
	// GetEraDescriptor resolves the descriptor for (schema, table, eraName).
	GetEraDescriptor(schema, table, eraName string) (*EraDescriptor, error)
	// ListEras returns every "schema.table#era" key currently registered.
	ListEras() []string
}
