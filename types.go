package tempora

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RangeDomain enumerates the supported valid-time domains.
type RangeDomain string

const (
	RangeDomainInteger     RangeDomain = "integer"
	RangeDomainBigint      RangeDomain = "bigint"
	RangeDomainDate        RangeDomain = "date"
	RangeDomainTimestamp   RangeDomain = "timestamp"
	RangeDomainTimestampTZ RangeDomain = "timestamptz"
	RangeDomainNumeric     RangeDomain = "numeric"
)

// Discrete reports whether the domain has a well-defined successor step.
func (d RangeDomain) Discrete() bool {
	switch d {
	case RangeDomainInteger, RangeDomainBigint, RangeDomainDate, RangeDomainTimestamp, RangeDomainTimestampTZ:
		return true
	default:
		return false
	}
}

// IntervalMode enumerates the era descriptor's interval representation modes.
type IntervalMode string

const (
	IntervalModeBoundsOnly             IntervalMode = "bounds_only"
	IntervalModeBoundsPlusInclusiveEnd IntervalMode = "bounds_plus_inclusive_end"
	IntervalModeBoundsPlusRange        IntervalMode = "bounds_plus_range"
	IntervalModeAllThree               IntervalMode = "all_three"
)

// Bound is an interval endpoint: a finite domain value, or +/-infinity.
type Bound struct {
	NegInfinity bool
	PosInfinity bool
	Value       any // time.Time, int64, or a numeric string depending on RangeDomain
}

func FiniteBound(v any) Bound { return Bound{Value: v} }
func NegInfBound() Bound      { return Bound{NegInfinity: true} }
func PosInfBound() Bound      { return Bound{PosInfinity: true} }

func (b Bound) String() string {
	switch {
	case b.NegInfinity:
		return "-infinity"
	case b.PosInfinity:
		return "+infinity"
	default:
		return fmt.Sprintf("%v", b.Value)
	}
}

// Interval is a half-open [From, Until) valid-time range.
type Interval struct {
	From  Bound
	Until Bound
}

// IsEmpty reports whether the interval is degenerate (From == Until).
func (iv Interval) IsEmpty() bool {
	rel, err := compareBounds(iv.From, iv.Until)
	return err == nil && rel == 0
}

// AllenRelation is one of Allen's 13 interval relations.
type AllenRelation string

const (
	RelPrecedes     AllenRelation = "precedes"
	RelMeets        AllenRelation = "meets"
	RelOverlaps     AllenRelation = "overlaps"
	RelStarts       AllenRelation = "starts"
	RelDuring       AllenRelation = "during"
	RelFinishes     AllenRelation = "finishes"
	RelEquals       AllenRelation = "equals"
	RelPrecededBy   AllenRelation = "preceded_by"
	RelMetBy        AllenRelation = "met_by"
	RelOverlappedBy AllenRelation = "overlapped_by"
	RelStartedBy    AllenRelation = "started_by"
	RelContains     AllenRelation = "contains"
	RelFinishedBy   AllenRelation = "finished_by"
)

// EraDescriptor describes a temporal table's identity, lookup, and interval
// shape. It is the unit the Metadata Resolver produces and caches.
type EraDescriptor struct {
	Schema      string
	Table       string
	EraName     string
	Identity    []string   // K
	LookupKeys  [][]string // L, ordered
	Mode        IntervalMode
	ValidFrom   string
	ValidUntil  string
	ValidTo     string // optional inclusive mirror
	Validity    string // optional native range column
	Domain      RangeDomain
	RangeCtor   string // e.g. "daterange", "tstzrange"
	Ephemeral   []string // E, excluded from semantic equality
}

// IsEphemeral reports whether col is one of the era descriptor's ephemeral columns.
func (e *EraDescriptor) IsEphemeral(col string) bool {
	for _, c := range e.Ephemeral {
		if c == col {
			return true
		}
	}
	return false
}

// SourceRow is one row of a source batch to be merged into a temporal target.
type SourceRow struct {
	RowID               int64
	FoundingID           string
	Interval             Interval
	Payload              map[string]any
	EntityKeysPerLookup  map[int]map[string]any // index into EraDescriptor.LookupKeys
}

// TargetRow is one row of the pre-existing temporal target table.
type TargetRow struct {
	RowID    uuid.UUID
	Identity map[string]any
	Interval Interval
	Payload  map[string]any
}

// MergeMode is one of the eight segment-classification merge modes.
type MergeMode string

const (
	ModeMergeEntityUpsert     MergeMode = "MERGE_ENTITY_UPSERT"
	ModeMergeEntityPatch      MergeMode = "MERGE_ENTITY_PATCH"
	ModeMergeEntityReplace    MergeMode = "MERGE_ENTITY_REPLACE"
	ModeUpdateForPortionOf    MergeMode = "UPDATE_FOR_PORTION_OF"
	ModePatchForPortionOf     MergeMode = "PATCH_FOR_PORTION_OF"
	ModeReplaceForPortionOf   MergeMode = "REPLACE_FOR_PORTION_OF"
	ModeInsertNewEntities     MergeMode = "INSERT_NEW_ENTITIES"
	ModeDeleteForPortionOf    MergeMode = "DELETE_FOR_PORTION_OF"
)

// DeleteMode extends *_REPLACE modes with extra deletion semantics.
type DeleteMode string

const (
	DeleteModeNone                  DeleteMode = "NONE"
	DeleteModeMissingTimeline       DeleteMode = "DELETE_MISSING_TIMELINE"
	DeleteModeMissingEntities       DeleteMode = "DELETE_MISSING_ENTITIES"
	DeleteModeMissingTimelineAndEntities DeleteMode = "DELETE_MISSING_TIMELINE_AND_ENTITIES"
)

// PlanOpKind is the plan operation's DML classification.
type PlanOpKind string

const (
	OpInsert         PlanOpKind = "INSERT"
	OpUpdate         PlanOpKind = "UPDATE"
	OpDelete         PlanOpKind = "DELETE"
	OpSkipIdentical  PlanOpKind = "SKIP_IDENTICAL"
	OpSkipNoTarget   PlanOpKind = "SKIP_NO_TARGET"
	OpSkipFiltered   PlanOpKind = "SKIP_FILTERED"
	OpSkipEclipsed   PlanOpKind = "SKIP_ECLIPSED"
	OpError          PlanOpKind = "ERROR"
)

// UpdateEffect classifies an UPDATE by its temporal impact.
type UpdateEffect string

const (
	EffectNone   UpdateEffect = "NONE"
	EffectShrink UpdateEffect = "SHRINK"
	EffectMove   UpdateEffect = "MOVE"
	EffectGrow   UpdateEffect = "GROW"
)

// updateEffectRank orders update effects for the planner's ordering contract.
var updateEffectRank = map[UpdateEffect]int{
	EffectNone:   0,
	EffectShrink: 1,
	EffectMove:   2,
	EffectGrow:   3,
}

func (e UpdateEffect) rank() int { return updateEffectRank[e] }

// PlanOp is a single unit of DML work emitted by the DML Planner.
type PlanOp struct {
	PlanOpSeq     int
	StatementSeq  int
	RowIDs        []int64
	Operation     PlanOpKind
	UpdateEffect  UpdateEffect
	CausalID      string
	IsNewEntity   bool
	EntityKeys    map[string]any
	OldValidFrom  *Bound
	OldValidUntil *Bound
	NewValidFrom  *Bound
	NewValidUntil *Bound
	Data          map[string]any
	Message       string // set when Operation == OpError
}

// FeedbackStatus is the per-source-row outcome reported back to the caller.
type FeedbackStatus string

const (
	FeedbackApplied          FeedbackStatus = "APPLIED"
	FeedbackSkippedIdentical FeedbackStatus = "SKIPPED_IDENTICAL"
	FeedbackSkippedFiltered  FeedbackStatus = "SKIPPED_FILTERED"
	FeedbackSkippedNoTarget  FeedbackStatus = "SKIPPED_NO_TARGET"
	FeedbackSkippedEclipsed  FeedbackStatus = "SKIPPED_ECLIPSED"
	FeedbackError            FeedbackStatus = "ERROR"
)

// FeedbackRow is the per-source-row outcome written back via the feedback channel.
type FeedbackRow struct {
	SourceRowID       int64          `json:"source_row_id"`
	TargetEntityKeys  map[string]any `json:"target_entity_keys,omitempty"`
	Status            FeedbackStatus `json:"status"`
	ErrorMessage      string         `json:"error_message,omitempty"`
}

// TableIdentity names a table the merge pipeline reads or writes.
type TableIdentity struct {
	Schema string
	Table  string
}

func (t TableIdentity) String() string { return fmt.Sprintf("%s.%s", t.Schema, t.Table) }

// MergeRequest is the external entry point's parameter bundle (§6 temporal_merge).
type MergeRequest struct {
	TargetTable            TableIdentity
	SourceTable            TableIdentity
	IdentityColumns        []string
	Mode                   MergeMode
	EraName                string // default "valid"
	RowIDColumn            string // default "row_id"
	FoundingIDColumn       string
	DeleteMode             DeleteMode // default NONE
	LookupKeys             [][]string
	EphemeralColumns       []string
	UpdateSourceWithFeedback bool
	FeedbackStatusColumn   string
	FeedbackStatusKey      string
	Metadata               map[string]any
}

// MergeResult is returned by a successful Merge call.
type MergeResult struct {
	PlanOps       []PlanOp
	Feedback      []FeedbackRow
	Duration      time.Duration
	CacheHit      bool
}

// OperationError reports a per-source-row rejection before planning begins
// (malformed interval, ambiguous lookup, etc.).
type OperationError struct {
	SourceRowID int64          `json:"source_row_id"`
	Error       string         `json:"error"`
	Code        string         `json:"code"`
	Details     map[string]any `json:"details,omitempty"`
}
