package internal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lychee-technology/tempora"
)

func TestClassifySegmentsMergeEntityUpsertOverridesTarget(t *testing.T) {
	era := testEra()
	targetRow := &tempora.TargetRow{RowID: uuid.New(), Payload: map[string]any{"name": "Alex", "dept": "sales"}}
	sources := map[int64]tempora.SourceRow{
		1: {RowID: 1, Payload: map[string]any{"dept": "engineering"}},
	}
	segments := []AtomicSegment{
		{Interval: iv(0, 10), TargetRow: targetRow, SourceRowIDs: []int64{1}},
	}

	out, err := ClassifySegments(era, tempora.ModeMergeEntityUpsert, segments, sources)
	if err != nil {
		t.Fatalf("ClassifySegments returned error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 classified segment, got %d", len(out))
	}
	if out[0].PostPayload["name"] != "Alex" || out[0].PostPayload["dept"] != "engineering" {
		t.Fatalf("expected target carried forward and patched by source, got %+v", out[0].PostPayload)
	}
}

func TestClassifySegmentsUpdateForPortionOfRejectsWithoutTarget(t *testing.T) {
	era := testEra()
	sources := map[int64]tempora.SourceRow{
		1: {RowID: 1, Payload: map[string]any{"dept": "engineering"}},
	}
	segments := []AtomicSegment{
		{Interval: iv(0, 10), TargetRow: nil, SourceRowIDs: []int64{1}},
	}

	out, err := ClassifySegments(era, tempora.ModeUpdateForPortionOf, segments, sources)
	if err != nil {
		t.Fatalf("ClassifySegments returned error: %v", err)
	}
	if out[0].PostPayload != nil {
		t.Fatalf("expected no post payload without a target row, got %+v", out[0].PostPayload)
	}
	if status, ok := out[0].RejectedSource[1]; !ok || status != tempora.FeedbackSkippedNoTarget {
		t.Fatalf("expected source row 1 rejected as SKIPPED_NO_TARGET, got %+v", out[0].RejectedSource)
	}
}

func TestClassifySegmentsInsertNewEntitiesRejectsExistingTarget(t *testing.T) {
	era := testEra()
	targetRow := &tempora.TargetRow{RowID: uuid.New(), Payload: map[string]any{"name": "Alex"}}
	sources := map[int64]tempora.SourceRow{
		1: {RowID: 1, Payload: map[string]any{"name": "Alexandra"}},
	}
	segments := []AtomicSegment{
		{Interval: iv(0, 10), TargetRow: targetRow, SourceRowIDs: []int64{1}},
	}

	out, err := ClassifySegments(era, tempora.ModeInsertNewEntities, segments, sources)
	if err != nil {
		t.Fatalf("ClassifySegments returned error: %v", err)
	}
	if out[0].PostPayload["name"] != "Alex" {
		t.Fatalf("expected the pre-existing target to survive untouched, got %+v", out[0].PostPayload)
	}
	if status, ok := out[0].RejectedSource[1]; !ok || status != tempora.FeedbackSkippedFiltered {
		t.Fatalf("expected source row 1 rejected as SKIPPED_FILTERED, got %+v", out[0].RejectedSource)
	}
}

func TestClassifySegmentsDeleteForPortionOfClearsOverlap(t *testing.T) {
	era := testEra()
	targetRow := &tempora.TargetRow{RowID: uuid.New(), Payload: map[string]any{"name": "Alex"}}
	sources := map[int64]tempora.SourceRow{
		1: {RowID: 1, Payload: map[string]any{}},
	}
	segments := []AtomicSegment{
		{Interval: iv(0, 10), TargetRow: targetRow, SourceRowIDs: []int64{1}},
	}

	out, err := ClassifySegments(era, tempora.ModeDeleteForPortionOf, segments, sources)
	if err != nil {
		t.Fatalf("ClassifySegments returned error: %v", err)
	}
	if out[0].PostPayload != nil {
		t.Fatalf("expected the overlapping portion to be deleted, got %+v", out[0].PostPayload)
	}
}

func TestApplyDeleteModeMissingTimeline(t *testing.T) {
	targetRow := &tempora.TargetRow{RowID: uuid.New(), Payload: map[string]any{"name": "Alex"}}
	segments := []ClassifiedSegment{
		{Interval: iv(0, 10), TargetRow: targetRow, PostPayload: targetRow.Payload, HasSource: false},
	}

	out := applyDeleteMode(segments, tempora.DeleteModeMissingTimeline, true)

	if out[0].PostPayload != nil {
		t.Fatalf("expected uncovered target timeline to be deleted, got %+v", out[0].PostPayload)
	}
}

func TestApplyDeleteModeMissingEntities(t *testing.T) {
	targetRow := &tempora.TargetRow{RowID: uuid.New(), Payload: map[string]any{"name": "Alex"}}
	segments := []ClassifiedSegment{
		{Interval: iv(0, 10), TargetRow: targetRow, PostPayload: targetRow.Payload, HasSource: false},
	}

	out := applyDeleteMode(segments, tempora.DeleteModeMissingEntities, false)

	if out[0].PostPayload != nil {
		t.Fatalf("expected an entity absent from the source batch to be deleted entirely, got %+v", out[0].PostPayload)
	}
}

func TestApplyDeleteModeNoneIsNoop(t *testing.T) {
	targetRow := &tempora.TargetRow{RowID: uuid.New(), Payload: map[string]any{"name": "Alex"}}
	segments := []ClassifiedSegment{
		{Interval: iv(0, 10), TargetRow: targetRow, PostPayload: targetRow.Payload, HasSource: false},
	}

	out := applyDeleteMode(segments, tempora.DeleteModeNone, false)

	if out[0].PostPayload == nil {
		t.Fatalf("expected DeleteModeNone to leave segments untouched")
	}
}
