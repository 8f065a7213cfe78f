package internal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lychee-technology/tempora"
)

func TestSegmentSplitsOnSourceAndTargetEndpoints(t *testing.T) {
	targetID := uuid.New()
	group := &EntityGroup{
		GroupingKey: "emp-1",
		Sources: []tempora.SourceRow{
			{RowID: 1, Interval: iv(0, 10)},
		},
		Target: []tempora.TargetRow{
			{RowID: targetID, Interval: iv(5, 15)},
		},
	}

	segments, err := Segment(group)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	want := []tempora.Interval{iv(0, 5), iv(5, 10), iv(10, 15)}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(segments), segments)
	}
	for i, seg := range segments {
		if seg.Interval != want[i] {
			t.Fatalf("segment %d interval = %v, want %v", i, seg.Interval, want[i])
		}
	}

	if len(segments[0].SourceRowIDs) != 1 || segments[0].TargetRowID != nil {
		t.Fatalf("segment 0 should be covered only by the source row, got %+v", segments[0])
	}
	if len(segments[1].SourceRowIDs) != 1 || segments[1].TargetRowID == nil {
		t.Fatalf("segment 1 should be covered by both source and target, got %+v", segments[1])
	}
	if len(segments[2].SourceRowIDs) != 0 || segments[2].TargetRowID == nil {
		t.Fatalf("segment 2 should be covered only by target, got %+v", segments[2])
	}
}

func TestSegmentEmptyGroup(t *testing.T) {
	segments, err := Segment(&EntityGroup{GroupingKey: "empty"})
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}
	if segments != nil {
		t.Fatalf("expected nil segments for an empty group, got %+v", segments)
	}
}
