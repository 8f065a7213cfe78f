package internal

import (
	"github.com/google/uuid"
	"github.com/lychee-technology/tempora"
)

// AtomicSegment is one atomic slice of an entity's timeline between two
// consecutive distinct endpoints: the minimal interval over which the set
// of covering source rows and the covering target row (if any) is constant.
type AtomicSegment struct {
	Interval     tempora.Interval
	SourceRowIDs []int64         // covering source rows, ordered by row_id
	TargetRowID  *uuid.UUID      // covering target row, nil if none
	TargetRow    *tempora.TargetRow
}

// Segment builds the atomic timeline for one entity: the sorted set of
// distinct endpoints across every source and target interval, and, for each
// resulting atomic slice, which source rows and which single target row
// (target rows never overlap within an entity) cover it.
func Segment(group *EntityGroup) ([]AtomicSegment, error) {
	intervals := make([]tempora.Interval, 0, len(group.Sources)+len(group.Target))
	for _, s := range group.Sources {
		intervals = append(intervals, s.Interval)
	}
	for _, t := range group.Target {
		intervals = append(intervals, t.Interval)
	}
	if len(intervals) == 0 {
		return nil, nil
	}

	endpoints, err := endpointSet(intervals)
	if err != nil {
		return nil, err
	}
	if len(endpoints) < 2 {
		return nil, nil
	}

	segments := make([]AtomicSegment, 0, len(endpoints)-1)
	for i := 0; i < len(endpoints)-1; i++ {
		seg := tempora.Interval{From: endpoints[i], Until: endpoints[i+1]}
		if seg.IsEmpty() {
			continue
		}

		atomic := AtomicSegment{Interval: seg}

		for _, s := range group.Sources {
			covers, err := coversSegment(s.Interval, seg)
			if err != nil {
				return nil, err
			}
			if covers {
				atomic.SourceRowIDs = append(atomic.SourceRowIDs, s.RowID)
			}
		}

		for i := range group.Target {
			t := group.Target[i]
			covers, err := coversSegment(t.Interval, seg)
			if err != nil {
				return nil, err
			}
			if covers {
				id := t.RowID
				atomic.TargetRowID = &id
				atomic.TargetRow = &group.Target[i]
				break // target rows are non-overlapping per entity; first match is the only one
			}
		}

		segments = append(segments, atomic)
	}

	return segments, nil
}

// coversSegment reports whether outer fully contains the atomic seg, i.e.
// seg.From >= outer.From and seg.Until <= outer.Until.
func coversSegment(outer, seg tempora.Interval) (bool, error) {
	fromCmp, err := tempora.CompareBounds(seg.From, outer.From)
	if err != nil {
		return false, err
	}
	untilCmp, err := tempora.CompareBounds(seg.Until, outer.Until)
	if err != nil {
		return false, err
	}
	return fromCmp >= 0 && untilCmp <= 0, nil
}
