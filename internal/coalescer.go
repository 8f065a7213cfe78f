package internal

import "github.com/lychee-technology/tempora"

// CoalescedSegment is a maximal run of adjacent classified segments that
// agree on identity, on every non-ephemeral payload column, and on whether
// they carry a row at all — the unit the DML Planner diffs against the
// pre-existing target timeline.
type CoalescedSegment struct {
	Interval    tempora.Interval
	TargetRow   *tempora.TargetRow // the single pre-existing target row this span overlaps, if any
	PostPayload map[string]any     // nil means the span should carry no row after merge
}

// Coalesce walks classified segments in interval order and merges adjacent
// segments whose post-merge payload is semantically identical (ephemeral
// columns excluded), producing the canonical minimal-cardinality timeline.
func Coalesce(era *tempora.EraDescriptor, segments []ClassifiedSegment) ([]CoalescedSegment, error) {
	var out []CoalescedSegment

	for _, seg := range segments {
		if len(out) > 0 {
			last := &out[len(out)-1]
			adjacent, err := meetsWithoutGap(era.Domain, last.Interval.Until, seg.Interval.From)
			if err != nil {
				return nil, err
			}
			if adjacent && sameDecision(era, last, seg) {
				last.Interval.Until = seg.Interval.Until
				continue
			}
		}

		out = append(out, CoalescedSegment{
			Interval:    seg.Interval,
			TargetRow:   seg.TargetRow,
			PostPayload: seg.PostPayload,
		})
	}

	return out, nil
}

func sameDecision(era *tempora.EraDescriptor, last *CoalescedSegment, seg ClassifiedSegment) bool {
	lastEmpty := last.PostPayload == nil
	segEmpty := seg.PostPayload == nil
	if lastEmpty != segEmpty {
		return false
	}
	if lastEmpty && segEmpty {
		return true
	}
	if !sameTargetIdentity(last.TargetRow, seg.TargetRow) {
		return false
	}
	return payloadEquals(era, last.PostPayload, seg.PostPayload)
}

func sameTargetIdentity(a, b *tempora.TargetRow) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return a.RowID == b.RowID
}
