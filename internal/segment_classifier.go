package internal

import "github.com/lychee-technology/tempora"

// ClassifiedSegment is one atomic segment after merge-mode classification:
// its post-merge payload (nil when the segment should carry no target row),
// and which source rows, if any, were rejected by the mode's filters.
type ClassifiedSegment struct {
	Interval       tempora.Interval
	TargetRow      *tempora.TargetRow
	PostPayload    map[string]any // nil means "no row here after merge"
	RejectedSource map[int64]tempora.FeedbackStatus
	HasSource      bool // true if any source row covers this segment
	SourceRowIDs   []int64
}

// ClassifySegments applies mode's column-4 rule from the merge-mode table
// to every atomic segment of one entity, producing the post-merge payload
// each segment should carry forward into coalescing.
func ClassifySegments(era *tempora.EraDescriptor, mode tempora.MergeMode, segments []AtomicSegment, sourcesByID map[int64]tempora.SourceRow) ([]ClassifiedSegment, error) {
	out := make([]ClassifiedSegment, 0, len(segments))

	for _, seg := range segments {
		rows := make([]tempora.SourceRow, 0, len(seg.SourceRowIDs))
		for _, id := range seg.SourceRowIDs {
			rows = append(rows, sourcesByID[id])
		}

		hasTarget := seg.TargetRow != nil
		hasSource := len(rows) > 0

		cs := ClassifiedSegment{Interval: seg.Interval, TargetRow: seg.TargetRow, RejectedSource: map[int64]tempora.FeedbackStatus{}, HasSource: hasSource, SourceRowIDs: seg.SourceRowIDs}

		switch mode {
		case tempora.ModeMergeEntityUpsert:
			if !hasSource {
				cs.PostPayload = targetPayloadOrNil(seg.TargetRow)
				break
			}
			p := reduce(era, rows)
			if hasTarget {
				cs.PostPayload = applyOverride(seg.TargetRow.Payload, p, false)
			} else {
				cs.PostPayload = p
			}

		case tempora.ModeMergeEntityPatch:
			if !hasSource {
				cs.PostPayload = targetPayloadOrNil(seg.TargetRow)
				break
			}
			p := reduceIgnoringNull(era, rows)
			if hasTarget {
				cs.PostPayload = applyOverride(seg.TargetRow.Payload, p, true)
			} else {
				cs.PostPayload = p
			}

		case tempora.ModeMergeEntityReplace:
			if !hasSource {
				cs.PostPayload = targetPayloadOrNil(seg.TargetRow)
				break
			}
			cs.PostPayload = reduce(era, rows)

		case tempora.ModeUpdateForPortionOf:
			if !hasTarget {
				rejectAll(cs.RejectedSource, seg.SourceRowIDs, tempora.FeedbackSkippedNoTarget)
				cs.PostPayload = nil
				break
			}
			if !hasSource {
				cs.PostPayload = seg.TargetRow.Payload
				break
			}
			cs.PostPayload = applyOverride(seg.TargetRow.Payload, reduce(era, rows), false)

		case tempora.ModePatchForPortionOf:
			if !hasTarget {
				rejectAll(cs.RejectedSource, seg.SourceRowIDs, tempora.FeedbackSkippedNoTarget)
				cs.PostPayload = nil
				break
			}
			if !hasSource {
				cs.PostPayload = seg.TargetRow.Payload
				break
			}
			cs.PostPayload = applyOverride(seg.TargetRow.Payload, reduceIgnoringNull(era, rows), true)

		case tempora.ModeReplaceForPortionOf:
			if !hasTarget {
				rejectAll(cs.RejectedSource, seg.SourceRowIDs, tempora.FeedbackSkippedNoTarget)
				cs.PostPayload = nil
				break
			}
			if !hasSource {
				cs.PostPayload = seg.TargetRow.Payload
				break
			}
			cs.PostPayload = reduce(era, rows)

		case tempora.ModeInsertNewEntities:
			if hasTarget {
				rejectAll(cs.RejectedSource, seg.SourceRowIDs, tempora.FeedbackSkippedFiltered)
				cs.PostPayload = seg.TargetRow.Payload
				break
			}
			if !hasSource {
				cs.PostPayload = nil
				break
			}
			cs.PostPayload = reduce(era, rows)

		case tempora.ModeDeleteForPortionOf:
			if !hasTarget {
				rejectAll(cs.RejectedSource, seg.SourceRowIDs, tempora.FeedbackSkippedNoTarget)
				cs.PostPayload = nil
				break
			}
			if !hasSource {
				cs.PostPayload = seg.TargetRow.Payload
				break
			}
			cs.PostPayload = nil // the T∩S portion is deleted

		default:
			return nil, tempora.NewPlannerInvariantViolationError("unknown merge mode: " + string(mode))
		}

		out = append(out, cs)
	}

	return out, nil
}

func targetPayloadOrNil(t *tempora.TargetRow) map[string]any {
	if t == nil {
		return nil
	}
	return t.Payload
}

func rejectAll(dst map[int64]tempora.FeedbackStatus, ids []int64, status tempora.FeedbackStatus) {
	for _, id := range ids {
		dst[id] = status
	}
}

// applyDeleteMode folds the *_REPLACE family's optional delete-mode
// extension in: segments belonging to a target entity not present in the
// source batch at all (DELETE_MISSING_ENTITIES), or segments of a
// pre-existing entity's timeline not covered by any source interval
// (DELETE_MISSING_TIMELINE), are forced to PostPayload = nil.
func applyDeleteMode(segments []ClassifiedSegment, deleteMode tempora.DeleteMode, entityHasAnySource bool) []ClassifiedSegment {
	if deleteMode == tempora.DeleteModeNone {
		return segments
	}

	missingEntities := deleteMode == tempora.DeleteModeMissingEntities || deleteMode == tempora.DeleteModeMissingTimelineAndEntities
	missingTimeline := deleteMode == tempora.DeleteModeMissingTimeline || deleteMode == tempora.DeleteModeMissingTimelineAndEntities

	if missingEntities && !entityHasAnySource {
		for i := range segments {
			segments[i].PostPayload = nil
		}
		return segments
	}

	if missingTimeline {
		for i := range segments {
			if segments[i].TargetRow != nil && !segments[i].HasSource {
				segments[i].PostPayload = nil
			}
		}
	}

	return segments
}
