// Package planner implements the DML Planner: it diffs a coalesced
// post-merge timeline against the pre-existing target timeline and emits
// an ordered sequence of plan operations safe to execute under deferred
// uniqueness constraints.
package planner

import (
	"sort"

	"github.com/google/uuid"
	"github.com/lychee-technology/tempora"
	"github.com/lychee-technology/tempora/internal"
)

// statementSeq phases, in execution order. All ops sharing a phase may be
// batched into a single statement since the ordering contract guarantees
// they cannot conflict with each other.
const (
	phaseDelete = iota
	phaseUpdateNone
	phaseUpdateShrink
	phaseUpdateMove
	phaseUpdateGrow
	phaseInsert
)

func phaseForEffect(e tempora.UpdateEffect) int {
	switch e {
	case tempora.EffectNone:
		return phaseUpdateNone
	case tempora.EffectShrink:
		return phaseUpdateShrink
	case tempora.EffectMove:
		return phaseUpdateMove
	case tempora.EffectGrow:
		return phaseUpdateGrow
	default:
		return phaseUpdateMove
	}
}

// Plan diffs group's coalesced post-merge timeline against its
// pre-existing target rows and produces the ordered plan ops plus the
// per-source-row feedback rows.
func Plan(era *tempora.EraDescriptor, group *internal.EntityGroup, coalesced []internal.CoalescedSegment, classified []internal.ClassifiedSegment) ([]tempora.PlanOp, []tempora.FeedbackRow, error) {
	type opBucket struct {
		phase int
		op    tempora.PlanOp
	}

	var buckets []opBucket
	appliedRowIDs := make(map[int64]bool)

	targetByID := make(map[uuid.UUID]*tempora.TargetRow, len(group.Target))
	for i := range group.Target {
		targetByID[group.Target[i].RowID] = &group.Target[i]
	}

	consumedTargetIDs := make(map[uuid.UUID]bool)

	// Walk kept/new coalesced segments, grouped by which pre-existing
	// target row (if any) they continue.
	keptByTarget := make(map[uuid.UUID][]internal.CoalescedSegment)
	var newSegments []internal.CoalescedSegment

	for _, seg := range coalesced {
		if seg.PostPayload == nil {
			continue
		}
		if seg.TargetRow != nil {
			keptByTarget[seg.TargetRow.RowID] = append(keptByTarget[seg.TargetRow.RowID], seg)
		} else {
			newSegments = append(newSegments, seg)
		}
	}

	for rowID, segs := range keptByTarget {
		consumedTargetIDs[rowID] = true
		sort.Slice(segs, func(i, j int) bool {
			cmp, _ := tempora.CompareBounds(segs[i].Interval.From, segs[j].Interval.From)
			return cmp < 0
		})

		original := targetByID[rowID]
		primary := segs[0]

		op, err := diffOne(era, original, &primary, rowID)
		if err != nil {
			return nil, nil, err
		}
		buckets = append(buckets, opBucket{phase: phaseForOp(op), op: op})
		if op.Operation != tempora.OpSkipIdentical {
			markApplied(appliedRowIDs, group, primary.Interval)
		}

		for _, extra := range segs[1:] {
			insertOp := insertOp(group, era, extra)
			buckets = append(buckets, opBucket{phase: phaseInsert, op: insertOp})
			markApplied(appliedRowIDs, group, extra.Interval)
		}
	}

	// Pre-existing target rows that no coalesced segment continues at all
	// are gone from the merged timeline.
	for rowID, t := range targetByID {
		if consumedTargetIDs[rowID] {
			continue
		}
		buckets = append(buckets, opBucket{phase: phaseDelete, op: deleteOp(t)})
	}

	for _, seg := range newSegments {
		op := insertOp(group, era, seg)
		buckets = append(buckets, opBucket{phase: phaseInsert, op: op})
		markApplied(appliedRowIDs, group, seg.Interval)
	}

	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].phase < buckets[j].phase })

	ops := make([]tempora.PlanOp, len(buckets))
	for i, b := range buckets {
		b.op.PlanOpSeq = i
		b.op.StatementSeq = b.phase
		ops[i] = b.op
	}

	feedback := buildFeedback(group, classified, appliedRowIDs)
	return ops, feedback, nil
}

// PhaseOf exposes the ordering-contract phase of an already-planned op, for
// callers (the merge engine) that need to merge several entities' plans
// into one globally ordered sequence.
func PhaseOf(op tempora.PlanOp) int {
	return phaseForOp(op)
}

func phaseForOp(op tempora.PlanOp) int {
	switch op.Operation {
	case tempora.OpDelete:
		return phaseDelete
	case tempora.OpInsert:
		return phaseInsert
	case tempora.OpUpdate:
		return phaseForEffect(op.UpdateEffect)
	default: // skip ops never appear in buckets directly except identical
		return phaseUpdateNone
	}
}

func diffOne(era *tempora.EraDescriptor, original *tempora.TargetRow, seg *internal.CoalescedSegment, rowID uuid.UUID) (tempora.PlanOp, error) {
	intervalChanged, err := intervalDiffers(original.Interval, seg.Interval)
	if err != nil {
		return tempora.PlanOp{}, err
	}
	payloadChanged := !internal.PayloadEquals(era, original.Payload, seg.PostPayload)

	base := tempora.PlanOp{
		RowIDs:     []int64{},
		EntityKeys: original.Identity,
		Data:       seg.PostPayload,
	}

	if !intervalChanged && !payloadChanged {
		base.Operation = tempora.OpSkipIdentical
		return base, nil
	}

	if !intervalChanged {
		base.Operation = tempora.OpUpdate
		base.UpdateEffect = tempora.EffectNone
		return base, nil
	}

	effect, err := classifyUpdateEffect(original.Interval, seg.Interval)
	if err != nil {
		return tempora.PlanOp{}, err
	}

	of, ou := original.Interval.From, original.Interval.Until
	nf, nu := seg.Interval.From, seg.Interval.Until
	base.Operation = tempora.OpUpdate
	base.UpdateEffect = effect
	base.OldValidFrom = &of
	base.OldValidUntil = &ou
	base.NewValidFrom = &nf
	base.NewValidUntil = &nu
	return base, nil
}

func insertOp(group *internal.EntityGroup, era *tempora.EraDescriptor, seg internal.CoalescedSegment) tempora.PlanOp {
	causal := ""
	if len(group.Sources) > 0 {
		causal = group.Sources[0].FoundingID
	}
	from, until := seg.Interval.From, seg.Interval.Until
	return tempora.PlanOp{
		Operation:    tempora.OpInsert,
		CausalID:     causal,
		IsNewEntity:  group.IsNewEntity,
		EntityKeys:   group.Identity,
		NewValidFrom: &from,
		NewValidUntil: &until,
		Data:         seg.PostPayload,
	}
}

func deleteOp(t *tempora.TargetRow) tempora.PlanOp {
	from, until := t.Interval.From, t.Interval.Until
	return tempora.PlanOp{
		Operation:     tempora.OpDelete,
		EntityKeys:    t.Identity,
		OldValidFrom:  &from,
		OldValidUntil: &until,
	}
}

func intervalDiffers(a, b tempora.Interval) (bool, error) {
	fc, err := tempora.CompareBounds(a.From, b.From)
	if err != nil {
		return false, err
	}
	uc, err := tempora.CompareBounds(a.Until, b.Until)
	if err != nil {
		return false, err
	}
	return fc != 0 || uc != 0, nil
}

// classifyUpdateEffect determines whether the new interval is a pure subset
// (SHRINK), pure superset (GROW), or neither (MOVE) of the old interval.
func classifyUpdateEffect(oldIv, newIv tempora.Interval) (tempora.UpdateEffect, error) {
	fc, err := tempora.CompareBounds(newIv.From, oldIv.From)
	if err != nil {
		return "", err
	}
	uc, err := tempora.CompareBounds(newIv.Until, oldIv.Until)
	if err != nil {
		return "", err
	}

	switch {
	case fc >= 0 && uc <= 0 && (fc > 0 || uc < 0):
		return tempora.EffectShrink, nil
	case fc <= 0 && uc >= 0 && (fc < 0 || uc > 0):
		return tempora.EffectGrow, nil
	default:
		return tempora.EffectMove, nil
	}
}

// buildFeedback assigns each source row in group exactly one outcome: an
// explicit rejection recorded by the Segment Classifier wins, else APPLIED
// if the row fed a DML op, else SKIPPED_ECLIPSED if every segment it
// covered is also covered by another source row of the batch, else
// SKIPPED_IDENTICAL (its segments never required a write).
func buildFeedback(group *internal.EntityGroup, classified []internal.ClassifiedSegment, applied map[int64]bool) []tempora.FeedbackRow {
	rejected := make(map[int64]tempora.FeedbackStatus)
	covered := make(map[int64]bool)
	alone := make(map[int64]bool) // covers at least one segment no other source row covers
	for _, seg := range classified {
		for id, status := range seg.RejectedSource {
			rejected[id] = status
		}
		for _, id := range seg.SourceRowIDs {
			covered[id] = true
		}
		if len(seg.SourceRowIDs) == 1 {
			alone[seg.SourceRowIDs[0]] = true
		}
	}

	out := make([]tempora.FeedbackRow, 0, len(group.Sources))
	for _, s := range group.Sources {
		fr := tempora.FeedbackRow{SourceRowID: s.RowID, TargetEntityKeys: group.Identity}
		switch {
		case rejected[s.RowID] != "":
			fr.Status = rejected[s.RowID]
		case applied[s.RowID]:
			fr.Status = tempora.FeedbackApplied
		case covered[s.RowID] && !alone[s.RowID]:
			fr.Status = tempora.FeedbackSkippedEclipsed
		default:
			fr.Status = tempora.FeedbackSkippedIdentical
		}
		out = append(out, fr)
	}
	return out
}

func markApplied(applied map[int64]bool, group *internal.EntityGroup, iv tempora.Interval) {
	for _, s := range group.Sources {
		ok, err := internal.IntervalOverlapsOrTouches(s.Interval, iv)
		if err == nil && ok {
			applied[s.RowID] = true
		}
	}
}
