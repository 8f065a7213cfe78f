package planner

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lychee-technology/tempora"
	"github.com/lychee-technology/tempora/internal"
)

func ivp(from, until int64) tempora.Interval {
	return tempora.Interval{From: tempora.FiniteBound(from), Until: tempora.FiniteBound(until)}
}

func testEraP() *tempora.EraDescriptor {
	return &tempora.EraDescriptor{
		Schema:     "public",
		Table:      "employees",
		EraName:    "valid",
		Identity:   []string{"employee_id"},
		Domain:     tempora.RangeDomainBigint,
		ValidFrom:  "valid_from",
		ValidUntil: "valid_until",
	}
}

func TestPlanInsertsNewEntity(t *testing.T) {
	era := testEraP()
	group := &internal.EntityGroup{
		IsNewEntity: true,
		Identity:    map[string]any{"employee_id": "emp-1"},
		Sources:     []tempora.SourceRow{{RowID: 1, Interval: ivp(0, 10), FoundingID: "f-1"}},
	}
	coalesced := []internal.CoalescedSegment{
		{Interval: ivp(0, 10), PostPayload: map[string]any{"name": "Alex"}},
	}
	classified := []internal.ClassifiedSegment{
		{Interval: ivp(0, 10), PostPayload: map[string]any{"name": "Alex"}, SourceRowIDs: []int64{1}},
	}

	ops, feedback, err := Plan(era, group, coalesced, classified)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != tempora.OpInsert {
		t.Fatalf("expected a single INSERT op, got %+v", ops)
	}
	if !ops[0].IsNewEntity {
		t.Fatalf("expected IsNewEntity to be set")
	}
	if len(feedback) != 1 || feedback[0].Status != tempora.FeedbackApplied {
		t.Fatalf("expected source row to be APPLIED, got %+v", feedback)
	}
}

func TestPlanSkipsIdenticalSegment(t *testing.T) {
	era := testEraP()
	targetID := uuid.New()
	target := tempora.TargetRow{RowID: targetID, Identity: map[string]any{"employee_id": "emp-1"}, Interval: ivp(0, 10), Payload: map[string]any{"name": "Alex"}}
	group := &internal.EntityGroup{
		Identity: map[string]any{"employee_id": "emp-1"},
		Target:   []tempora.TargetRow{target},
		Sources:  []tempora.SourceRow{{RowID: 1, Interval: ivp(0, 10)}},
	}
	coalesced := []internal.CoalescedSegment{
		{Interval: ivp(0, 10), TargetRow: &target, PostPayload: map[string]any{"name": "Alex"}},
	}
	classified := []internal.ClassifiedSegment{
		{Interval: ivp(0, 10), TargetRow: &target, PostPayload: map[string]any{"name": "Alex"}, SourceRowIDs: []int64{1}},
	}

	ops, feedback, err := Plan(era, group, coalesced, classified)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != tempora.OpSkipIdentical {
		t.Fatalf("expected a single SKIP_IDENTICAL op, got %+v", ops)
	}
	if feedback[0].Status != tempora.FeedbackSkippedIdentical {
		t.Fatalf("expected SKIPPED_IDENTICAL feedback, got %+v", feedback)
	}
}

func TestPlanShrinkUpdate(t *testing.T) {
	era := testEraP()
	targetID := uuid.New()
	target := tempora.TargetRow{RowID: targetID, Identity: map[string]any{"employee_id": "emp-1"}, Interval: ivp(0, 20), Payload: map[string]any{"name": "Alex"}}
	group := &internal.EntityGroup{
		Identity: map[string]any{"employee_id": "emp-1"},
		Target:   []tempora.TargetRow{target},
		Sources:  []tempora.SourceRow{{RowID: 1, Interval: ivp(5, 15)}},
	}
	coalesced := []internal.CoalescedSegment{
		{Interval: ivp(5, 15), TargetRow: &target, PostPayload: map[string]any{"name": "Alex"}},
	}
	classified := []internal.ClassifiedSegment{
		{Interval: ivp(5, 15), TargetRow: &target, PostPayload: map[string]any{"name": "Alex"}, SourceRowIDs: []int64{1}},
	}

	ops, _, err := Plan(era, group, coalesced, classified)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != tempora.OpUpdate || ops[0].UpdateEffect != tempora.EffectShrink {
		t.Fatalf("expected a SHRINK update, got %+v", ops)
	}
}

func TestPlanGrowUpdate(t *testing.T) {
	era := testEraP()
	targetID := uuid.New()
	target := tempora.TargetRow{RowID: targetID, Identity: map[string]any{"employee_id": "emp-1"}, Interval: ivp(5, 15), Payload: map[string]any{"name": "Alex"}}
	group := &internal.EntityGroup{
		Identity: map[string]any{"employee_id": "emp-1"},
		Target:   []tempora.TargetRow{target},
		Sources:  []tempora.SourceRow{{RowID: 1, Interval: ivp(0, 20)}},
	}
	coalesced := []internal.CoalescedSegment{
		{Interval: ivp(0, 20), TargetRow: &target, PostPayload: map[string]any{"name": "Alex"}},
	}
	classified := []internal.ClassifiedSegment{
		{Interval: ivp(0, 20), TargetRow: &target, PostPayload: map[string]any{"name": "Alex"}, SourceRowIDs: []int64{1}},
	}

	ops, _, err := Plan(era, group, coalesced, classified)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != tempora.OpUpdate || ops[0].UpdateEffect != tempora.EffectGrow {
		t.Fatalf("expected a GROW update, got %+v", ops)
	}
}

func TestPlanDeletesOrphanedTargetRow(t *testing.T) {
	era := testEraP()
	targetID := uuid.New()
	target := tempora.TargetRow{RowID: targetID, Identity: map[string]any{"employee_id": "emp-1"}, Interval: ivp(0, 10), Payload: map[string]any{"name": "Alex"}}
	group := &internal.EntityGroup{
		Identity: map[string]any{"employee_id": "emp-1"},
		Target:   []tempora.TargetRow{target},
	}
	// no coalesced segment continues this target row — it must be deleted.
	ops, _, err := Plan(era, group, nil, nil)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != tempora.OpDelete {
		t.Fatalf("expected a single DELETE op, got %+v", ops)
	}
}

func TestPlanOrdersDeleteBeforeUpdateBeforeInsert(t *testing.T) {
	era := testEraP()
	keptID := uuid.New()
	goneID := uuid.New()
	kept := tempora.TargetRow{RowID: keptID, Identity: map[string]any{"employee_id": "emp-1"}, Interval: ivp(0, 20), Payload: map[string]any{"name": "Alex"}}
	gone := tempora.TargetRow{RowID: goneID, Identity: map[string]any{"employee_id": "emp-2"}, Interval: ivp(0, 10), Payload: map[string]any{"name": "Taylor"}}

	group := &internal.EntityGroup{
		Identity: map[string]any{"employee_id": "emp-1"},
		Target:   []tempora.TargetRow{kept, gone},
		Sources:  []tempora.SourceRow{{RowID: 1, Interval: ivp(5, 15)}, {RowID: 2, Interval: ivp(30, 40)}},
	}
	coalesced := []internal.CoalescedSegment{
		{Interval: ivp(5, 15), TargetRow: &kept, PostPayload: map[string]any{"name": "Alex"}},
		{Interval: ivp(30, 40), PostPayload: map[string]any{"name": "New"}},
	}
	classified := []internal.ClassifiedSegment{
		{Interval: ivp(5, 15), TargetRow: &kept, PostPayload: map[string]any{"name": "Alex"}, SourceRowIDs: []int64{1}},
		{Interval: ivp(30, 40), PostPayload: map[string]any{"name": "New"}, SourceRowIDs: []int64{2}},
	}

	ops, _, err := Plan(era, group, coalesced, classified)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d: %+v", len(ops), ops)
	}
	if ops[0].Operation != tempora.OpDelete {
		t.Fatalf("expected DELETE first, got %+v", ops[0])
	}
	if ops[1].Operation != tempora.OpUpdate {
		t.Fatalf("expected UPDATE second, got %+v", ops[1])
	}
	if ops[2].Operation != tempora.OpInsert {
		t.Fatalf("expected INSERT last, got %+v", ops[2])
	}
	for i, op := range ops {
		if op.PlanOpSeq != i {
			t.Fatalf("expected PlanOpSeq %d to match position, got %d", i, op.PlanOpSeq)
		}
	}
}
