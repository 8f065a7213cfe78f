package tempora

import (
	"testing"
	"time"
)

func TestCompareBoundsInfinities(t *testing.T) {
	neg := NegInfBound()
	pos := PosInfBound()
	finite := FiniteBound(int64(5))

	if cmp, err := CompareBounds(neg, finite); err != nil || cmp >= 0 {
		t.Fatalf("expected -infinity < finite, got cmp=%d err=%v", cmp, err)
	}
	if cmp, err := CompareBounds(pos, finite); err != nil || cmp <= 0 {
		t.Fatalf("expected +infinity > finite, got cmp=%d err=%v", cmp, err)
	}
	if cmp, err := CompareBounds(neg, neg); err != nil || cmp != 0 {
		t.Fatalf("expected -infinity == -infinity, got cmp=%d err=%v", cmp, err)
	}
}

func TestCompareBoundsMismatchedTypesErrors(t *testing.T) {
	_, err := CompareBounds(FiniteBound(int64(5)), FiniteBound("five"))
	if !IsKind(err, ErrKindValidation) {
		t.Fatalf("expected a validation error for mismatched bound types, got %v", err)
	}
}

func TestCompareBoundsTimeValues(t *testing.T) {
	earlier := FiniteBound(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	later := FiniteBound(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	cmp, err := CompareBounds(earlier, later)
	if err != nil {
		t.Fatalf("CompareBounds returned error: %v", err)
	}
	if cmp >= 0 {
		t.Fatalf("expected earlier < later, got %d", cmp)
	}
}

func TestSuccessorForDiscreteDomains(t *testing.T) {
	next, err := Successor(RangeDomainBigint, int64(5))
	if err != nil {
		t.Fatalf("Successor returned error: %v", err)
	}
	if next.(int64) != 6 {
		t.Fatalf("expected successor of 5 to be 6, got %v", next)
	}

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nextDay, err := Successor(RangeDomainDate, day)
	if err != nil {
		t.Fatalf("Successor returned error: %v", err)
	}
	if !nextDay.(time.Time).Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("expected successor of a date to add one day, got %v", nextDay)
	}
}

func TestSuccessorUnsupportedDomain(t *testing.T) {
	_, err := Successor(RangeDomainNumeric, 5.0)
	if !IsKind(err, ErrKindRangeDomainUnsupported) {
		t.Fatalf("expected RangeDomainUnsupported for a continuous numeric domain, got %v", err)
	}
}

func TestIntervalIsEmpty(t *testing.T) {
	empty := Interval{From: FiniteBound(int64(5)), Until: FiniteBound(int64(5))}
	if !empty.IsEmpty() {
		t.Fatalf("expected an interval with From == Until to be empty")
	}

	nonEmpty := Interval{From: FiniteBound(int64(5)), Until: FiniteBound(int64(10))}
	if nonEmpty.IsEmpty() {
		t.Fatalf("expected an interval with From < Until to be non-empty")
	}
}

func TestRangeDomainDiscrete(t *testing.T) {
	if !RangeDomainBigint.Discrete() {
		t.Fatalf("expected bigint domain to be discrete")
	}
	if RangeDomainNumeric.Discrete() {
		t.Fatalf("expected numeric domain to be continuous")
	}
}
