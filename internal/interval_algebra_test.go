package internal

import (
	"testing"

	"github.com/lychee-technology/tempora"
)

func iv(from, until int64) tempora.Interval {
	return tempora.Interval{From: tempora.FiniteBound(from), Until: tempora.FiniteBound(until)}
}

func TestRelateAllenCases(t *testing.T) {
	cases := []struct {
		name string
		a, b tempora.Interval
		want tempora.AllenRelation
	}{
		{"precedes", iv(0, 5), iv(10, 15), tempora.RelPrecedes},
		{"preceded_by", iv(10, 15), iv(0, 5), tempora.RelPrecededBy},
		{"meets", iv(0, 5), iv(5, 10), tempora.RelMeets},
		{"met_by", iv(5, 10), iv(0, 5), tempora.RelMetBy},
		{"overlaps", iv(0, 10), iv(5, 15), tempora.RelOverlaps},
		{"overlapped_by", iv(5, 15), iv(0, 10), tempora.RelOverlappedBy},
		{"starts", iv(0, 5), iv(0, 10), tempora.RelStarts},
		{"started_by", iv(0, 10), iv(0, 5), tempora.RelStartedBy},
		{"during", iv(5, 8), iv(0, 10), tempora.RelDuring},
		{"contains", iv(0, 10), iv(5, 8), tempora.RelContains},
		{"finishes", iv(5, 10), iv(0, 10), tempora.RelFinishes},
		{"finished_by", iv(0, 10), iv(5, 10), tempora.RelFinishedBy},
		{"equals", iv(0, 10), iv(0, 10), tempora.RelEquals},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Relate(tc.a, tc.b)
			if err != nil {
				t.Fatalf("Relate returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Relate(%v, %v) = %q, want %q", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestRelateWithInfiniteBounds(t *testing.T) {
	a := tempora.Interval{From: tempora.NegInfBound(), Until: tempora.FiniteBound(int64(10))}
	b := tempora.Interval{From: tempora.FiniteBound(int64(5)), Until: tempora.PosInfBound()}

	got, err := Relate(a, b)
	if err != nil {
		t.Fatalf("Relate returned error: %v", err)
	}
	if got != tempora.RelOverlaps {
		t.Fatalf("Relate with infinite bounds = %q, want overlaps", got)
	}
}

func TestCoverageAggregateFullCoverage(t *testing.T) {
	rs := []tempora.Interval{iv(0, 5), iv(5, 10), iv(10, 20)}
	target := iv(0, 20)

	covers, ok, err := CoverageAggregate(tempora.RangeDomainBigint, rs, &target)
	if err != nil {
		t.Fatalf("CoverageAggregate returned error: %v", err)
	}
	if !ok || !covers {
		t.Fatalf("expected full coverage, got covers=%v ok=%v", covers, ok)
	}
}

func TestCoverageAggregateGap(t *testing.T) {
	rs := []tempora.Interval{iv(0, 5), iv(7, 10)}
	target := iv(0, 10)

	covers, ok, err := CoverageAggregate(tempora.RangeDomainBigint, rs, &target)
	if err != nil {
		t.Fatalf("CoverageAggregate returned error: %v", err)
	}
	if !ok || covers {
		t.Fatalf("expected a reported gap (covers=false, ok=true), got covers=%v ok=%v", covers, ok)
	}
}

func TestCoverageAggregateUnsortedInput(t *testing.T) {
	rs := []tempora.Interval{iv(5, 10), iv(0, 5)}
	target := iv(0, 10)

	_, _, err := CoverageAggregate(tempora.RangeDomainBigint, rs, &target)
	if !tempora.IsInputNotSorted(err) {
		t.Fatalf("expected InputNotSorted error, got %v", err)
	}
}

func TestCoverageAggregateNilTarget(t *testing.T) {
	covers, ok, err := CoverageAggregate(tempora.RangeDomainBigint, nil, nil)
	if err != nil {
		t.Fatalf("CoverageAggregate returned error: %v", err)
	}
	if covers || ok {
		t.Fatalf("expected (false, false) for nil target, got (%v, %v)", covers, ok)
	}
}

func TestIntervalOverlapsOrTouches(t *testing.T) {
	overlapping, err := IntervalOverlapsOrTouches(iv(0, 10), iv(5, 15))
	if err != nil {
		t.Fatalf("IntervalOverlapsOrTouches returned error: %v", err)
	}
	if !overlapping {
		t.Fatalf("expected overlap")
	}

	disjoint, err := IntervalOverlapsOrTouches(iv(0, 5), iv(10, 15))
	if err != nil {
		t.Fatalf("IntervalOverlapsOrTouches returned error: %v", err)
	}
	if disjoint {
		t.Fatalf("expected no overlap")
	}
}
