package internal

import (
	"sort"

	"github.com/lychee-technology/tempora"
)

// Relate computes Allen's relation between two half-open intervals
// [a.From, a.Until) and [b.From, b.Until). Both intervals must be
// non-empty; callers are responsible for rejecting empty intervals earlier
// in the pipeline (Source Ingestor / Timeline Segmenter).
func Relate(a, b tempora.Interval) (tempora.AllenRelation, error) {
	ac, err := tempora.CompareBounds(a.From, b.From) // a vs c
	if err != nil {
		return "", err
	}
	bd, err := tempora.CompareBounds(a.Until, b.Until) // b vs d
	if err != nil {
		return "", err
	}
	bc, err := tempora.CompareBounds(a.Until, b.From) // b vs c
	if err != nil {
		return "", err
	}
	ad, err := tempora.CompareBounds(a.From, b.Until) // a vs d
	if err != nil {
		return "", err
	}

	switch {
	case bc < 0:
		return tempora.RelPrecedes, nil
	case bc == 0:
		return tempora.RelMeets, nil
	}

	switch {
	case ac == 0 && bd == 0:
		return tempora.RelEquals, nil
	case ac == 0 && bd < 0:
		return tempora.RelStarts, nil
	case ac == 0 && bd > 0:
		return tempora.RelStartedBy, nil
	case bd == 0 && ac > 0:
		return tempora.RelFinishes, nil
	case bd == 0 && ac < 0:
		return tempora.RelFinishedBy, nil
	case ac > 0 && bd < 0:
		return tempora.RelDuring, nil
	case ac < 0 && bd > 0:
		return tempora.RelContains, nil
	case ac < 0 && bc > 0 && bd < 0:
		return tempora.RelOverlaps, nil
	case ac > 0 && ad < 0 && bd > 0:
		return tempora.RelOverlappedBy, nil
	}

	// Remaining precedes/meets symmetric cases: db vs ca already covered by
	// bc above for "a before b"; handle "b before a" (preceded_by/met_by).
	cd, err := tempora.CompareBounds(b.Until, a.From)
	if err != nil {
		return "", err
	}
	switch {
	case cd < 0:
		return tempora.RelPrecededBy, nil
	case cd == 0:
		return tempora.RelMetBy, nil
	}

	return "", tempora.NewPlannerInvariantViolationError("interval relation did not resolve to any of Allen's 13 cases")
}

// successorValue returns the domain's next value after v for discrete
// domains, used when converting an inclusive valid_to bound into an
// exclusive valid_until bound.
func successorValue(domain tempora.RangeDomain, v any) (any, error) {
	return tempora.Successor(domain, v)
}

// meetsWithoutGap reports whether bound b (the end of an earlier interval)
// and bound c (the start of a later interval) are contiguous: true for
// b == c always (half-open convention), and also true for discrete domains
// when b is the successor of a value and c equals it — i.e. no representable
// value falls strictly between them. Per the era descriptor's discreteness
// flag, discrete domains never introduce a *representable* gap at equality
// boundaries beyond what CompareBounds already reports, so this reduces to
// an equality check; it exists to make that domain-dependent reasoning
// explicit at the one place the coverage aggregate depends on it.
func meetsWithoutGap(domain tempora.RangeDomain, b, c tempora.Bound) (bool, error) {
	cmp, err := tempora.CompareBounds(b, c)
	if err != nil {
		return false, err
	}
	return cmp == 0, nil
}

// CoverageAggregate determines whether the union of sorted intervals rs
// covers target. rs must be sorted by From; InputNotSorted is returned
// otherwise. A nil target returns (false, nil) with ok=false signalling
// "null" per the spec (no coverage question was asked).
func CoverageAggregate(domain tempora.RangeDomain, rs []tempora.Interval, target *tempora.Interval) (covers bool, ok bool, err error) {
	if target == nil {
		return false, false, nil
	}
	if target.IsEmpty() {
		return true, true, nil
	}
	for i := 1; i < len(rs); i++ {
		cmp, cerr := tempora.CompareBounds(rs[i-1].From, rs[i].From)
		if cerr != nil {
			return false, false, cerr
		}
		if cmp > 0 {
			return false, false, tempora.NewInputNotSortedError("coverage_aggregate")
		}
	}

	cur := target.From
	for _, r := range rs {
		cmpFrom, cerr := tempora.CompareBounds(r.From, cur)
		if cerr != nil {
			return false, false, cerr
		}
		cmpUntilCur, cerr := tempora.CompareBounds(r.Until, cur)
		if cerr != nil {
			return false, false, cerr
		}
		if cmpFrom > 0 {
			contiguous, gerr := meetsWithoutGap(domain, cur, r.From)
			if gerr != nil {
				return false, false, gerr
			}
			if !contiguous {
				return false, true, nil
			}
		}
		if cmpUntilCur <= 0 {
			continue // this interval ends at or before cur; doesn't extend coverage
		}
		cur = r.Until
		cmpDone, cerr := tempora.CompareBounds(cur, target.Until)
		if cerr != nil {
			return false, false, cerr
		}
		if cmpDone >= 0 {
			return true, true, nil
		}
	}
	return false, true, nil
}

// IntervalOverlapsOrTouches reports whether a and b share any point, used
// by the DML Planner to attribute a coalesced span back to the source rows
// that fed into it for feedback purposes.
func IntervalOverlapsOrTouches(a, b tempora.Interval) (bool, error) {
	fc, err := tempora.CompareBounds(a.From, b.Until)
	if err != nil {
		return false, err
	}
	uc, err := tempora.CompareBounds(b.From, a.Until)
	if err != nil {
		return false, err
	}
	return fc < 0 && uc < 0, nil
}

// endpointSet builds the sorted, de-duplicated set of distinct bounds
// appearing across the supplied intervals, used by the Timeline Segmenter.
func endpointSet(intervals []tempora.Interval) ([]tempora.Bound, error) {
	bounds := make([]tempora.Bound, 0, len(intervals)*2)
	for _, iv := range intervals {
		bounds = append(bounds, iv.From, iv.Until)
	}
	sort.Slice(bounds, func(i, j int) bool {
		cmp, _ := tempora.CompareBounds(bounds[i], bounds[j])
		return cmp < 0
	})
	out := bounds[:0:0]
	for i, b := range bounds {
		if i == 0 {
			out = append(out, b)
			continue
		}
		cmp, err := tempora.CompareBounds(out[len(out)-1], b)
		if err != nil {
			return nil, err
		}
		if cmp != 0 {
			out = append(out, b)
		}
	}
	return out, nil
}
