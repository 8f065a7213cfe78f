package tempora

import "time"

// CompareBounds orders two interval endpoints under the domain's natural
// total order, with -infinity < every finite value < +infinity. It is the
// single comparison primitive the Interval Algebra and every downstream
// component builds on.
func CompareBounds(a, b Bound) (int, error) {
	if a.NegInfinity && b.NegInfinity {
		return 0, nil
	}
	if a.PosInfinity && b.PosInfinity {
		return 0, nil
	}
	if a.NegInfinity {
		return -1, nil
	}
	if b.NegInfinity {
		return 1, nil
	}
	if a.PosInfinity {
		return 1, nil
	}
	if b.PosInfinity {
		return -1, nil
	}
	return compareValues(a.Value, b.Value)
}

func compareValues(a, b any) (int, error) {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, NewValidationError("mismatched interval bound types")
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	case int:
		bv, ok := b.(int)
		if !ok {
			return 0, NewValidationError("mismatched interval bound types")
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, NewValidationError("mismatched interval bound types")
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, NewValidationError("mismatched interval bound types")
		}
		switch {
		case av.Before(bv):
			return -1, nil
		case av.After(bv):
			return 1, nil
		default:
			return 0, nil
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, NewValidationError("mismatched interval bound types")
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, NewValidationError("unsupported interval bound value type")
	}
}

func compareBounds(a, b Bound) (int, error) { return CompareBounds(a, b) }

// Successor returns the domain-appropriate next value after v, used to
// convert an inclusive valid_to into an exclusive valid_until on discrete
// domains.
func Successor(domain RangeDomain, v any) (any, error) {
	switch domain {
	case RangeDomainInteger, RangeDomainBigint:
		iv, ok := toInt64(v)
		if !ok {
			return nil, NewRangeDomainUnsupportedError(string(domain))
		}
		return iv + 1, nil
	case RangeDomainDate:
		tv, ok := v.(time.Time)
		if !ok {
			return nil, NewRangeDomainUnsupportedError(string(domain))
		}
		return tv.AddDate(0, 0, 1), nil
	case RangeDomainTimestamp, RangeDomainTimestampTZ:
		tv, ok := v.(time.Time)
		if !ok {
			return nil, NewRangeDomainUnsupportedError(string(domain))
		}
		return tv.Add(time.Microsecond), nil
	default:
		return nil, NewRangeDomainUnsupportedError(string(domain))
	}
}

func toInt64(v any) (int64, bool) {
	switch tv := v.(type) {
	case int64:
		return tv, true
	case int:
		return int64(tv), true
	case int32:
		return int64(tv), true
	default:
		return 0, false
	}
}
