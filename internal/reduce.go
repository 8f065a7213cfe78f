package internal

import "github.com/lychee-technology/tempora"

// reduce combines the payloads of every source row covering one atomic
// segment into a single post-image, last-row_id-wins on conflict. Rows must
// already be ordered by row_id (Segment/ResolveEntities both sort that way).
// Ephemeral columns are excluded: they never survive into a DML payload.
func reduce(era *tempora.EraDescriptor, rows []tempora.SourceRow) map[string]any {
	return reduceInto(era, rows, false)
}

// reduceIgnoringNull is reduce, except a later row's explicit nil for a
// column does not erase an earlier row's non-nil value for that column —
// null means "no opinion" rather than "clear this column".
func reduceIgnoringNull(era *tempora.EraDescriptor, rows []tempora.SourceRow) map[string]any {
	return reduceInto(era, rows, true)
}

func reduceInto(era *tempora.EraDescriptor, rows []tempora.SourceRow, ignoreNull bool) map[string]any {
	out := make(map[string]any)
	for _, r := range rows {
		for k, v := range r.Payload {
			if era.IsEphemeral(k) {
				continue
			}
			if ignoreNull && v == nil {
				continue
			}
			out[k] = v
		}
	}
	return out
}

// applyOverride implements T ⊕ P: column-wise override of target by patch.
// When ignoreNull is true (PATCH-family modes), a nil in patch leaves the
// corresponding target column untouched instead of clearing it.
func applyOverride(target map[string]any, patch map[string]any, ignoreNull bool) map[string]any {
	out := make(map[string]any, len(target)+len(patch))
	for k, v := range target {
		out[k] = v
	}
	for k, v := range patch {
		if ignoreNull && v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// payloadEquals reports whether two payloads agree on every non-ephemeral
// column, used by the Coalescer to decide whether adjacent segments carry
// the same post-image.
func payloadEquals(era *tempora.EraDescriptor, a, b map[string]any) bool {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	for k := range keys {
		if era.IsEphemeral(k) {
			continue
		}
		av, aok := a[k]
		bv, bok := b[k]
		if aok != bok {
			return false
		}
		if aok && !valueEquals(av, bv) {
			return false
		}
	}
	return true
}

// PayloadEquals is the exported form of payloadEquals, for use by the
// planner package when diffing a coalesced segment against its
// pre-existing target row.
func PayloadEquals(era *tempora.EraDescriptor, a, b map[string]any) bool {
	return payloadEquals(era, a, b)
}

func valueEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b
}
