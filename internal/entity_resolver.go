package internal

import (
	"context"
	"fmt"
	"sort"

	"github.com/lychee-technology/tempora"
)

// TargetSliceLoader retrieves the pre-existing target history for one
// entity's grouping key; union is the span the entity's source rows cover.
// DualPathTargetLoader, the implementation in this package, returns the
// entity's whole history; it does not narrow the read to union.
type TargetSliceLoader interface {
	LoadSlice(ctx context.Context, era *tempora.EraDescriptor, identity map[string]any, union tempora.Interval) ([]tempora.TargetRow, error)
	LookupEntity(ctx context.Context, era *tempora.EraDescriptor, lookup map[string]any) (map[string]any, bool, error)
}

// EntityGroup is the result of entity resolution for one grouping key: the
// source rows resolving to it and (once loaded) its pre-existing target
// timeline slice.
type EntityGroup struct {
	GroupingKey string
	IsNewEntity bool
	Identity    map[string]any // resolved identity columns, empty for a not-yet-founded entity
	Sources     []tempora.SourceRow
	Target      []tempora.TargetRow
}

// ResolveEntities implements the §4.4 algorithm: for each source row,
// iterate the ordered lookup keys to find the first fully-populated lookup,
// resolve it against the target (or mark the row founding), and group rows
// sharing a grouping_key.
func ResolveEntities(ctx context.Context, loader TargetSliceLoader, era *tempora.EraDescriptor, sources []tempora.SourceRow) ([]*EntityGroup, error) {
	groupsByKey := make(map[string]*EntityGroup)
	var order []string

	foundingGroupingKey := make(map[string]string) // founding_id -> grouping_key already assigned

	for _, s := range sources {
		groupingKey, identity, isNew, err := resolveOneRow(ctx, loader, era, s)
		if err != nil {
			return nil, err
		}

		if s.FoundingID != "" {
			if prev, ok := foundingGroupingKey[s.FoundingID]; ok && prev != groupingKey {
				return nil, tempora.NewConflictingFoundingLookupError(s.FoundingID)
			}
			foundingGroupingKey[s.FoundingID] = groupingKey
		}

		g, ok := groupsByKey[groupingKey]
		if !ok {
			g = &EntityGroup{GroupingKey: groupingKey, IsNewEntity: isNew, Identity: identity}
			groupsByKey[groupingKey] = g
			order = append(order, groupingKey)
		} else if !isNew {
			g.IsNewEntity = false
			if g.Identity == nil {
				g.Identity = identity
			} else if !identityEquals(g.Identity, identity) {
				return nil, tempora.NewConflictingIdentityResolutionError(groupingKey)
			}
		}
		g.Sources = append(g.Sources, s)
	}

	out := make([]*EntityGroup, 0, len(order))
	for _, key := range order {
		g := groupsByKey[key]
		sort.Slice(g.Sources, func(i, j int) bool { return g.Sources[i].RowID < g.Sources[j].RowID })

		if !g.IsNewEntity && g.Identity != nil {
			union, err := unionInterval(g.Sources)
			if err != nil {
				return nil, err
			}
			slice, err := loader.LoadSlice(ctx, era, g.Identity, union)
			if err != nil {
				return nil, err
			}
			g.Target = slice
		}

		out = append(out, g)
	}

	return out, nil
}

func resolveOneRow(ctx context.Context, loader TargetSliceLoader, era *tempora.EraDescriptor, s tempora.SourceRow) (groupingKey string, identity map[string]any, isNew bool, err error) {
	for idx, lookup := range era.LookupKeys {
		cols, ok := s.EntityKeysPerLookup[idx]
		if !ok || !allColumnsPresent(lookup, cols) {
			continue
		}

		found, exists, lerr := loader.LookupEntity(ctx, era, cols)
		if lerr != nil {
			return "", nil, false, lerr
		}
		if exists {
			return identityProjectionKey(era, found), found, false, nil
		}
	}

	causal := s.FoundingID
	if causal == "" {
		causal = fmt.Sprintf("%d", s.RowID)
	}
	return fmt.Sprintf("§founding:%s", causal), nil, true, nil
}

func allColumnsPresent(lookup []string, cols map[string]any) bool {
	if len(cols) == 0 {
		return false
	}
	for _, c := range lookup {
		v, ok := cols[c]
		if !ok || v == nil {
			return false
		}
	}
	return true
}

func identityEquals(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || fmt.Sprintf("%v", v) != fmt.Sprintf("%v", bv) {
			return false
		}
	}
	return true
}

func identityProjectionKey(era *tempora.EraDescriptor, identity map[string]any) string {
	key := ""
	for _, c := range era.Identity {
		key += fmt.Sprintf("%s=%v;", c, identity[c])
	}
	return key
}

func unionInterval(sources []tempora.SourceRow) (tempora.Interval, error) {
	if len(sources) == 0 {
		return tempora.Interval{}, nil
	}
	from := sources[0].Interval.From
	until := sources[0].Interval.Until
	for _, s := range sources[1:] {
		if cmp, err := tempora.CompareBounds(s.Interval.From, from); err != nil {
			return tempora.Interval{}, err
		} else if cmp < 0 {
			from = s.Interval.From
		}
		if cmp, err := tempora.CompareBounds(s.Interval.Until, until); err != nil {
			return tempora.Interval{}, err
		} else if cmp > 0 {
			until = s.Interval.Until
		}
	}
	return tempora.Interval{From: from, Until: until}, nil
}
