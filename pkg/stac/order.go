package stac

import "strings"

// DefaultSort orders by update timestamp, newest first. Collections without
// a timestamp sort last.
var DefaultSort = []SortField{{Field: "updated", Direction: SortDesc}}

// Compare is the total order used across the federation core: the requested
// sort fields first, then source ID, then collection ID. The tiebreak keeps
// pagination deterministic for identical inputs regardless of upstream
// arrival order.
func Compare(a, b FederatedCollection, sortBy []SortField) int {
	if len(sortBy) == 0 {
		sortBy = DefaultSort
	}

	for _, f := range sortBy {
		av, bv := a.SortValue(f.Field), b.SortValue(f.Field)
		if av == bv {
			continue
		}
		c := strings.Compare(av, bv)
		if f.Direction == SortDesc {
			c = -c
		}
		return c
	}

	if a.SourceID != b.SourceID {
		return strings.Compare(a.SourceID, b.SourceID)
	}
	return strings.Compare(a.ID, b.ID)
}
