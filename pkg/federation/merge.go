package federation

import (
	"sort"

	"github.com/developmentseed/stac-collection-federator/pkg/cursor"
	"github.com/developmentseed/stac-collection-federator/pkg/stac"
	"github.com/developmentseed/stac-collection-federator/pkg/upstream"
)

// Page is the merged result of one dispatch round: a bounded, ordered slice
// of collections, the next logical cursor (nil once every source is
// exhausted), and the sources that failed this round.
type Page struct {
	// Collections is the merged output, at most the requested limit.
	Collections []stac.FederatedCollection

	// Cursor is the next logical cursor; nil when all sources are exhausted.
	Cursor cursor.Logical

	// NextToken is Cursor in its opaque encoded form, empty when Cursor
	// is nil. Populated by the service, not by Merge.
	NextToken string

	// Failed lists the IDs of sources that failed this round, sorted.
	// Advisory only: a failed source degrades the page, never aborts it.
	Failed []string
}

// Merge combines per-source outcomes into one ordered page of at most
// limit items and derives the next logical cursor.
//
// Items beyond the limit are deferred: their source keeps its current page
// position with the consumed count added to its skip offset, so the next
// round re-fetches the same page and drops what was already returned. A
// source is marked exhausted only when its outcome was empty or when its
// final page was fully consumed. A failed source keeps its prior position
// untouched and is retried from there next round.
func Merge(outcomes map[string]upstream.Outcome, prior cursor.Logical, sortBy []stac.SortField, limit int) Page {
	var candidates []stac.FederatedCollection
	for id, o := range outcomes {
		if o.Failed() {
			continue
		}
		for _, col := range o.Items {
			candidates = append(candidates, stac.FederatedCollection{SourceID: id, Collection: col})
		}
	}

	// Each source's items arrive pre-sorted by the same order (the
	// adapter sorts every page), so a stable sort here means each
	// source's consumed items form a prefix of its page. The skip offset
	// in the cursor depends on that.
	sort.SliceStable(candidates, func(i, j int) bool {
		return stac.Compare(candidates[i], candidates[j], sortBy) < 0
	})

	merged := candidates
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	consumed := make(map[string]int, len(outcomes))
	for _, col := range merged {
		consumed[col.SourceID]++
	}

	next := make(cursor.Logical, len(outcomes))
	allExhausted := true
	var failed []string

	for id, o := range outcomes {
		var state cursor.State
		switch {
		case o.Failed():
			// A transient failure must not lose the source's position.
			state = prior[id]
			failed = append(failed, id)
		case o.Exhausted:
			state = cursor.State{Exhausted: true}
		default:
			got, used := len(o.Items), consumed[id]
			if used == got {
				if o.Next != "" {
					state = cursor.State{Next: o.Next}
				} else {
					state = cursor.State{Exhausted: true}
				}
			} else {
				// Deferred items: stay on the same page, widen the
				// skip window past everything consumed so far.
				state = cursor.State{
					Next: prior[id].Next,
					Skip: prior[id].Skip + used,
				}
			}
		}

		next[id] = state
		if !state.Exhausted {
			allExhausted = false
		}
	}

	if allExhausted {
		next = nil
	}
	sort.Strings(failed)

	return Page{
		Collections: merged,
		Cursor:      next,
		Failed:      failed,
	}
}
