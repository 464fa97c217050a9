package stac

import (
	"testing"
	"time"
)

func fc(source, id string, updated time.Time) FederatedCollection {
	return FederatedCollection{
		SourceID:   source,
		Collection: Collection{ID: id, Updated: updated},
	}
}

func TestCompare_DefaultOrder(t *testing.T) {
	older := fc("a", "old", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := fc("b", "new", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	missing := fc("a", "undated", time.Time{})

	// Default order is updated descending, so newer sorts first and
	// collections without a timestamp sort last.
	if Compare(newer, older, nil) >= 0 {
		t.Error("newer should sort before older")
	}
	if Compare(older, missing, nil) >= 0 {
		t.Error("dated should sort before undated")
	}
}

func TestCompare_Tiebreak(t *testing.T) {
	same := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a1 := fc("alpha", "col-1", same)
	b1 := fc("beta", "col-1", same)
	a2 := fc("alpha", "col-2", same)

	if Compare(a1, b1, nil) >= 0 {
		t.Error("equal sort values should tiebreak by source id")
	}
	if Compare(a1, a2, nil) >= 0 {
		t.Error("equal sort values and source should tiebreak by collection id")
	}
}

func TestCompare_ExplicitSort(t *testing.T) {
	x := FederatedCollection{SourceID: "s", Collection: Collection{ID: "x", Title: "Apples"}}
	y := FederatedCollection{SourceID: "s", Collection: Collection{ID: "y", Title: "Bananas"}}

	asc := []SortField{{Field: "title", Direction: SortAsc}}
	desc := []SortField{{Field: "title", Direction: SortDesc}}

	if Compare(x, y, asc) >= 0 {
		t.Error("ascending title: Apples should sort before Bananas")
	}
	if Compare(x, y, desc) <= 0 {
		t.Error("descending title: Bananas should sort before Apples")
	}
}
