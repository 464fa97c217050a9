package stac

import (
	"testing"
	"time"
)

func TestParseCollectionsDocument(t *testing.T) {
	body := []byte(`{
		"collections": [
			{"id": "sentinel-2-l2a", "title": "Sentinel-2 L2A", "updated": "2024-03-01T12:00:00Z"},
			{"id": "landsat-c2-l2", "created": "2020-01-15T00:00:00Z"}
		],
		"links": [
			{"rel": "self", "href": "https://stac.example.com/collections"},
			{"rel": "next", "href": "https://stac.example.com/collections?page=2"}
		]
	}`)

	collections, next, err := ParseCollectionsDocument(body)
	if err != nil {
		t.Fatalf("ParseCollectionsDocument failed: %v", err)
	}

	if len(collections) != 2 {
		t.Fatalf("got %d collections, want 2", len(collections))
	}
	if collections[0].ID != "sentinel-2-l2a" {
		t.Errorf("collections[0].ID = %q", collections[0].ID)
	}
	if collections[0].Title != "Sentinel-2 L2A" {
		t.Errorf("collections[0].Title = %q", collections[0].Title)
	}
	wantUpdated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !collections[0].Updated.Equal(wantUpdated) {
		t.Errorf("collections[0].Updated = %v, want %v", collections[0].Updated, wantUpdated)
	}
	if !collections[1].Updated.IsZero() {
		t.Errorf("collections[1].Updated should be zero, got %v", collections[1].Updated)
	}
	if len(collections[1].Raw) == 0 {
		t.Error("raw collection body not retained")
	}

	if next != "https://stac.example.com/collections?page=2" {
		t.Errorf("next = %q", next)
	}
}

func TestParseCollectionsDocument_NoNextLink(t *testing.T) {
	body := []byte(`{"collections": [{"id": "only"}], "links": [{"rel": "self", "href": "x"}]}`)

	collections, next, err := ParseCollectionsDocument(body)
	if err != nil {
		t.Fatalf("ParseCollectionsDocument failed: %v", err)
	}
	if len(collections) != 1 || next != "" {
		t.Errorf("got %d collections, next %q; want 1 and empty", len(collections), next)
	}
}

func TestParseCollectionsDocument_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>404</html>"},
		{"missing collections array", `{"links": []}`},
		{"collection without id", `{"collections": [{"title": "anonymous"}], "links": []}`},
		{"collection not an object", `{"collections": ["nope"], "links": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseCollectionsDocument([]byte(tt.body)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestCollection_SortValue(t *testing.T) {
	col := Collection{
		ID:      "c1",
		Title:   "First",
		Updated: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Raw:     []byte(`{"id": "c1", "license": "CC-BY-4.0", "priority": 7}`),
	}

	tests := []struct {
		field string
		want  string
	}{
		{"id", "c1"},
		{"title", "First"},
		{"updated", "2024-01-02T03:04:05Z"},
		{"created", ""},
		{"license", "CC-BY-4.0"},
		{"priority", "7"},
		{"missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if got := col.SortValue(tt.field); got != tt.want {
				t.Errorf("SortValue(%q) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}
