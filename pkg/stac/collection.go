package stac

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection is a summary of one upstream collection. The full upstream
// object is retained verbatim in Raw; the typed fields cover everything the
// merge engine sorts on.
type Collection struct {
	ID      string
	Title   string
	Created time.Time
	Updated time.Time

	// Raw is the collection object exactly as the upstream returned it.
	Raw json.RawMessage
}

// SortValue returns the comparable string form of a sort field. Timestamps
// use RFC 3339 so lexicographic comparison matches chronological order.
func (c Collection) SortValue(field string) string {
	switch field {
	case "id":
		return c.ID
	case "title":
		return c.Title
	case "created":
		if c.Created.IsZero() {
			return ""
		}
		return c.Created.UTC().Format(time.RFC3339Nano)
	case "updated":
		if c.Updated.IsZero() {
			return ""
		}
		return c.Updated.UTC().Format(time.RFC3339Nano)
	default:
		// Unknown sort fields fall back to the raw property value.
		var props map[string]json.RawMessage
		if err := json.Unmarshal(c.Raw, &props); err != nil {
			return ""
		}
		raw, ok := props[field]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		return s
	}
}

// FederatedCollection tags a collection with the source it came from.
type FederatedCollection struct {
	SourceID string
	Collection
}

// collectionsDocument is the wire shape of an OGC /collections response.
type collectionsDocument struct {
	Collections []json.RawMessage `json:"collections"`
	Links       []Link            `json:"links"`
}

// Link is one OGC link relation.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

type collectionHeader struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Created string `json:"created"`
	Updated string `json:"updated"`
}

// ParseCollectionsDocument parses an upstream /collections response body
// into collection summaries and the upstream's next-page href (empty when
// the upstream advertises no further pages).
func ParseCollectionsDocument(body []byte) ([]Collection, string, error) {
	var doc collectionsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, "", fmt.Errorf("parse collections document: %w", err)
	}
	if doc.Collections == nil {
		return nil, "", fmt.Errorf("collections document missing 'collections' array")
	}

	collections := make([]Collection, 0, len(doc.Collections))
	for i, raw := range doc.Collections {
		var hdr collectionHeader
		if err := json.Unmarshal(raw, &hdr); err != nil {
			return nil, "", fmt.Errorf("parse collection %d: %w", i, err)
		}
		if hdr.ID == "" {
			return nil, "", fmt.Errorf("collection %d has no id", i)
		}

		collections = append(collections, Collection{
			ID:      hdr.ID,
			Title:   hdr.Title,
			Created: parseTimestamp(hdr.Created),
			Updated: parseTimestamp(hdr.Updated),
			Raw:     raw,
		})
	}

	var next string
	for _, link := range doc.Links {
		if link.Rel == "next" {
			next = link.Href
			break
		}
	}

	return collections, next, nil
}

// parseTimestamp is lenient: upstreams disagree on sub-second precision and
// some omit the field entirely. A zero time means "not provided".
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
