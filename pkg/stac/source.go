// Package stac defines the shared data model for federated STAC collection
// search: upstream sources, search requests, and collection summaries.
package stac

import (
	"fmt"
	"net/url"
	"strings"
)

// Source identifies one configured upstream STAC API.
// Sources are built once at startup and never mutated afterwards.
type Source struct {
	// ID is the stable identifier used in cursors, health reports, and logs.
	ID string

	// URL is the API base address without a trailing slash.
	URL string
}

// NewSource builds a Source from a base URL, deriving a stable identifier
// from the URL host and path when no explicit ID is given.
func NewSource(id, rawURL string) (Source, error) {
	rawURL = strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if rawURL == "" {
		return Source{}, fmt.Errorf("source URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Source{}, fmt.Errorf("parse source URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Source{}, fmt.Errorf("source URL %q: unsupported scheme %q", rawURL, u.Scheme)
	}

	if id == "" {
		id = deriveID(u)
	}

	return Source{ID: id, URL: rawURL}, nil
}

// deriveID turns "https://stac.example.com/api/v1" into "stac.example.com-api-v1".
func deriveID(u *url.URL) string {
	id := u.Host
	if p := strings.Trim(u.Path, "/"); p != "" {
		id += "-" + strings.ReplaceAll(p, "/", "-")
	}
	return id
}
