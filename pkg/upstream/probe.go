package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/developmentseed/stac-collection-federator/pkg/stac"
)

// ProbeResult is one source's availability and capability check.
type ProbeResult struct {
	// Reachable is true when the source's landing page answered 200.
	Reachable bool

	// CollectionSearch is true when the source advertises collection
	// search, via a collection-search conformance class or a rel=data
	// link on the landing page.
	CollectionSearch bool

	// Latency is the probe round-trip time.
	Latency time.Duration

	// Err describes why the probe failed, empty on success.
	Err string
}

// landingPage is the subset of a STAC landing page the probe inspects.
type landingPage struct {
	ConformsTo []string    `json:"conformsTo"`
	Links      []stac.Link `json:"links"`
}

// Probe fetches a source's landing page and checks reachability and
// collection-search capability. Results are never cached: health freshness
// matters more than the cost of one small fetch.
func (c *Client) Probe(ctx context.Context, src stac.Source) ProbeResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return ProbeResult{Latency: time.Since(start), Err: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("source", src.ID).
			Msg("Probe failed")
		return ProbeResult{Latency: time.Since(start), Err: err.Error()}
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return ProbeResult{
			Latency: latency,
			Err:     resp.Status,
		}
	}

	result := ProbeResult{Reachable: true, Latency: latency}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	var page landingPage
	if err := json.Unmarshal(body, &page); err != nil {
		// Reachable but not a parseable STAC landing page.
		result.Err = "landing page is not valid JSON"
		return result
	}

	result.CollectionSearch = advertisesCollectionSearch(page)
	return result
}

// advertisesCollectionSearch checks the landing page for collection-search
// capability. The conformance class URI varies by API version, so only the
// trailing segment is matched; a rel=data link is accepted as a fallback
// for APIs that predate the collection-search conformance class.
func advertisesCollectionSearch(page landingPage) bool {
	for _, uri := range page.ConformsTo {
		if strings.Contains(uri, "collection-search") {
			return true
		}
	}
	for _, link := range page.Links {
		if link.Rel == "data" {
			return true
		}
	}
	return false
}
