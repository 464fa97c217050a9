// Package testutil provides testing utilities for the federator: a
// configurable mock upstream STAC API server.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock upstream endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSTAC is a configurable mock upstream STAC API for testing.
type MockSTAC struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCounts map[string]int
	lastQuery     map[string]string
}

// NewMockSTAC creates a new mock upstream server.
func NewMockSTAC() *MockSTAC {
	mock := &MockSTAC{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		requestCounts: make(map[string]int),
		lastQuery:     make(map[string]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCounts[r.URL.Path]++
		mock.lastQuery[r.URL.Path] = r.URL.RawQuery
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSTAC) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSTAC) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSTAC) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCounts = make(map[string]int)
	m.lastQuery = make(map[string]string)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSTAC) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockSTAC) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests made to a path.
func (m *MockSTAC) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCounts[path]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockSTAC) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requestCounts {
		total += n
	}
	return total
}

// LastQuery returns the raw query string of the most recent request to a path.
func (m *MockSTAC) LastQuery(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery[path]
}

// defaultHandler serves a minimal STAC landing page at / and an empty
// collections document elsewhere.
func (m *MockSTAC) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(LandingPageBody(true)))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"collections": [], "links": []}`))
}

// Coll describes one collection in a canned response.
type Coll struct {
	ID      string
	Title   string
	Updated string
}

// CollectionsBody builds a /collections response document. next is the
// next-page href, empty for none.
func CollectionsBody(next string, colls ...Coll) string {
	collections := make([]map[string]any, len(colls))
	for i, c := range colls {
		obj := map[string]any{
			"id":           c.ID,
			"type":         "Collection",
			"stac_version": "1.0.0",
			"description":  "test collection " + c.ID,
			"license":      "proprietary",
		}
		if c.Title != "" {
			obj["title"] = c.Title
		}
		if c.Updated != "" {
			obj["updated"] = c.Updated
		}
		collections[i] = obj
	}

	links := []map[string]string{}
	if next != "" {
		links = append(links, map[string]string{"rel": "next", "href": next})
	}

	doc := map[string]any{
		"collections": collections,
		"links":       links,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("marshal collections body: %v", err))
	}
	return string(data)
}

// LandingPageBody builds a STAC landing page. collectionSearch controls
// whether the collection-search conformance class is advertised.
func LandingPageBody(collectionSearch bool) string {
	conformsTo := []string{
		"https://api.stacspec.org/v1.0.0/core",
		"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core",
	}
	if collectionSearch {
		conformsTo = append(conformsTo, "https://api.stacspec.org/v1.0.0-rc.1/collection-search")
	}

	doc := map[string]any{
		"type":        "Catalog",
		"id":          "mock-stac",
		"description": "mock upstream STAC API",
		"conformsTo":  conformsTo,
		"links": []map[string]string{
			{"rel": "self", "href": "/"},
			{"rel": "data", "href": "/collections"},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("marshal landing page: %v", err))
	}
	return string(data)
}

// NewCollectionsResponse wraps a collections document in a 200 response.
func NewCollectionsResponse(next string, colls ...Coll) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       CollectionsBody(next, colls...),
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code": "InternalError", "description": "upstream exploded"}`,
	}
}
