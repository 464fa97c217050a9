package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/developmentseed/stac-collection-federator/pkg/cursor"
	"github.com/developmentseed/stac-collection-federator/pkg/federation"
	"github.com/developmentseed/stac-collection-federator/pkg/health"
	"github.com/developmentseed/stac-collection-federator/pkg/logging"
	"github.com/developmentseed/stac-collection-federator/pkg/stac"
)

// conformanceClasses advertised by the federator. Collection search plus
// its free-text, sort, fields, and filter extensions; never item search.
var conformanceClasses = []string{
	"https://api.stacspec.org/v1.0.0/core",
	"https://api.stacspec.org/v1.0.0/collections",
	"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core",
	"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/oas30",
	"https://api.stacspec.org/v1.0.0-rc.1/collection-search",
	"https://api.stacspec.org/v1.0.0-rc.1/collection-search#free-text",
	"https://api.stacspec.org/v1.0.0-rc.1/collection-search#sort",
	"https://api.stacspec.org/v1.0.0-rc.1/collection-search#fields",
	"https://api.stacspec.org/v1.0.0-rc.1/collection-search#filter",
}

type api struct {
	service    *federation.Service
	aggregator *health.Aggregator
	logger     zerolog.Logger
}

func newAPI(service *federation.Service, aggregator *health.Aggregator) *api {
	return &api{
		service:    service,
		aggregator: aggregator,
		logger:     logging.NewLogger("api"),
	}
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleLandingPage)
	mux.HandleFunc("GET /conformance", a.handleConformance)
	mux.HandleFunc("GET /collections", a.handleCollections)
	mux.HandleFunc("GET /_mgmt/health", a.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// collectionsResponse is the externally visible merged page.
type collectionsResponse struct {
	Collections    []json.RawMessage `json:"collections"`
	Links          []stac.Link       `json:"links"`
	NumberReturned int               `json:"numberReturned"`

	// FailedSources names upstreams that did not contribute this round,
	// so partial degradation is observable rather than silently hidden.
	FailedSources []string `json:"federation:failed,omitempty"`
}

func (a *api) handleCollections(w http.ResponseWriter, r *http.Request) {
	req, token, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := a.service.Search(r.Context(), req, token)
	if err != nil {
		switch {
		case errors.Is(err, cursor.ErrInvalidCursor):
			writeError(w, http.StatusBadRequest, "invalid pagination token, restart from the first page")
		case errors.Is(err, federation.ErrFederationUnavailable):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			a.logger.Error().Err(err).Msg("Search failed")
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := collectionsResponse{
		Collections:    make([]json.RawMessage, len(page.Collections)),
		NumberReturned: len(page.Collections),
		FailedSources:  page.Failed,
		Links: []stac.Link{
			{Rel: "self", Href: requestURL(r), Type: "application/json"},
			{Rel: "root", Href: baseURL(r), Type: "application/json"},
		},
	}
	for i, col := range page.Collections {
		resp.Collections[i] = col.Raw
	}

	// One canonical link per upstream, pointing at the query being federated.
	for _, src := range a.service.Sources() {
		resp.Links = append(resp.Links, stac.Link{
			Rel:   "canonical",
			Href:  src.URL + "/collections",
			Type:  "application/json",
			Title: src.ID,
		})
	}

	if page.NextToken != "" {
		// The next href must repeat the caller's own query (limit, sortby,
		// filters) with only the token swapped, or the continuation runs
		// under different parameters than the page it resumes.
		next := r.URL.Query()
		next.Set("token", page.NextToken)
		resp.Links = append(resp.Links, stac.Link{
			Rel:  "next",
			Href: baseURL(r) + "/collections?" + next.Encode(),
			Type: "application/json",
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := a.aggregator.Check(r.Context())

	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, report)
}

func (a *api) handleLandingPage(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"type":         "Catalog",
		"id":           "stac-collection-federator",
		"title":        "STAC Collection Discovery API",
		"description":  "A collection-search-only STAC API that combines paginated search results from multiple STAC APIs.",
		"stac_version": "1.0.0",
		"conformsTo":   conformanceClasses,
		"links": []stac.Link{
			{Rel: "self", Href: base, Type: "application/json"},
			{Rel: "root", Href: base, Type: "application/json"},
			{Rel: "conformance", Href: base + "/conformance", Type: "application/json"},
			{Rel: "data", Href: base + "/collections", Type: "application/json", Title: "Federated collections"},
		},
	})
}

func (a *api) handleConformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"conformsTo": conformanceClasses,
	})
}

// parseSearchRequest maps query parameters onto the core's search request.
func parseSearchRequest(r *http.Request) (stac.SearchRequest, string, error) {
	q := r.URL.Query()
	var req stac.SearchRequest

	bbox, err := stac.ParseBBox(q.Get("bbox"))
	if err != nil {
		return req, "", err
	}
	req.BBox = bbox

	sortBy, err := stac.ParseSortBy(q.Get("sortby"))
	if err != nil {
		return req, "", err
	}
	req.SortBy = sortBy

	if rawLimit := q.Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit <= 0 {
			return req, "", errors.New("limit must be a positive integer")
		}
		req.Limit = limit
	}

	req.Datetime = q.Get("datetime")
	req.Query = q.Get("q")
	req.Filter = q.Get("filter")
	req.FilterLang = q.Get("filter-lang")
	if fields := q.Get("fields"); fields != "" {
		req.Fields = strings.Split(fields, ",")
	}

	return req, q.Get("token"), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, description string) {
	writeJSON(w, status, map[string]string{
		"code":        http.StatusText(status),
		"description": description,
	})
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func requestURL(r *http.Request) string {
	return baseURL(r) + r.URL.RequestURI()
}
