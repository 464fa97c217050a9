package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/developmentseed/stac-collection-federator/pkg/breaker"
	"github.com/developmentseed/stac-collection-federator/pkg/cache"
	"github.com/developmentseed/stac-collection-federator/pkg/cursor"
	"github.com/developmentseed/stac-collection-federator/pkg/logging"
	"github.com/developmentseed/stac-collection-federator/pkg/stac"
)

// Prometheus metrics for upstream calls.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stacfed_upstream_requests_total",
		Help: "Total upstream requests by source and status",
	}, []string{"source", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stacfed_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by source",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"source"})

	upstreamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stacfed_upstream_failures_total",
		Help: "Total upstream failures by source and kind",
	}, []string{"source", "kind"})
)

// Client is the adapter for upstream STAC APIs. One Client serves every
// configured source; it holds no per-source mutable state.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	breaker    *breaker.Tracker
	userAgent  string
	logger     zerolog.Logger
}

// Config holds the client configuration. Cache and Breaker are optional;
// when nil the corresponding feature is bypassed.
type Config struct {
	// HTTPClient to use for upstream calls. Per-call deadlines come from
	// the context, so the client itself carries no timeout.
	HTTPClient *http.Client

	// Cache is the optional Redis-backed response cache.
	Cache *cache.Manager

	// Breaker is the optional per-source failure budget.
	Breaker *breaker.Tracker

	// UserAgent identifies the federator to upstreams.
	UserAgent string
}

// DefaultUserAgent is used when no user agent is configured.
const DefaultUserAgent = "stac-collection-federator/0.1.0"

// New creates a new upstream client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: httpClient,
		cache:      cfg.Cache,
		breaker:    cfg.Breaker,
		userAgent:  userAgent,
		logger:     logging.NewLogger("upstream-client"),
	}
}

// Search issues one collection-search call against a source at the given
// cursor position. All failure modes surface on the returned Outcome; the
// error channel of this API is the Outcome itself.
func (c *Client) Search(ctx context.Context, src stac.Source, req stac.SearchRequest, state cursor.State) Outcome {
	if state.Exhausted {
		return EmptyOutcome()
	}

	searchURL := state.Next
	if searchURL == "" {
		searchURL = c.buildSearchURL(src, req)
	}

	start := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(src.ID).Observe(time.Since(start).Seconds())
	}()

	if c.breaker != nil {
		allowed, err := c.breaker.Allow(ctx, src.ID)
		if err == nil && !allowed {
			// No request was issued; the short-circuit counter in the
			// breaker package is the only metric that moves here.
			return FailureOutcome(FailureUnreachable, "source temporarily disabled after repeated failures")
		}
	}

	body, fromCache, outcome := c.fetch(ctx, src, searchURL)
	if outcome != nil {
		c.recordFailure(ctx, src.ID, outcome.Failure.Kind)
		return *outcome
	}

	items, next, err := stac.ParseCollectionsDocument(body)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("source", src.ID).
			Str("endpoint", searchURL).
			Msg("Malformed upstream response")
		c.recordFailure(ctx, src.ID, FailureProtocol)
		upstreamFailuresTotal.WithLabelValues(src.ID, string(FailureProtocol)).Inc()
		return FailureOutcome(FailureProtocol, "malformed collections response: %v", err)
	}

	// A cached body is no evidence the upstream is alive, so only a live
	// fetch clears the breaker's failure budget.
	if c.breaker != nil && !fromCache {
		if err := c.breaker.RecordSuccess(ctx, src.ID); err != nil {
			c.logger.Warn().Err(err).Str("source", src.ID).Msg("Failed to record breaker success")
		}
	}

	// Normalize the page into the federation's total order before the
	// skip offset is applied. The merge engine relies on the adapter and
	// the merger agreeing on each page's order.
	sort.SliceStable(items, func(i, j int) bool {
		return stac.Compare(
			stac.FederatedCollection{SourceID: src.ID, Collection: items[i]},
			stac.FederatedCollection{SourceID: src.ID, Collection: items[j]},
			req.SortBy,
		) < 0
	})

	// Items already consumed by an earlier round at this cursor position
	// are dropped here so pages never repeat across rounds.
	if state.Skip > 0 {
		if state.Skip >= len(items) {
			items = nil
		} else {
			items = items[state.Skip:]
		}
	}

	c.logger.Debug().
		Str("source", src.ID).
		Str("endpoint", searchURL).
		Int("items", len(items)).
		Bool("has_next", next != "").
		Dur("duration", time.Since(start)).
		Msg("Upstream search complete")

	if len(items) == 0 && next == "" {
		return EmptyOutcome()
	}

	return SuccessOutcome(items, next)
}

// fetch performs the HTTP GET with caching. It returns either the response
// body (flagged when it was served from cache rather than the network) or a
// classified failure outcome.
func (c *Client) fetch(ctx context.Context, src stac.Source, searchURL string) ([]byte, bool, *Outcome) {
	cacheKey := cache.Key{SourceID: src.ID, URL: searchURL}

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			c.logger.Debug().Str("source", src.ID).Str("endpoint", searchURL).Msg("Cache hit")
			return entry.Data, true, nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("source", src.ID).Msg("Cache get error")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		out := FailureOutcome(FailureProtocol, "build request: %v", err)
		return nil, false, &out
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyTransportError(ctx, err)
		upstreamRequestsTotal.WithLabelValues(src.ID, "transport_error").Inc()
		upstreamFailuresTotal.WithLabelValues(src.ID, string(kind)).Inc()
		c.logger.Warn().
			Err(err).
			Str("source", src.ID).
			Str("endpoint", searchURL).
			Str("failure_kind", string(kind)).
			Msg("Upstream request failed")
		out := FailureOutcome(kind, "%v", err)
		return nil, false, &out
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(src.ID, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		upstreamFailuresTotal.WithLabelValues(src.ID, string(FailureUnreachable)).Inc()
		c.logger.Warn().
			Str("source", src.ID).
			Str("endpoint", searchURL).
			Int("status", resp.StatusCode).
			Msg("Upstream returned error status")
		out := FailureOutcome(FailureUnreachable, "unexpected status %d", resp.StatusCode)
		return nil, false, &out
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		kind := classifyTransportError(ctx, err)
		upstreamFailuresTotal.WithLabelValues(src.ID, string(kind)).Inc()
		out := FailureOutcome(kind, "read response body: %v", err)
		return nil, false, &out
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(body, resp.Header)); err != nil {
			c.logger.Warn().Err(err).Str("source", src.ID).Msg("Failed to cache response")
		}
	}

	return body, false, nil
}

// recordFailure feeds the breaker; breaker errors only get logged.
func (c *Client) recordFailure(ctx context.Context, sourceID string, kind FailureKind) {
	if c.breaker == nil {
		return
	}
	if err := c.breaker.RecordFailure(ctx, sourceID); err != nil {
		c.logger.Warn().
			Err(err).
			Str("source", sourceID).
			Str("failure_kind", string(kind)).
			Msg("Failed to record breaker failure")
	}
}

// buildSearchURL translates the common search request into the source's
// /collections query.
func (c *Client) buildSearchURL(src stac.Source, req stac.SearchRequest) string {
	params := url.Values{}

	if len(req.BBox) > 0 {
		parts := make([]string, len(req.BBox))
		for i, v := range req.BBox {
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		params.Set("bbox", strings.Join(parts, ","))
	}
	if req.Datetime != "" {
		params.Set("datetime", req.Datetime)
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Query != "" {
		params.Set("q", req.Query)
	}
	if sortby := stac.SortBySpec(req.SortBy); sortby != "" {
		params.Set("sortby", sortby)
	}
	if req.Filter != "" {
		params.Set("filter", req.Filter)
		if req.FilterLang != "" {
			params.Set("filter-lang", req.FilterLang)
		}
	}
	if len(req.Fields) > 0 {
		params.Set("fields", strings.Join(req.Fields, ","))
	}

	searchURL := src.URL + "/collections"
	if encoded := params.Encode(); encoded != "" {
		searchURL += "?" + encoded
	}
	return searchURL
}

// classifyTransportError distinguishes deadline expiry from other
// network-level failures.
func classifyTransportError(ctx context.Context, err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return FailureTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return FailureTimeout
	}
	return FailureUnreachable
}
