// Package cache provides an optional Redis-backed cache for upstream
// collection-search responses. Health probes are never cached; only search
// pages pass through here, keyed by source and full request URL.
package cache

import (
	"time"
)

// Entry represents one cached upstream search response.
type Entry struct {
	// Data is the response body as returned by the upstream.
	Data []byte `json:"data"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
