// Package breaker implements per-source failure budgets shared via Redis.
// A source that fails repeatedly is short-circuited for a cooldown period so
// every dispatch round does not pay the full timeout for a dead upstream.
// The state lives in Redis so all federator replicas see the same budget.
package breaker

import (
	"fmt"
	"time"
)

// Redis key layout for breaker state. One failure counter and one
// opened-at timestamp per source.
const (
	keyPrefix = "stacfed:breaker:"
)

func failuresKey(sourceID string) string {
	return keyPrefix + sourceID + ":failures"
}

func openedAtKey(sourceID string) string {
	return keyPrefix + sourceID + ":opened_at"
}

// Defaults for breaker behavior.
const (
	// DefaultFailureThreshold opens the breaker after this many
	// consecutive failures.
	DefaultFailureThreshold = 5

	// DefaultCooldown is how long an open breaker short-circuits a source
	// before a probe request is allowed through again.
	DefaultCooldown = 30 * time.Second
)

// State is a point-in-time view of one source's breaker.
type State struct {
	// Failures is the consecutive failure count.
	Failures int

	// OpenedAt is when the breaker opened; zero when closed.
	OpenedAt time.Time
}

// Open reports whether the breaker is currently open given a threshold.
func (s State) Open(threshold int) bool {
	return s.Failures >= threshold
}

// CooledDown reports whether an open breaker has finished its cooldown.
func (s State) CooledDown(cooldown time.Duration) bool {
	if s.OpenedAt.IsZero() {
		return true
	}
	return time.Since(s.OpenedAt) >= cooldown
}

func (s State) String() string {
	if s.OpenedAt.IsZero() {
		return fmt.Sprintf("closed (failures=%d)", s.Failures)
	}
	return fmt.Sprintf("open since %s (failures=%d)", s.OpenedAt.Format(time.RFC3339), s.Failures)
}
