// Package upstream implements the client adapter for one upstream STAC API:
// a collection-search call bounded by the caller's deadline, with all
// failure modes normalized into an Outcome value.
package upstream

import (
	"fmt"

	"github.com/developmentseed/stac-collection-federator/pkg/stac"
)

// FailureKind classifies why an upstream call produced no usable page.
type FailureKind string

const (
	// FailureUnreachable covers connection and HTTP-layer failures.
	FailureUnreachable FailureKind = "unreachable"

	// FailureTimeout covers calls that exceeded their deadline.
	FailureTimeout FailureKind = "timeout"

	// FailureProtocol covers malformed or unexpected response bodies.
	FailureProtocol FailureKind = "protocol"
)

// Failure describes one failed upstream call.
type Failure struct {
	Kind    FailureKind
	Message string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("upstream %s failure: %s", f.Kind, f.Message)
}

// Outcome is the result of one adapter call. Exactly one of three shapes:
// success (items, possibly a next cursor), empty (source exhausted), or
// failure. Failures are values, never faults that abort the caller.
type Outcome struct {
	// Items are the collections returned this call, already past the
	// cursor's skip offset.
	Items []stac.Collection

	// Next is the upstream's next-page href; empty when the upstream
	// advertised no further pages.
	Next string

	// Exhausted marks an empty outcome: the source has nothing more.
	Exhausted bool

	// Failure is non-nil when the call failed.
	Failure *Failure
}

// SuccessOutcome builds an outcome for a page with items.
func SuccessOutcome(items []stac.Collection, next string) Outcome {
	return Outcome{Items: items, Next: next}
}

// EmptyOutcome builds an outcome for an exhausted source.
func EmptyOutcome() Outcome {
	return Outcome{Exhausted: true}
}

// FailureOutcome builds an outcome for a failed call.
func FailureOutcome(kind FailureKind, format string, args ...any) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Failure != nil
}

// Tag returns the outcome's variant name for logs and metrics.
func (o Outcome) Tag() string {
	switch {
	case o.Failure != nil:
		return "failure"
	case o.Exhausted:
		return "empty"
	default:
		return "success"
	}
}
