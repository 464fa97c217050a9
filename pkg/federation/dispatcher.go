// Package federation contains the federation core: the fan-out dispatcher,
// the merge engine, and the service facade tying them to the cursor codec.
package federation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/developmentseed/stac-collection-federator/pkg/cursor"
	"github.com/developmentseed/stac-collection-federator/pkg/logging"
	"github.com/developmentseed/stac-collection-federator/pkg/stac"
	"github.com/developmentseed/stac-collection-federator/pkg/upstream"
)

// ErrNoSources is returned when dispatch is attempted with zero configured
// sources. This is a configuration error, not a runtime one.
var ErrNoSources = errors.New("no upstream sources configured")

// SearchClient is the adapter contract the dispatcher fans out over.
type SearchClient interface {
	Search(ctx context.Context, src stac.Source, req stac.SearchRequest, state cursor.State) upstream.Outcome
}

// DispatchConfig bounds the dispatcher's wall-clock time.
type DispatchConfig struct {
	// CallTimeout bounds each upstream call.
	CallTimeout time.Duration

	// RoundTimeout bounds the whole dispatch round. Calls still in flight
	// when it fires are abandoned and recorded as timeouts.
	RoundTimeout time.Duration
}

// DefaultDispatchConfig returns safe dispatch timeouts.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		CallTimeout:  10 * time.Second,
		RoundTimeout: 15 * time.Second,
	}
}

// Dispatcher fans one search out to every non-exhausted source in parallel
// and collects per-source outcomes. One failure never aborts the others.
type Dispatcher struct {
	client  SearchClient
	sources []stac.Source
	config  DispatchConfig
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher over a fixed source list. The source
// list is treated as immutable after construction.
func NewDispatcher(client SearchClient, sources []stac.Source, cfg DispatchConfig) *Dispatcher {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultDispatchConfig().CallTimeout
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = DefaultDispatchConfig().RoundTimeout
	}

	return &Dispatcher{
		client:  client,
		sources: sources,
		config:  cfg,
		logger:  logging.NewLogger("dispatcher"),
	}
}

// Sources returns the configured sources, in configuration order.
func (d *Dispatcher) Sources() []stac.Source {
	return d.sources
}

type dispatchResult struct {
	sourceID string
	outcome  upstream.Outcome
}

// Dispatch runs one fan-out round. Sources marked exhausted in the cursor
// are skipped without a network call and recorded as empty outcomes so
// downstream logic stays uniform. The returned map always has one entry per
// configured source.
func (d *Dispatcher) Dispatch(ctx context.Context, req stac.SearchRequest, cur cursor.Logical) (map[string]upstream.Outcome, error) {
	if len(d.sources) == 0 {
		return nil, ErrNoSources
	}

	start := time.Now()

	roundCtx, cancel := context.WithTimeout(ctx, d.config.RoundTimeout)
	defer cancel()

	outcomes := make(map[string]upstream.Outcome, len(d.sources))
	pending := make(map[string]bool)

	// Buffered so abandoned calls never block on send after the round
	// has moved on.
	results := make(chan dispatchResult, len(d.sources))

	for _, src := range d.sources {
		state := cur[src.ID]
		if state.Exhausted {
			outcomes[src.ID] = upstream.EmptyOutcome()
			continue
		}

		pending[src.ID] = true
		go func(src stac.Source, state cursor.State) {
			callCtx, cancelCall := context.WithTimeout(roundCtx, d.config.CallTimeout)
			defer cancelCall()
			results <- dispatchResult{src.ID, d.client.Search(callCtx, src, req, state)}
		}(src, state)
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.sourceID)
			outcomes[r.sourceID] = r.outcome
		case <-roundCtx.Done():
			// Abandon in-flight calls; their eventual results are
			// discarded, not awaited.
			for id := range pending {
				d.logger.Warn().
					Str("source", id).
					Dur("round_timeout", d.config.RoundTimeout).
					Msg("Abandoning in-flight call at round timeout")
				outcomes[id] = upstream.FailureOutcome(upstream.FailureTimeout, "dispatch round timed out")
			}
			pending = nil
		}
	}

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	d.logger.Info().
		Int("sources", len(d.sources)).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Dispatch round complete")

	return outcomes, nil
}
