// Package health aggregates per-source availability probes into one overall
// federation status. Reports are built fresh on every invocation; health
// freshness matters more than probe cost.
package health

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/developmentseed/stac-collection-federator/pkg/logging"
	"github.com/developmentseed/stac-collection-federator/pkg/stac"
	"github.com/developmentseed/stac-collection-federator/pkg/upstream"
)

var sourceUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "stacfed_source_up",
	Help: "Whether a source was reachable and capable at the last health check (1/0)",
}, []string{"source"})

// Status is the reduced overall federation status.
type Status string

const (
	// StatusHealthy means every source is reachable and supports
	// collection search.
	StatusHealthy Status = "healthy"

	// StatusDegraded means at least one but not all sources are healthy.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means no source is reachable and capable.
	StatusUnhealthy Status = "unhealthy"
)

// DefaultProbeTimeout bounds each individual probe.
const DefaultProbeTimeout = 5 * time.Second

// Prober is the adapter contract the aggregator fans out over.
type Prober interface {
	Probe(ctx context.Context, src stac.Source) upstream.ProbeResult
}

// SourceHealth is one source's entry in a health report.
type SourceHealth struct {
	Source           string `json:"source"`
	URL              string `json:"url"`
	Reachable        bool   `json:"reachable"`
	CollectionSearch bool   `json:"collection_search"`
	LatencyMS        int64  `json:"latency_ms"`
	Error            string `json:"error,omitempty"`
}

// Healthy reports whether the source is fully usable.
func (s SourceHealth) Healthy() bool {
	return s.Reachable && s.CollectionSearch
}

// Report is one health-check invocation's result.
type Report struct {
	Status  Status         `json:"status"`
	Sources []SourceHealth `json:"sources"`
}

// Aggregator probes every configured source concurrently and reduces the
// results into one status.
type Aggregator struct {
	prober  Prober
	sources []stac.Source
	timeout time.Duration
	logger  zerolog.Logger
}

// NewAggregator creates a health aggregator over a fixed source list.
func NewAggregator(prober Prober, sources []stac.Source, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Aggregator{
		prober:  prober,
		sources: sources,
		timeout: timeout,
		logger:  logging.NewLogger("health"),
	}
}

// Check probes all sources in parallel, each with its own timeout, and
// reduces the outcomes. An unresponsive source resolves to unreachable
// after its timeout; the check itself never blocks indefinitely.
func (a *Aggregator) Check(ctx context.Context) Report {
	start := time.Now()

	results := make([]SourceHealth, len(a.sources))
	done := make(chan int, len(a.sources))

	for i, src := range a.sources {
		go func(i int, src stac.Source) {
			probeCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			probe := a.prober.Probe(probeCtx, src)
			results[i] = SourceHealth{
				Source:           src.ID,
				URL:              src.URL,
				Reachable:        probe.Reachable,
				CollectionSearch: probe.CollectionSearch,
				LatencyMS:        probe.Latency.Milliseconds(),
				Error:            probe.Err,
			}
			done <- i
		}(i, src)
	}
	for range a.sources {
		<-done
	}

	healthy := 0
	for _, s := range results {
		if s.Healthy() {
			healthy++
			sourceUp.WithLabelValues(s.Source).Set(1)
		} else {
			sourceUp.WithLabelValues(s.Source).Set(0)
		}
	}

	report := Report{
		Status:  reduce(healthy, len(results)),
		Sources: results,
	}

	a.logger.Info().
		Str("status", string(report.Status)).
		Int("healthy", healthy).
		Int("sources", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Health check complete")

	return report
}

// reduce maps healthy counts onto the overall status.
func reduce(healthy, total int) Status {
	switch {
	case total == 0 || healthy == 0:
		return StatusUnhealthy
	case healthy == total:
		return StatusHealthy
	default:
		return StatusDegraded
	}
}
