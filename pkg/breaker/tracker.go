package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for breaker state.
var (
	breakerOpensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stacfed_breaker_opens_total",
		Help: "Total number of times a source breaker opened",
	}, []string{"source"})

	breakerShortCircuitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stacfed_breaker_short_circuits_total",
		Help: "Total number of dispatches short-circuited by an open breaker",
	}, []string{"source"})

	breakerFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stacfed_breaker_failures",
		Help: "Current consecutive failure count per source",
	}, []string{"source"})
)

// Config holds breaker thresholds.
type Config struct {
	// FailureThreshold opens the breaker after this many consecutive failures.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before allowing a probe.
	Cooldown time.Duration
}

// DefaultConfig returns safe breaker defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		Cooldown:         DefaultCooldown,
	}
}

// Tracker monitors per-source failure budgets and gates dispatch.
type Tracker struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// NewTracker creates a new breaker tracker.
func NewTracker(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Tracker{
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}
}

// GetState retrieves one source's breaker state from Redis.
// A source with no recorded failures gets a zero (closed) state.
func (t *Tracker) GetState(ctx context.Context, sourceID string) (State, error) {
	failures, err := t.redis.Get(ctx, failuresKey(sourceID)).Int()
	if err != nil && err != redis.Nil {
		return State{}, fmt.Errorf("get failures: %w", err)
	}

	openedAtUnix, err := t.redis.Get(ctx, openedAtKey(sourceID)).Int64()
	if err != nil && err != redis.Nil {
		return State{}, fmt.Errorf("get opened_at: %w", err)
	}

	state := State{Failures: failures}
	if openedAtUnix > 0 {
		state.OpenedAt = time.Unix(openedAtUnix, 0)
	}
	return state, nil
}

// Allow reports whether a request to the source should proceed. An open
// breaker that has finished its cooldown lets a single probe through by
// stepping the failure count back below the threshold.
func (t *Tracker) Allow(ctx context.Context, sourceID string) (bool, error) {
	state, err := t.GetState(ctx, sourceID)
	if err != nil {
		// Breaker state being unavailable must not take the source down.
		t.logger.Warn().Err(err).Str("source", sourceID).Msg("Breaker state unavailable, allowing request")
		return true, nil
	}

	if !state.Open(t.config.FailureThreshold) {
		return true, nil
	}

	if state.CooledDown(t.config.Cooldown) {
		t.logger.Info().
			Str("source", sourceID).
			Int("failures", state.Failures).
			Msg("Breaker cooldown elapsed, allowing probe request")

		pipe := t.redis.Pipeline()
		pipe.Set(ctx, failuresKey(sourceID), t.config.FailureThreshold-1, 0)
		pipe.Del(ctx, openedAtKey(sourceID))
		if _, err := pipe.Exec(ctx); err != nil {
			t.logger.Warn().Err(err).Str("source", sourceID).Msg("Failed to reset breaker for probe")
		}
		return true, nil
	}

	breakerShortCircuitsTotal.WithLabelValues(sourceID).Inc()
	t.logger.Debug().
		Str("source", sourceID).
		Str("state", state.String()).
		Msg("Request short-circuited by open breaker")
	return false, nil
}

// RecordFailure increments the source's consecutive failure count and opens
// the breaker when the threshold is crossed.
func (t *Tracker) RecordFailure(ctx context.Context, sourceID string) error {
	failures, err := t.redis.Incr(ctx, failuresKey(sourceID)).Result()
	if err != nil {
		return fmt.Errorf("incr failures: %w", err)
	}
	breakerFailures.WithLabelValues(sourceID).Set(float64(failures))

	if failures == int64(t.config.FailureThreshold) {
		if err := t.redis.Set(ctx, openedAtKey(sourceID), time.Now().Unix(), 0).Err(); err != nil {
			return fmt.Errorf("set opened_at: %w", err)
		}
		breakerOpensTotal.WithLabelValues(sourceID).Inc()
		t.logger.Warn().
			Str("source", sourceID).
			Int64("failures", failures).
			Dur("cooldown", t.config.Cooldown).
			Msg("Breaker opened for source")
	}

	return nil
}

// RecordSuccess closes the breaker and resets the failure count.
func (t *Tracker) RecordSuccess(ctx context.Context, sourceID string) error {
	pipe := t.redis.Pipeline()
	pipe.Del(ctx, failuresKey(sourceID))
	pipe.Del(ctx, openedAtKey(sourceID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset breaker: %w", err)
	}
	breakerFailures.WithLabelValues(sourceID).Set(0)
	return nil
}
