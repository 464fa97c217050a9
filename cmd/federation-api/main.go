package main

import (
	"context"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/developmentseed/stac-collection-federator/internal/config"
	"github.com/developmentseed/stac-collection-federator/pkg/breaker"
	"github.com/developmentseed/stac-collection-federator/pkg/cache"
	"github.com/developmentseed/stac-collection-federator/pkg/federation"
	"github.com/developmentseed/stac-collection-federator/pkg/health"
	"github.com/developmentseed/stac-collection-federator/pkg/logging"
	"github.com/developmentseed/stac-collection-federator/pkg/upstream"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		bootLogger := logging.NewLogger("main")
		bootLogger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	}).With().Str("component", "main").Logger()

	// Redis is optional: without it the federator runs with no response
	// cache and no breaker, which is fine for small deployments.
	var cacheManager *cache.Manager
	var breakerTracker *breaker.Tracker
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis_url", cfg.RedisURL).Msg("Connected to Redis")

		cacheManager = cache.NewManager(redisClient)
		breakerTracker = breaker.NewTracker(redisClient, breaker.Config{
			FailureThreshold: cfg.BreakerThreshold,
			Cooldown:         cfg.BreakerCooldown,
		}, logging.NewLogger("breaker"))
	}

	client := upstream.New(upstream.Config{
		Cache:     cacheManager,
		Breaker:   breakerTracker,
		UserAgent: cfg.UserAgent,
	})

	dispatcher := federation.NewDispatcher(client, cfg.Sources, federation.DispatchConfig{
		CallTimeout:  cfg.CallTimeout,
		RoundTimeout: cfg.RoundTimeout,
	})

	service := federation.NewService(dispatcher, federation.Options{
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
	})

	aggregator := health.NewAggregator(client, cfg.Sources, cfg.ProbeTimeout)

	api := newAPI(service, aggregator)

	logger.Info().
		Str("addr", cfg.ListenAddr).
		Int("sources", len(cfg.Sources)).
		Msg("Starting federation API server")
	for _, src := range cfg.Sources {
		logger.Info().Str("source", src.ID).Str("url", src.URL).Msg("Configured upstream")
	}

	if err := http.ListenAndServe(cfg.ListenAddr, api.routes()); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}
