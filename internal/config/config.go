// Package config builds the federator's immutable process configuration
// from an optional TOML file and environment variables. Environment
// variables override file values; the result is read once at startup and
// never reloaded.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/developmentseed/stac-collection-federator/pkg/stac"
)

// Config is the process configuration. Treated as immutable after startup.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080".
	ListenAddr string

	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string

	// LogPretty enables human-readable console logs.
	LogPretty bool

	// UserAgent sent on upstream requests.
	UserAgent string

	// Sources is the ordered list of upstream STAC APIs.
	Sources []stac.Source

	// RedisURL enables the response cache and breaker when non-empty.
	RedisURL string

	// CallTimeout bounds each upstream search call.
	CallTimeout time.Duration

	// RoundTimeout bounds one whole dispatch round.
	RoundTimeout time.Duration

	// ProbeTimeout bounds each health probe.
	ProbeTimeout time.Duration

	// DefaultLimit and MaxLimit bound the requested page size.
	DefaultLimit int
	MaxLimit     int

	// BreakerThreshold and BreakerCooldown tune the per-source failure
	// budget; zero values use the breaker package defaults.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ListenAddr:   ":8080",
		LogLevel:     "info",
		UserAgent:    "stac-collection-federator/0.1.0",
		CallTimeout:  10 * time.Second,
		RoundTimeout: 15 * time.Second,
		ProbeTimeout: 5 * time.Second,
		DefaultLimit: 10,
		MaxLimit:     1000,
	}
}

// fileConfig is the TOML shape. Durations are strings parsed with
// time.ParseDuration.
type fileConfig struct {
	ListenAddr       string           `toml:"listen_addr"`
	LogLevel         string           `toml:"log_level"`
	LogPretty        bool             `toml:"log_pretty"`
	UserAgent        string           `toml:"user_agent"`
	RedisURL         string           `toml:"redis_url"`
	CallTimeout      string           `toml:"call_timeout"`
	RoundTimeout     string           `toml:"round_timeout"`
	ProbeTimeout     string           `toml:"probe_timeout"`
	DefaultLimit     int              `toml:"default_limit"`
	MaxLimit         int              `toml:"max_limit"`
	BreakerThreshold int              `toml:"breaker_threshold"`
	BreakerCooldown  string           `toml:"breaker_cooldown"`
	Upstreams        []upstreamConfig `toml:"upstream"`
}

type upstreamConfig struct {
	ID  string `toml:"id"`
	URL string `toml:"url"`
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogPretty {
		cfg.LogPretty = true
	}
	if fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if fc.DefaultLimit > 0 {
		cfg.DefaultLimit = fc.DefaultLimit
	}
	if fc.MaxLimit > 0 {
		cfg.MaxLimit = fc.MaxLimit
	}
	if fc.BreakerThreshold > 0 {
		cfg.BreakerThreshold = fc.BreakerThreshold
	}

	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.CallTimeout, "call_timeout", &cfg.CallTimeout},
		{fc.RoundTimeout, "round_timeout", &cfg.RoundTimeout},
		{fc.ProbeTimeout, "probe_timeout", &cfg.ProbeTimeout},
		{fc.BreakerCooldown, "breaker_cooldown", &cfg.BreakerCooldown},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	for _, u := range fc.Upstreams {
		src, err := stac.NewSource(u.ID, u.URL)
		if err != nil {
			return fmt.Errorf("upstream config: %w", err)
		}
		cfg.Sources = append(cfg.Sources, src)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("UPSTREAM_API_URLS"); v != "" {
		sources, err := ParseSourceList(v)
		if err != nil {
			return err
		}
		cfg.Sources = sources
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	} else if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.LogPretty = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}

	envDurations := []struct {
		env string
		dst *time.Duration
	}{
		{"CALL_TIMEOUT", &cfg.CallTimeout},
		{"ROUND_TIMEOUT", &cfg.RoundTimeout},
		{"PROBE_TIMEOUT", &cfg.ProbeTimeout},
		{"BREAKER_COOLDOWN", &cfg.BreakerCooldown},
	}
	for _, d := range envDurations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	envInts := []struct {
		env string
		dst *int
	}{
		{"DEFAULT_LIMIT", &cfg.DefaultLimit},
		{"MAX_LIMIT", &cfg.MaxLimit},
		{"BREAKER_THRESHOLD", &cfg.BreakerThreshold},
	}
	for _, d := range envInts {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	return nil
}

// ParseSourceList parses a comma-separated list of upstream base URLs into
// sources with derived IDs.
func ParseSourceList(raw string) ([]stac.Source, error) {
	var sources []stac.Source
	seen := make(map[string]bool)

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		src, err := stac.NewSource("", part)
		if err != nil {
			return nil, err
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("duplicate upstream source %q", src.ID)
		}
		seen[src.ID] = true
		sources = append(sources, src)
	}

	return sources, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior. An empty source list is allowed here; it fails at
// dispatch time with a configuration error.
func (c Config) Validate() error {
	if c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default_limit (%d) exceeds max_limit (%d)", c.DefaultLimit, c.MaxLimit)
	}
	if c.CallTimeout > c.RoundTimeout {
		return fmt.Errorf("call_timeout (%s) exceeds round_timeout (%s)", c.CallTimeout, c.RoundTimeout)
	}

	seen := make(map[string]bool)
	for _, src := range c.Sources {
		if seen[src.ID] {
			return fmt.Errorf("duplicate upstream source %q", src.ID)
		}
		seen[src.ID] = true
	}

	return nil
}
