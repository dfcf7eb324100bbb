package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Color modes for keyword emphasis.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Config struct {
	// Database connection.
	DatabaseURL  string
	ReadOnly     bool
	MaxRows      int
	QueryTimeout time.Duration

	// Diagnostics.
	ExplainAnalyze bool   // EXPLAIN ANALYZE instead of EXPLAIN
	PrettyPrint    bool   // start the console with pretty printing ON
	NoiseFile      string // optional path to noise rules YAML
	Color          string // "auto" (default), "always" or "never"

	// Logging.
	LogLevel slog.Level

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL    *string
	LogLevel       *string
	ReadOnly       *bool
	MaxRows        *int
	QueryTimeout   *time.Duration
	ExplainAnalyze *bool
	PrettyPrint    *bool
	NoiseFile      *string
	Color          *string
	OTelEnabled    bool

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result. DATABASE_URL is checked separately by
// RequireDatabase because offline commands do not need it.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireDatabase reports a missing DATABASE_URL.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MaxRows:             100,
		QueryTimeout:        30 * time.Second,
		ExplainAnalyze:      true,
		Color:               ColorAuto,
		LogLevel:            slog.LevelInfo,
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(envBool("READ_ONLY", &cfg.ReadOnly))
	add(envInt("MAX_ROWS", 1, &cfg.MaxRows))
	add(envDuration("QUERY_TIMEOUT", &cfg.QueryTimeout))
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		add(err)
		cfg.LogLevel = level
	}

	add(envBool("EXPLAIN_ANALYZE", &cfg.ExplainAnalyze))
	add(envBool("PRETTY_PRINT", &cfg.PrettyPrint))
	cfg.NoiseFile = os.Getenv("NOISE_FILE")
	if v := os.Getenv("COLOR"); v != "" {
		cfg.Color = strings.ToLower(strings.TrimSpace(v))
	}
	add(envBool("OTEL_ENABLED", &cfg.OTelEnabled))

	add(envInt("POOL_MAX_CONNS", 1, &cfg.PoolMaxConns))
	add(envInt("POOL_MIN_CONNS", 0, &cfg.PoolMinConns))
	add(envDuration("POOL_MAX_CONN_LIFETIME", &cfg.PoolMaxConnLifetime))

	return errors.Join(errs...)
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	*dst = b
	return nil
}

// envInt parses name as an integer no smaller than minimum.
func envInt[T int | int32](name string, minimum T, dst *T) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || T(n) < minimum {
		return fmt.Errorf("invalid %s value %q: must be an integer >= %d", name, v, minimum)
	}
	*dst = T(n)
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	*dst = d
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
// Only flags the user set are non-nil.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if err := flagInt("--max-rows", 1, o.MaxRows, &cfg.MaxRows); err != nil {
		return err
	}
	if err := flagInt("--pool-max-conns", 1, o.PoolMaxConns, &cfg.PoolMaxConns); err != nil {
		return err
	}
	if err := flagInt("--pool-min-conns", 0, o.PoolMinConns, &cfg.PoolMinConns); err != nil {
		return err
	}

	set(o.DatabaseURL, &cfg.DatabaseURL)
	set(o.ReadOnly, &cfg.ReadOnly)
	set(o.QueryTimeout, &cfg.QueryTimeout)
	set(o.ExplainAnalyze, &cfg.ExplainAnalyze)
	set(o.PrettyPrint, &cfg.PrettyPrint)
	set(o.NoiseFile, &cfg.NoiseFile)
	set(o.PoolMaxConnLifetime, &cfg.PoolMaxConnLifetime)
	if o.Color != nil {
		cfg.Color = strings.ToLower(strings.TrimSpace(*o.Color))
	}
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

func set[T any](src *T, dst *T) {
	if src != nil {
		*dst = *src
	}
}

func flagInt[T int | int32](flag string, minimum T, src *T, dst *T) error {
	if src == nil {
		return nil
	}
	if *src < minimum {
		return fmt.Errorf("invalid %s value %d: must be >= %d", flag, *src, minimum)
	}
	*dst = *src
	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	switch cfg.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid COLOR value %q: must be \"auto\", \"always\" or \"never\"", cfg.Color)
	}

	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", cfg.QueryTimeout)
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
