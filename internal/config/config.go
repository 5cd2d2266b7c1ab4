// Package config provides configuration loading and validation for the API
// server and its aggregation jobs. It uses koanf to merge environment
// variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty selects the in-memory repositories (dev/test only).
	DatabaseURL string `koanf:"database_url"`

	// JWT secret protecting the admin recompute endpoint.
	JWTSecret string `koanf:"jwt_secret"`

	// Redis address for the rate limit store. Empty selects the in-memory store.
	RedisAddr string `koanf:"redis_addr"`

	// Path to the scoring calibration JSON. Empty uses default weights.
	CalibrationPath string `koanf:"calibration_path"`

	// Aggregation cadence per period.
	DailyInterval   time.Duration `koanf:"daily_interval"`
	WeeklyInterval  time.Duration `koanf:"weekly_interval"`
	MonthlyInterval time.Duration `koanf:"monthly_interval"`
	AllTimeInterval time.Duration `koanf:"all_time_interval"`

	// Timeout for a single aggregation cycle.
	AggregationTimeout time.Duration `koanf:"aggregation_timeout"`

	// Read API rate limit.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret     = errors.New("JWT_SECRET is required")
	ErrInvalidPort          = errors.New("PORT must be a valid integer")
	ErrInvalidDuration      = errors.New("interval must be a valid duration")
	ErrNonPositiveInterval  = errors.New("aggregation intervals must be positive")
	ErrNonPositiveRateLimit = errors.New("rate limit requests must be positive")
)

// Default values for non-secret configuration.
const (
	DefaultPort               = 8080
	DefaultEnv                = "development"
	DefaultDailyInterval      = 10 * time.Minute
	DefaultWeeklyInterval     = time.Hour
	DefaultMonthlyInterval    = 6 * time.Hour
	DefaultAllTimeInterval    = 24 * time.Hour
	DefaultAggregationTimeout = 2 * time.Minute
	DefaultRateLimitRequests  = 100
	DefaultRateLimitWindow    = time.Minute
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error
// is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	rateRequests, rateErr := getEnvIntOrDefault("RATE_LIMIT_REQUESTS", k.Int("rate_limit_requests"), DefaultRateLimitRequests)
	if rateErr != nil {
		loadErrs = append(loadErrs, rateErr)
	}

	durations := map[string]time.Duration{}
	for _, d := range []struct {
		envKey   string
		koanfKey string
		def      time.Duration
	}{
		{"DAILY_INTERVAL", "daily_interval", DefaultDailyInterval},
		{"WEEKLY_INTERVAL", "weekly_interval", DefaultWeeklyInterval},
		{"MONTHLY_INTERVAL", "monthly_interval", DefaultMonthlyInterval},
		{"ALL_TIME_INTERVAL", "all_time_interval", DefaultAllTimeInterval},
		{"AGGREGATION_TIMEOUT", "aggregation_timeout", DefaultAggregationTimeout},
		{"RATE_LIMIT_WINDOW", "rate_limit_window", DefaultRateLimitWindow},
	} {
		val, err := getEnvDurationOrDefault(d.envKey, k.String(d.koanfKey), d.def)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		durations[d.envKey] = val
	}

	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL:        getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		JWTSecret:          getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		RedisAddr:          getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		CalibrationPath:    getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		DailyInterval:      durations["DAILY_INTERVAL"],
		WeeklyInterval:     durations["WEEKLY_INTERVAL"],
		MonthlyInterval:    durations["MONTHLY_INTERVAL"],
		AllTimeInterval:    durations["ALL_TIME_INTERVAL"],
		AggregationTimeout: durations["AGGREGATION_TIMEOUT"],
		RateLimitRequests:  rateRequests,
		RateLimitWindow:    durations["RATE_LIMIT_WINDOW"],
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// Validate checks that all required configuration values are present and
// sensible. Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w (got %d)", ErrInvalidPort, c.Port))
	}
	for _, interval := range []time.Duration{c.DailyInterval, c.WeeklyInterval, c.MonthlyInterval, c.AllTimeInterval, c.AggregationTimeout} {
		if interval <= 0 {
			errs = append(errs, ErrNonPositiveInterval)
			break
		}
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, ErrNonPositiveRateLimit)
	}

	return errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration if
// set, otherwise the koanf string value, or default. Returns an error if a
// provided value cannot be parsed as a Go duration.
func getEnvDurationOrDefault(envKey string, koanfVal string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(envKey)
	if val == "" {
		val = koanfVal
	}
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w (got %q)", envKey, ErrInvalidDuration, val)
	}
	return d, nil
}
