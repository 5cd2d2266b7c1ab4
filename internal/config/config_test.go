package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// configEnvVars lists every environment variable Load reads, so tests can
// isolate themselves from the host environment.
var configEnvVars = []string{
	"PORT",
	"ENV",
	"DATABASE_URL",
	"JWT_SECRET",
	"REDIS_ADDR",
	"CALIBRATION_PATH",
	"DAILY_INTERVAL",
	"WEEKLY_INTERVAL",
	"MONTHLY_INTERVAL",
	"ALL_TIME_INTERVAL",
	"AGGREGATION_TIMEOUT",
	"RATE_LIMIT_REQUESTS",
	"RATE_LIMIT_WINDOW",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func hasError(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// TestLoad_Defaults verifies defaulting when only the mandatory secret is set.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "supersecret32characterlongvalue!")

	cfg, errs := Load("")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Env != DefaultEnv {
		t.Errorf("Env = %q, want %q", cfg.Env, DefaultEnv)
	}
	if cfg.DailyInterval != DefaultDailyInterval {
		t.Errorf("DailyInterval = %v, want %v", cfg.DailyInterval, DefaultDailyInterval)
	}
	if cfg.WeeklyInterval != DefaultWeeklyInterval {
		t.Errorf("WeeklyInterval = %v, want %v", cfg.WeeklyInterval, DefaultWeeklyInterval)
	}
	if cfg.MonthlyInterval != DefaultMonthlyInterval {
		t.Errorf("MonthlyInterval = %v, want %v", cfg.MonthlyInterval, DefaultMonthlyInterval)
	}
	if cfg.AllTimeInterval != DefaultAllTimeInterval {
		t.Errorf("AllTimeInterval = %v, want %v", cfg.AllTimeInterval, DefaultAllTimeInterval)
	}
	if cfg.AggregationTimeout != DefaultAggregationTimeout {
		t.Errorf("AggregationTimeout = %v, want %v", cfg.AggregationTimeout, DefaultAggregationTimeout)
	}
	if cfg.RateLimitRequests != DefaultRateLimitRequests {
		t.Errorf("RateLimitRequests = %d, want %d", cfg.RateLimitRequests, DefaultRateLimitRequests)
	}
	if cfg.RateLimitWindow != DefaultRateLimitWindow {
		t.Errorf("RateLimitWindow = %v, want %v", cfg.RateLimitWindow, DefaultRateLimitWindow)
	}
	// Empty database URL is allowed; it selects the in-memory repositories.
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
}

// TestLoad_MissingJWTSecret verifies the only mandatory value.
func TestLoad_MissingJWTSecret(t *testing.T) {
	clearEnv(t)

	_, errs := Load("")
	if !hasError(errs, ErrMissingJWTSecret) {
		t.Errorf("expected ErrMissingJWTSecret, got %v", errs)
	}
}

// TestLoad_EnvOverrides verifies environment variables are honored.
func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "supersecret32characterlongvalue!")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/reviewrank")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DAILY_INTERVAL", "5m")
	t.Setenv("AGGREGATION_TIMEOUT", "30s")
	t.Setenv("RATE_LIMIT_REQUESTS", "25")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")

	cfg, errs := Load("")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %q, want production", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://localhost/reviewrank" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.DailyInterval != 5*time.Minute {
		t.Errorf("DailyInterval = %v, want 5m", cfg.DailyInterval)
	}
	if cfg.AggregationTimeout != 30*time.Second {
		t.Errorf("AggregationTimeout = %v, want 30s", cfg.AggregationTimeout)
	}
	if cfg.RateLimitRequests != 25 {
		t.Errorf("RateLimitRequests = %d, want 25", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow != 10*time.Second {
		t.Errorf("RateLimitWindow = %v, want 10s", cfg.RateLimitWindow)
	}
}

// TestLoad_FileWithEnvPrecedence verifies env vars win over file values.
func TestLoad_FileWithEnvPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "supersecret32characterlongvalue!")
	t.Setenv("PORT", "7777")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: 6666\nenv: staging\ndaily_interval: 15m\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, errs := Load(path)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != 7777 {
		t.Errorf("env var should win over file: Port = %d, want 7777", cfg.Port)
	}
	if cfg.Env != "staging" {
		t.Errorf("file value should apply when env unset: Env = %q, want staging", cfg.Env)
	}
	if cfg.DailyInterval != 15*time.Minute {
		t.Errorf("DailyInterval = %v, want 15m", cfg.DailyInterval)
	}
}

// TestLoad_MissingFileFails verifies an explicit but unreadable file is an error.
func TestLoad_MissingFileFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "supersecret32characterlongvalue!")

	if _, errs := Load(filepath.Join(t.TempDir(), "nope.yaml")); len(errs) == 0 {
		t.Error("expected error for missing config file, got none")
	}
}

// TestLoad_InvalidValues verifies parse and validation failures.
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr error
	}{
		{
			name:    "non-numeric port",
			envVars: map[string]string{"PORT": "not-a-port"},
			wantErr: ErrInvalidPort,
		},
		{
			name:    "port out of range",
			envVars: map[string]string{"PORT": "70000"},
			wantErr: ErrInvalidPort,
		},
		{
			name:    "unparseable interval",
			envVars: map[string]string{"DAILY_INTERVAL": "tomorrow"},
			wantErr: ErrInvalidDuration,
		},
		{
			name:    "negative interval",
			envVars: map[string]string{"WEEKLY_INTERVAL": "-1h"},
			wantErr: ErrNonPositiveInterval,
		},
		{
			name:    "zero rate limit",
			envVars: map[string]string{"RATE_LIMIT_REQUESTS": "0"},
			wantErr: ErrNonPositiveRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "supersecret32characterlongvalue!")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, errs := Load("")
			if !hasError(errs, tt.wantErr) {
				t.Errorf("expected %v in errors, got %v", tt.wantErr, errs)
			}
		})
	}
}

// TestValidate verifies standalone config validation.
func TestValidate(t *testing.T) {
	valid := &Config{
		Port:               8080,
		JWTSecret:          "secret",
		DailyInterval:      time.Minute,
		WeeklyInterval:     time.Minute,
		MonthlyInterval:    time.Minute,
		AllTimeInterval:    time.Minute,
		AggregationTimeout: time.Minute,
		RateLimitRequests:  10,
	}
	if errs := valid.Validate(); len(errs) != 0 {
		t.Errorf("expected valid config, got %v", errs)
	}

	invalid := &Config{Port: -1}
	errs := invalid.Validate()
	if !hasError(errs, ErrMissingJWTSecret) {
		t.Errorf("expected ErrMissingJWTSecret, got %v", errs)
	}
	if !hasError(errs, ErrInvalidPort) {
		t.Errorf("expected ErrInvalidPort, got %v", errs)
	}
	if !hasError(errs, ErrNonPositiveInterval) {
		t.Errorf("expected ErrNonPositiveInterval, got %v", errs)
	}
	if !hasError(errs, ErrNonPositiveRateLimit) {
		t.Errorf("expected ErrNonPositiveRateLimit, got %v", errs)
	}
}
