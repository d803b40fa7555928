package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration derived from environment variables.
type Config struct {
	HTTPPort             string
	LogLevel             string
	JWTSecret            string
	JWTIssuer            string
	JWTAudience          string
	PollInterval         time.Duration
	PollEndpoints        map[domain.PendingList]string
	PushURL              string
	PushReconnectDelay   time.Duration
	UpstreamToken        string
	EffectorBaseURL      string
	EffectorTimeout      time.Duration
	EffectorRPS          float64
	FileBaseURL          string
	FailurePolicy        domain.FailurePolicy
	AllowNoDestination   bool
	MinNumericIDLength   int
	RedisURL             string
	DatabaseURL          string
	InFlightTTL          time.Duration
	AggregateCacheTTL    time.Duration
	DisplayTimezone      *time.Location
	PublicRateLimitRPS   int
	ActionRateLimitRPS   int
	MaxEvidenceSizeBytes int64
}

// Load reads environment variables using viper and returns a typed config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "port", "PORT", "CONSOLE_PORT")
	bindEnv(v, "log_level", "LOG_LEVEL", "CONSOLE_LOG_LEVEL")
	bindEnv(v, "jwt_secret", "JWT_SECRET", "CONSOLE_JWT_SECRET")
	bindEnv(v, "jwt_issuer", "JWT_ISSUER", "CONSOLE_JWT_ISSUER")
	bindEnv(v, "jwt_audience", "JWT_AUDIENCE", "CONSOLE_JWT_AUDIENCE")
	bindEnv(v, "poll_interval", "POLL_INTERVAL", "CONSOLE_POLL_INTERVAL")
	bindEnv(v, "poll_bank_url", "POLL_BANK_URL", "CONSOLE_POLL_BANK_URL")
	bindEnv(v, "poll_upi_url", "POLL_UPI_URL", "CONSOLE_POLL_UPI_URL")
	bindEnv(v, "poll_payout_url", "POLL_PAYOUT_URL", "CONSOLE_POLL_PAYOUT_URL")
	bindEnv(v, "push_url", "PUSH_URL", "CONSOLE_PUSH_URL")
	bindEnv(v, "push_reconnect_delay", "PUSH_RECONNECT_DELAY", "CONSOLE_PUSH_RECONNECT_DELAY")
	bindEnv(v, "upstream_token", "UPSTREAM_TOKEN", "CONSOLE_UPSTREAM_TOKEN")
	bindEnv(v, "effector_base_url", "EFFECTOR_BASE_URL", "CONSOLE_EFFECTOR_BASE_URL")
	bindEnv(v, "effector_timeout", "EFFECTOR_TIMEOUT", "CONSOLE_EFFECTOR_TIMEOUT")
	bindEnv(v, "effector_rps", "EFFECTOR_RPS", "CONSOLE_EFFECTOR_RPS")
	bindEnv(v, "file_base_url", "FILE_BASE_URL", "CONSOLE_FILE_BASE_URL")
	bindEnv(v, "failure_policy", "FAILURE_POLICY", "CONSOLE_FAILURE_POLICY")
	bindEnv(v, "allow_payout_without_destination", "ALLOW_PAYOUT_WITHOUT_DESTINATION", "CONSOLE_ALLOW_PAYOUT_WITHOUT_DESTINATION")
	bindEnv(v, "min_numeric_id_length", "MIN_NUMERIC_ID_LENGTH", "CONSOLE_MIN_NUMERIC_ID_LENGTH")
	bindEnv(v, "redis_url", "REDIS_URL", "CONSOLE_REDIS_URL")
	bindEnv(v, "database_url", "DATABASE_URL", "CONSOLE_DATABASE_URL")
	bindEnv(v, "in_flight_ttl", "IN_FLIGHT_TTL", "CONSOLE_IN_FLIGHT_TTL")
	bindEnv(v, "aggregate_cache_ttl", "AGGREGATE_CACHE_TTL", "CONSOLE_AGGREGATE_CACHE_TTL")
	bindEnv(v, "display_timezone", "DISPLAY_TIMEZONE", "CONSOLE_DISPLAY_TIMEZONE")
	bindEnv(v, "public_rate_limit_rps", "PUBLIC_RATE_LIMIT_RPS", "CONSOLE_PUBLIC_RATE_LIMIT_RPS")
	bindEnv(v, "action_rate_limit_rps", "ACTION_RATE_LIMIT_RPS", "AUTH_RATE_LIMIT_RPS", "CONSOLE_ACTION_RATE_LIMIT_RPS")
	bindEnv(v, "max_evidence_size_bytes", "MAX_EVIDENCE_SIZE_BYTES", "CONSOLE_MAX_EVIDENCE_SIZE_BYTES")

	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "payment-console")
	v.SetDefault("jwt_audience", "console-api")
	v.SetDefault("poll_interval", "15s")
	v.SetDefault("push_reconnect_delay", "3s")
	v.SetDefault("effector_base_url", "")
	v.SetDefault("effector_timeout", "15s")
	v.SetDefault("effector_rps", 5)
	v.SetDefault("file_base_url", "")
	v.SetDefault("failure_policy", string(domain.FailureRemove))
	v.SetDefault("allow_payout_without_destination", false)
	v.SetDefault("min_numeric_id_length", 3)
	v.SetDefault("redis_url", "")
	v.SetDefault("database_url", "")
	v.SetDefault("in_flight_ttl", "2m")
	v.SetDefault("aggregate_cache_ttl", "5s")
	v.SetDefault("display_timezone", "Local")
	v.SetDefault("public_rate_limit_rps", 20)
	v.SetDefault("action_rate_limit_rps", 5)
	v.SetDefault("max_evidence_size_bytes", 10<<20)

	durations := map[string]time.Duration{}
	for key, env := range map[string]string{
		"poll_interval":        "POLL_INTERVAL",
		"push_reconnect_delay": "PUSH_RECONNECT_DELAY",
		"effector_timeout":     "EFFECTOR_TIMEOUT",
		"in_flight_ttl":        "IN_FLIGHT_TTL",
		"aggregate_cache_ttl":  "AGGREGATE_CACHE_TTL",
	} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", env, err)
		}
		durations[key] = d
	}

	policy, err := domain.ParseFailurePolicy(v.GetString("failure_policy"))
	if err != nil {
		return nil, fmt.Errorf("invalid FAILURE_POLICY: %w", err)
	}

	loc, err := time.LoadLocation(v.GetString("display_timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}

	cfg := &Config{
		HTTPPort:    v.GetString("port"),
		LogLevel:    v.GetString("log_level"),
		JWTSecret:   v.GetString("jwt_secret"),
		JWTIssuer:   v.GetString("jwt_issuer"),
		JWTAudience: v.GetString("jwt_audience"),
		PollEndpoints: map[domain.PendingList]string{
			domain.PendingBankTopup: strings.TrimSpace(v.GetString("poll_bank_url")),
			domain.PendingUPITopup:  strings.TrimSpace(v.GetString("poll_upi_url")),
			domain.PendingPayout:    strings.TrimSpace(v.GetString("poll_payout_url")),
		},
		PollInterval:         durations["poll_interval"],
		PushURL:              strings.TrimSpace(v.GetString("push_url")),
		PushReconnectDelay:   durations["push_reconnect_delay"],
		UpstreamToken:        v.GetString("upstream_token"),
		EffectorBaseURL:      strings.TrimSpace(v.GetString("effector_base_url")),
		EffectorTimeout:      durations["effector_timeout"],
		EffectorRPS:          v.GetFloat64("effector_rps"),
		FileBaseURL:          strings.TrimSpace(v.GetString("file_base_url")),
		FailurePolicy:        policy,
		AllowNoDestination:   v.GetBool("allow_payout_without_destination"),
		MinNumericIDLength:   max(v.GetInt("min_numeric_id_length"), 0),
		RedisURL:             strings.TrimSpace(v.GetString("redis_url")),
		DatabaseURL:          strings.TrimSpace(v.GetString("database_url")),
		InFlightTTL:          durations["in_flight_ttl"],
		AggregateCacheTTL:    durations["aggregate_cache_ttl"],
		DisplayTimezone:      loc,
		PublicRateLimitRPS:   max(v.GetInt("public_rate_limit_rps"), 1),
		ActionRateLimitRPS:   max(v.GetInt("action_rate_limit_rps"), 1),
		MaxEvidenceSizeBytes: max(v.GetInt64("max_evidence_size_bytes"), 1<<20),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if strings.TrimSpace(cfg.JWTIssuer) == "" {
		return nil, fmt.Errorf("JWT_ISSUER is required")
	}
	if strings.TrimSpace(cfg.JWTAudience) == "" {
		return nil, fmt.Errorf("JWT_AUDIENCE is required")
	}
	for name, raw := range map[string]string{
		"POLL_BANK_URL":     cfg.PollEndpoints[domain.PendingBankTopup],
		"POLL_UPI_URL":      cfg.PollEndpoints[domain.PendingUPITopup],
		"POLL_PAYOUT_URL":   cfg.PollEndpoints[domain.PendingPayout],
		"PUSH_URL":          cfg.PushURL,
		"EFFECTOR_BASE_URL": cfg.EffectorBaseURL,
		"FILE_BASE_URL":     cfg.FileBaseURL,
	} {
		if err := validateURL(raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return cfg, nil
}

// PollConfigured reports whether any poll endpoint is set.
func (c *Config) PollConfigured() bool {
	for _, u := range c.PollEndpoints {
		if u != "" {
			return true
		}
	}
	return false
}

func validateURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q must be an absolute URL", raw)
	}
	return nil
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
