package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Monitor backends.
const (
	MonitorMemory   = "memory"
	MonitorRedis    = "redis"
	MonitorPostgres = "postgres"
)

// Config holds all configuration for the easytimer application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	TimerSchedule     string `json:"timer_schedule"`
	TimerRunOnStartup bool   `json:"timer_run_on_startup"`
	TimerUseMonitor   bool   `json:"timer_use_monitor"`
	TimerTimezone     string `json:"timer_timezone"`

	PastDueTolerance    time.Duration `json:"-"`
	PastDueToleranceStr string        `json:"past_due_tolerance"`

	MonitorBackend string `json:"monitor_backend"`
	RedisAddr      string `json:"redis_addr,omitempty"`
	DatabaseURL    string `json:"database_url,omitempty"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	// Consecutive redis/postgres monitor failures before the store is skipped for the cooldown.
	MonitorBreakerThreshold   int           `json:"monitor_breaker_threshold"`
	MonitorBreakerCooldown    time.Duration `json:"-"`
	MonitorBreakerCooldownStr string        `json:"monitor_breaker_cooldown"`

	// SingletonEnabled runs the host only on the replica holding the advisory lock.
	SingletonEnabled bool `json:"singleton_enabled"`

	// LeaderLockKey: all instances sharing the same database must use the same key.
	LeaderLockKey int64 `json:"leader_lock_key"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	// LeaderHeartbeatInterval: pings the dedicated connection to detect local
	// connection death. Does NOT renew the advisory lock.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	LogFormat string `json:"log_format"` // "json" or "text"
	LogLevel  string `json:"log_level"`

	SentryDSN         string `json:"sentry_dsn,omitempty"`
	SentryEnvironment string `json:"sentry_environment"`

	ShutdownTimeout    time.Duration `json:"-"`
	ShutdownTimeoutStr string        `json:"shutdown_timeout"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		TimerSchedule:              os.Getenv("TIMER_SCHEDULE"),
		TimerRunOnStartup:          os.Getenv("TIMER_RUN_ON_STARTUP") == "true",
		TimerUseMonitor:            os.Getenv("TIMER_USE_MONITOR") != "false",
		TimerTimezone:              os.Getenv("TIMER_TIMEZONE"),
		PastDueToleranceStr:        os.Getenv("PAST_DUE_TOLERANCE"),
		MonitorBackend:             os.Getenv("MONITOR_BACKEND"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		DBOpTimeoutStr:             os.Getenv("DB_OP_TIMEOUT"),
		MonitorBreakerCooldownStr:  os.Getenv("MONITOR_BREAKER_COOLDOWN"),
		SingletonEnabled:           os.Getenv("SINGLETON_ENABLED") == "true",
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		MetricsPort:                os.Getenv("METRICS_PORT"),
		LogFormat:                  os.Getenv("LOG_FORMAT"),
		LogLevel:                   os.Getenv("LOG_LEVEL"),
		SentryDSN:                  os.Getenv("SENTRY_DSN"),
		SentryEnvironment:          os.Getenv("SENTRY_ENVIRONMENT"),
		ShutdownTimeoutStr:         os.Getenv("SHUTDOWN_TIMEOUT"),
	}

	if lockKeyStr := os.Getenv("LEADER_LOCK_KEY"); lockKeyStr != "" {
		if n, err := parseInt(lockKeyStr); err == nil && n > 0 {
			cfg.LeaderLockKey = int64(n)
		} else {
			log.Printf("config: invalid LEADER_LOCK_KEY %q (must be a positive integer), using default 728380", lockKeyStr)
		}
	}
	if cfg.LeaderLockKey == 0 {
		cfg.LeaderLockKey = 728380
	}

	if s := os.Getenv("MONITOR_BREAKER_THRESHOLD"); s != "" {
		if n, err := parseInt(s); err == nil && n > 0 {
			cfg.MonitorBreakerThreshold = n
		} else {
			log.Printf("config: invalid MONITOR_BREAKER_THRESHOLD %q (must be a positive integer), using default 3", s)
		}
	}
	if cfg.MonitorBreakerThreshold == 0 {
		cfg.MonitorBreakerThreshold = 3
	}

	if cfg.TimerTimezone == "" {
		cfg.TimerTimezone = "UTC"
	}
	if cfg.PastDueToleranceStr == "" {
		cfg.PastDueToleranceStr = "1s"
	}
	if cfg.MonitorBackend == "" {
		cfg.MonitorBackend = MonitorMemory
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.MonitorBreakerCooldownStr == "" {
		cfg.MonitorBreakerCooldownStr = "30s"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SentryEnvironment == "" {
		cfg.SentryEnvironment = "production"
	}
	if cfg.ShutdownTimeoutStr == "" {
		cfg.ShutdownTimeoutStr = "10s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.PastDueToleranceStr); err == nil {
		cfg.PastDueTolerance = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.MonitorBreakerCooldownStr); err == nil {
		cfg.MonitorBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}
	if d, err := time.ParseDuration(cfg.ShutdownTimeoutStr); err == nil {
		cfg.ShutdownTimeout = d
	}

	return cfg
}

// NeedsDatabase reports whether any enabled component requires DATABASE_URL.
func (c Config) NeedsDatabase() bool {
	return c.SingletonEnabled || c.MonitorBackend == MonitorPostgres
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.DatabaseURL = maskSecret(c.DatabaseURL)
	masked.SentryDSN = maskSecret(c.SentryDSN)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://", "https://", "http://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
