package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/djlord-it/easy-timer/internal/cron"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// TIMER_SCHEDULE is required and must parse in TIMER_TIMEZONE.
	// %NAME% placeholders are resolved by the host at registration time.
	schedule := strings.TrimSpace(cfg.TimerSchedule)
	switch {
	case schedule == "":
		errs = append(errs, ValidationError{
			Field:   "TIMER_SCHEDULE",
			Message: "required",
		})
	case isPlaceholder(schedule):
	default:
		sched, err := cron.NewParser().Parse(schedule, "UTC")
		switch {
		case err != nil:
			errs = append(errs, ValidationError{
				Field:   "TIMER_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		case sched.Next(time.Now()).IsZero():
			errs = append(errs, ValidationError{
				Field:   "TIMER_SCHEDULE",
				Message: "expression never fires",
			})
		}
	}

	if cfg.TimerTimezone != "" {
		if _, err := time.LoadLocation(cfg.TimerTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "TIMER_TIMEZONE",
				Message: fmt.Sprintf("unknown timezone: %v", err),
			})
		}
	}

	errs = checkDuration(errs, "PAST_DUE_TOLERANCE", cfg.PastDueToleranceStr)
	errs = checkDuration(errs, "DB_OP_TIMEOUT", cfg.DBOpTimeoutStr)
	errs = checkDuration(errs, "MONITOR_BREAKER_COOLDOWN", cfg.MonitorBreakerCooldownStr)
	errs = checkDuration(errs, "LEADER_RETRY_INTERVAL", cfg.LeaderRetryIntervalStr)
	errs = checkDuration(errs, "LEADER_HEARTBEAT_INTERVAL", cfg.LeaderHeartbeatIntervalStr)
	errs = checkDuration(errs, "SHUTDOWN_TIMEOUT", cfg.ShutdownTimeoutStr)

	// MONITOR_BACKEND must be "memory", "redis" or "postgres"
	switch cfg.MonitorBackend {
	case "", MonitorMemory, MonitorPostgres:
	case MonitorRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "REDIS_ADDR",
				Message: "required when MONITOR_BACKEND=redis",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "MONITOR_BACKEND",
			Message: fmt.Sprintf("must be 'memory', 'redis' or 'postgres', got %q", cfg.MonitorBackend),
		})
	}

	if cfg.NeedsDatabase() && cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required when SINGLETON_ENABLED=true or MONITOR_BACKEND=postgres",
		})
	}

	if cfg.LogFormat != "" && cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, ValidationError{
			Field:   "LOG_FORMAT",
			Message: fmt.Sprintf("must be 'json' or 'text', got %q", cfg.LogFormat),
		})
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "LOG_LEVEL",
			Message: fmt.Sprintf("must be one of debug, info, warn, warning, error, got %q", cfg.LogLevel),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkDuration(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	switch {
	case err != nil:
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	case d <= 0:
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	return errs
}

func isPlaceholder(s string) bool {
	return len(s) > 2 && s[0] == '%' && s[len(s)-1] == '%'
}
