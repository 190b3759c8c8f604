package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		TimerSchedule:       "0 */5 * * * *",
		TimerTimezone:       "UTC",
		PastDueToleranceStr: "1s",
		MonitorBackend:      MonitorMemory,
		LogFormat:           "json",
		LogLevel:            "info",
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_AcceptedSchedules(t *testing.T) {
	for _, schedule := range []string{"*/5 * * * *", "0 */5 * * * *", "@hourly", "@every 90s", "%MY_SCHEDULE%"} {
		t.Run(schedule, func(t *testing.T) {
			cfg := validConfig()
			cfg.TimerSchedule = schedule
			if err := Validate(cfg); err != nil {
				t.Errorf("schedule %q should be valid, got: %v", schedule, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
		wantMsg   string
	}{
		{"missing schedule", func(c *Config) { c.TimerSchedule = "" }, "TIMER_SCHEDULE", "required"},
		{"bad schedule", func(c *Config) { c.TimerSchedule = "every five minutes" }, "TIMER_SCHEDULE", "invalid cron expression"},
		{"never fires", func(c *Config) { c.TimerSchedule = "0 0 30 2 *" }, "TIMER_SCHEDULE", "never fires"},
		{"bad timezone", func(c *Config) { c.TimerTimezone = "Mars/Olympus" }, "TIMER_TIMEZONE", "unknown timezone"},
		{"bad tolerance", func(c *Config) { c.PastDueToleranceStr = "soon" }, "PAST_DUE_TOLERANCE", "invalid duration"},
		{"zero tolerance", func(c *Config) { c.PastDueToleranceStr = "0s" }, "PAST_DUE_TOLERANCE", "must be positive"},
		{"negative shutdown", func(c *Config) { c.ShutdownTimeoutStr = "-1s" }, "SHUTDOWN_TIMEOUT", "must be positive"},
		{"zero breaker cooldown", func(c *Config) { c.MonitorBreakerCooldownStr = "0s" }, "MONITOR_BREAKER_COOLDOWN", "must be positive"},
		{"unknown backend", func(c *Config) { c.MonitorBackend = "etcd" }, "MONITOR_BACKEND", "must be"},
		{"redis without addr", func(c *Config) { c.MonitorBackend = MonitorRedis }, "REDIS_ADDR", "required"},
		{"postgres without url", func(c *Config) { c.MonitorBackend = MonitorPostgres }, "DATABASE_URL", "required"},
		{"singleton without url", func(c *Config) { c.SingletonEnabled = true }, "DATABASE_URL", "required"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT", "must be"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "LOG_LEVEL", "must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if verrs[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", verrs[0].Field, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.TimerSchedule = ""
	cfg.MonitorBackend = "etcd"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "2 validation errors") {
		t.Errorf("error should report count: %q", err.Error())
	}
}

func TestValidationErrors_Empty(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "" {
		t.Errorf("empty ValidationErrors.Error() = %q, want empty", got)
	}
}

func TestValidate_AcceptsLevelsTheLoggerParses(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "WARN"} {
		cfg := validConfig()
		cfg.LogLevel = level
		if err := Validate(cfg); err != nil {
			t.Errorf("LOG_LEVEL=%q should be valid, got: %v", level, err)
		}
	}
}
