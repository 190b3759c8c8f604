// Package logger builds the slog logger that timer functions write to.
//
// Entries go to an io.Writer as JSON or text. When a Sentry DSN is configured
// the same entries are fanned out to Sentry: warnings and errors are kept as
// Sentry logs, errors additionally open issues. Sentry initialization
// failures fall back to writer-only logging.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

type Config struct {
	Format string // "json" or "text"
	Level  string // debug, info, warn, error

	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
}

// New returns a logger writing to w and, when cfg.SentryDSN is set, to Sentry.
// The returned flush function must be called before exit; it is a no-op without Sentry.
func New(w io.Writer, cfg Config) (*slog.Logger, func(timeout time.Duration)) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		log.Printf("logger: %v, using info", err)
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	noFlush := func(time.Duration) {}
	if cfg.SentryDSN == "" {
		return slog.New(handler), noFlush
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		EnableLogs:  true,
	}); err != nil {
		log.Printf("logger: failed to initialize sentry: %v", err)
		return slog.New(handler), noFlush
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	flush := func(timeout time.Duration) {
		if !sentry.Flush(timeout) {
			log.Println("logger: sentry flush timed out")
		}
	}
	return slog.New(newMultiHandler(handler, sentryHandler)), flush
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
