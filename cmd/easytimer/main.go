package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-timer/internal/config"
	"github.com/djlord-it/easy-timer/internal/cron"
	"github.com/djlord-it/easy-timer/internal/functions"
	"github.com/djlord-it/easy-timer/internal/host"
	"github.com/djlord-it/easy-timer/internal/leaderelection"
	"github.com/djlord-it/easy-timer/internal/logger"
	"github.com/djlord-it/easy-timer/internal/metrics"
	"github.com/djlord-it/easy-timer/internal/monitor"
	"github.com/djlord-it/easy-timer/internal/store/memory"
	"github.com/djlord-it/easy-timer/internal/store/postgres"
	redisstore "github.com/djlord-it/easy-timer/internal/store/redis"

	_ "github.com/lib/pq"
)

// cronParserAdapter adapts internal/cron.Parser to host.CronParser.
type cronParserAdapter struct {
	parser *cron.Parser
}

func (a *cronParserAdapter) Parse(expression string, timezone string) (host.CronSchedule, error) {
	sched, err := a.parser.Parse(expression, timezone)
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`easytimer - timer-triggered function host

Usage:
  easytimer <command>

Commands:
  serve      Run the timer function on its schedule
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  TIMER_SCHEDULE            Cron expression or %NAME% setting reference (required)
  TIMER_RUN_ON_STARTUP      Fire once at startup (default: "false")
  TIMER_USE_MONITOR         Detect firings missed while stopped (default: "true")
  TIMER_TIMEZONE            Timezone the schedule is evaluated in (default: "UTC")
  PAST_DUE_TOLERANCE        Lateness before a firing is past due (default: "1s")

  MONITOR_BACKEND           Schedule status store: memory, redis, postgres (default: "memory")
  REDIS_ADDR                Redis address (required for MONITOR_BACKEND=redis)
  DATABASE_URL              PostgreSQL connection string (required for postgres or singleton)
  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  MONITOR_BREAKER_THRESHOLD Store failures before it is skipped (default: "3")
  MONITOR_BREAKER_COOLDOWN  How long a failing store is skipped (default: "30s")

  SINGLETON_ENABLED         Fire on one replica only, via advisory lock (default: "false")
  LEADER_LOCK_KEY           Advisory lock key shared by all replicas (default: "728380")
  LEADER_RETRY_INTERVAL     Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Leader connection ping interval (default: "2s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  LOG_FORMAT                Function log format: json or text (default: "json")
  LOG_LEVEL                 Function log level (default: "info")
  SENTRY_DSN                Forward warnings and errors to Sentry (optional)
  SENTRY_ENVIRONMENT        Sentry environment (default: "production")
  SHUTDOWN_TIMEOUT          Graceful shutdown timeout (default: "10s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	fnLogger, flushLogs := logger.New(os.Stdout, logger.Config{
		Format:            cfg.LogFormat,
		Level:             cfg.LogLevel,
		SentryDSN:         cfg.SentryDSN,
		SentryEnvironment: cfg.SentryEnvironment,
		SentryRelease:     version,
	})
	defer flushLogs(2 * time.Second)

	var db *sql.DB
	if cfg.NeedsDatabase() {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			return exitRuntimeError
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			return exitRuntimeError
		}
	}

	// Initialize metrics sink (optional)
	var metricsSink metrics.Sink = metrics.NewNoopSink()
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("easytimer: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("easytimer: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("easytimer: metrics server error: %v", err)
			}
		}()
	}

	statusStore, closeMonitor, err := newMonitor(cfg, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize schedule monitor: %v\n", err)
		return exitRuntimeError
	}
	defer closeMonitor()

	h := host.New(
		host.Config{
			Timezone:         cfg.TimerTimezone,
			PastDueTolerance: cfg.PastDueTolerance,
			Settings:         os.LookupEnv,
		},
		&cronParserAdapter{parser: cron.NewParser()},
		fnLogger,
	).WithMonitor(statusStore).WithMetrics(metricsSink)

	if err := functions.Register(h, functions.Options{
		Schedule:     cfg.TimerSchedule,
		RunOnStartup: cfg.TimerRunOnStartup,
		UseMonitor:   cfg.TimerUseMonitor,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register %s: %v\n", functions.TimerFunctionName, err)
		return exitInvalidConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if cfg.SingletonEnabled {
			leaderelection.NewPostgres(db, cfg.LeaderLockKey, cfg.LeaderRetryInterval, cfg.LeaderHeartbeatInterval).
				WithMetrics(metricsSink).
				Run(ctx, h.Run)
			return
		}
		if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("easytimer: host stopped: %v", err)
		}
	}()

	log.Printf("easytimer: started (version=%s, singleton=%t, monitor=%s)",
		version, cfg.SingletonEnabled, cfg.MonitorBackend)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("easytimer: received signal %v, shutting down", received)

	// Phase 1: stop firing. A running invocation gets SHUTDOWN_TIMEOUT to finish.
	cancel()
	select {
	case <-done:
		log.Println("easytimer: host stopped")
	case <-time.After(cfg.ShutdownTimeout):
		log.Printf("easytimer: host did not stop within %s", cfg.ShutdownTimeout)
	}

	// Phase 2: stop metrics server
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("easytimer: metrics server shutdown error: %v", err)
		}
	}

	log.Println("easytimer: stopped")
	return exitSuccess
}

// newMonitor builds the schedule status store selected by MONITOR_BACKEND.
func newMonitor(cfg config.Config, db *sql.DB) (host.ScheduleMonitor, func(), error) {
	switch cfg.MonitorBackend {
	case config.MonitorRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Printf("easytimer: schedule monitor using redis (%s)", cfg.RedisAddr)
		guarded := monitor.Guard(redisstore.NewStore(client), cfg.MonitorBreakerThreshold, cfg.MonitorBreakerCooldown)
		return guarded, func() { client.Close() }, nil

	case config.MonitorPostgres:
		store := postgres.New(db, cfg.DBOpTimeout)
		if err := store.EnsureSchema(context.Background()); err != nil {
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Println("easytimer: schedule monitor using postgres")
		return monitor.Guard(store, cfg.MonitorBreakerThreshold, cfg.MonitorBreakerCooldown), func() {}, nil

	default:
		log.Println("easytimer: schedule monitor using memory")
		return memory.New(), func() {}, nil
	}
}

// logConfigWarnings reports risky but valid settings at startup.
func logConfigWarnings(cfg *config.Config) {
	if cfg.TimerRunOnStartup {
		log.Println("WARNING: TIMER_RUN_ON_STARTUP=true fires the function on every start and restart; do not use in production")
	}
	if cfg.TimerUseMonitor && cfg.MonitorBackend == config.MonitorMemory {
		log.Println("INFO: MONITOR_BACKEND=memory does not survive restarts; firings missed while stopped are not detected")
	}
	if cfg.SingletonEnabled && cfg.MonitorBackend == config.MonitorMemory && cfg.TimerUseMonitor {
		log.Println("WARNING: SINGLETON_ENABLED=true with MONITOR_BACKEND=memory; a new leader cannot see the previous leader's schedule status")
	}
	if !cfg.MetricsEnabled {
		log.Println("INFO: METRICS_ENABLED=false; invocation outcomes are only visible in logs")
	}
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("easytimer version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
