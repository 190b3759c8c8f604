// Package leaderelection keeps a timer host active on at most one replica.
//
// Leadership is a Postgres session-scoped advisory lock held on a dedicated
// connection. There is no renewal or TTL: if the connection dies, Postgres
// releases the lock server-side. The heartbeat ping only detects local
// connection death so the leader can stop firing promptly.
package leaderelection

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"
)

// Reasons reported to LeaderLost.
const (
	ReasonShutdown = "shutdown"
	ReasonConnLost = "conn_lost"
	ReasonError    = "error"
)

// MetricsSink records leader election metrics. metrics.Sink satisfies it.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Session is a dedicated connection able to hold an advisory lock.
type Session interface {
	TryLock(ctx context.Context, key int64) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Sessions opens dedicated sessions.
type Sessions interface {
	Open(ctx context.Context) (Session, error)
}

// Duty is the work performed while leader. It must return once ctx is cancelled.
type Duty func(ctx context.Context) error

type Elector struct {
	sessions          Sessions
	lockKey           int64
	retryInterval     time.Duration // follower: how often to attempt lock acquisition
	heartbeatInterval time.Duration // leader: how often to ping the dedicated connection
	metrics           MetricsSink   // optional
}

func New(sessions Sessions, lockKey int64, retryInterval, heartbeatInterval time.Duration) *Elector {
	return &Elector{
		sessions:          sessions,
		lockKey:           lockKey,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
	}
}

// NewPostgres creates an elector over a Postgres pool.
func NewPostgres(db *sql.DB, lockKey int64, retryInterval, heartbeatInterval time.Duration) *Elector {
	return New(postgresSessions{db: db}, lockKey, retryInterval, heartbeatInterval)
}

func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Run competes for leadership until ctx is cancelled. Each time the lock is
// acquired, duty runs with a context that is cancelled when leadership is
// lost; Run waits for duty to return before competing again.
func (e *Elector) Run(ctx context.Context, duty Duty) {
	log.Printf("leader: starting election loop (lock_key=%d, retry=%s, heartbeat=%s)",
		e.lockKey, e.retryInterval, e.heartbeatInterval)
	defer log.Println("leader: election loop stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		reason := e.runOnce(ctx, duty)

		if ctx.Err() != nil {
			return
		}
		if reason != "" {
			log.Printf("leader: lost leadership (reason=%s), will retry in %s", reason, e.retryInterval)
		}

		t := time.NewTimer(e.retryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// runOnce attempts to acquire the lock and hold it while duty runs.
// Returns the reason leadership was lost, "" if the lock was not acquired.
func (e *Elector) runOnce(ctx context.Context, duty Duty) string {
	session, err := e.sessions.Open(ctx)
	if err != nil {
		log.Printf("leader: failed to acquire dedicated connection: %v", err)
		return ""
	}
	defer session.Close()

	acquired, err := session.TryLock(ctx, e.lockKey)
	if err != nil {
		log.Printf("leader: advisory lock query failed: %v", err)
		return ""
	}
	if !acquired {
		log.Printf("leader: lock %d held by another instance, retrying in %s", e.lockKey, e.retryInterval)
		return ""
	}

	log.Printf("leader: acquired advisory lock %d", e.lockKey)
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(true)
		e.metrics.LeaderAcquired()
	}

	leaderCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- duty(leaderCtx) }()

	reason := e.holdLock(ctx, session, done)

	cancel()
	if reason != ReasonError {
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("leader: duty stopped with error: %v", err)
		}
	}

	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(false)
		e.metrics.LeaderLost(reason)
	}

	log.Printf("leader: released advisory lock %d", e.lockKey)
	return reason
}

// holdLock pings the session until shutdown, connection loss or duty exit.
func (e *Elector) holdLock(ctx context.Context, session Session, done <-chan error) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ReasonShutdown
		case err := <-done:
			// Duty returned while still leader; give up the lock so another replica can take over.
			log.Printf("leader: duty exited while leader: %v", err)
			return ReasonError
		case <-ticker.C:
			if err := session.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return ReasonShutdown
				}
				log.Printf("leader: dedicated connection ping failed: %v", err)
				return ReasonConnLost
			}
		}
	}
}

type postgresSessions struct {
	db *sql.DB
}

// Open reserves a pool connection; the advisory lock is bound to it.
func (p postgresSessions) Open(ctx context.Context) (Session, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return postgresSession{conn: conn}, nil
}

type postgresSession struct {
	conn *sql.Conn
}

func (s postgresSession) TryLock(ctx context.Context, key int64) (bool, error) {
	var acquired bool
	err := s.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired)
	return acquired, err
}

func (s postgresSession) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s postgresSession) Close() error {
	return s.conn.Close()
}
