// Package session manages the single live database session used by the
// gateway. Sessions are created lazily, health-checked before reuse, and
// replaced when idle beyond the configured timeout or found dead.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/agentlake/sqlgate/internal/metrics"
)

const (
	defaultIdleTimeout  = 5 * time.Minute
	defaultReapInterval = 30 * time.Second
)

// Conn is the narrow surface of a live database connection the gateway
// needs. *pgx.Conn satisfies it through the adapter in pgx.go; tests
// substitute fakes. A Conn is not safe for concurrent use; the Manager
// serializes all access to it.
type Conn interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, statement string) (Rows, error)
	Close(ctx context.Context) error
}

// Rows is a minimal row iterator over a statement's result set. Columns is
// empty for statements that produce no rows; RowsAffected is valid once the
// rows are drained or closed.
type Rows interface {
	Columns() []string
	Next() bool
	Values() ([]any, error)
	Err() error
	RowsAffected() int64
	Close()
}

// DialFunc opens a new database connection.
type DialFunc func(ctx context.Context) (Conn, error)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Dial   DialFunc

	// IdleTimeout is the maximum duration a session may sit unused before
	// being replaced on the next acquire.
	IdleTimeout time.Duration

	// ReapInterval is how often the background reaper checks for an idle
	// session. The reaper is best-effort; the acquire-time check is the
	// authoritative guard.
	ReapInterval time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		return errors.New("clock is required")
	}
	if c.Dial == nil {
		return errors.New("dial func is required")
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ReapInterval == 0 {
		c.ReapInterval = defaultReapInterval
	}
	return nil
}

// Manager owns at most one live session. All lifecycle transitions happen
// under a single mutex; callers that arrive while another is provisioning
// block until the lock is released.
type Manager struct {
	log *slog.Logger
	cfg *Config

	mu        sync.Mutex
	conn      Conn
	createdAt time.Time
	lastUsed  time.Time
}

func New(cfg *Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session manager config: %w", err)
	}
	return &Manager{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Do runs fn with a healthy session, creating or replacing one if needed.
// The manager lock is held for the full duration of fn, so statement
// execution on the single underlying connection is serialized and the
// reaper can never close a session that is mid-statement. fn never receives
// a handle known to be dead; Do errors only when creating a replacement
// fails. lastUsedAt is updated before the lock is released so overlapping
// calls see a consistent idle clock.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Clock.Now()
	if err := m.ensureLocked(ctx, now); err != nil {
		return err
	}
	m.lastUsed = now

	err := fn(ctx, m.conn)
	m.lastUsed = m.cfg.Clock.Now()
	return err
}

// ensureLocked establishes a healthy session in m.conn, replacing an idle
// or dead one. Caller must hold m.mu.
func (m *Manager) ensureLocked(ctx context.Context, now time.Time) error {
	switch {
	case m.conn == nil:
		m.log.Info("session: no existing session, creating one")
		if err := m.dialLocked(ctx, now); err != nil {
			return err
		}

	case now.Sub(m.lastUsed) > m.cfg.IdleTimeout:
		idle := now.Sub(m.lastUsed)
		m.log.Info("session: idle timeout exceeded, replacing session",
			"idle", idle, "timeout", m.cfg.IdleTimeout)
		m.closeLocked(ctx)
		metrics.SessionsReplacedTotal.WithLabelValues("idle").Inc()
		if err := m.dialLocked(ctx, now); err != nil {
			return err
		}

	default:
		start := m.cfg.Clock.Now()
		if err := m.conn.Ping(ctx); err != nil {
			m.log.Warn("session: health check failed, replacing session",
				"error", err, "idle", now.Sub(m.lastUsed))
			m.closeLocked(ctx)
			metrics.SessionsReplacedTotal.WithLabelValues("dead").Inc()
			if err := m.dialLocked(ctx, now); err != nil {
				return err
			}
		} else {
			m.log.Debug("session: reusing existing session",
				"idle", now.Sub(m.lastUsed), "healthCheckDuration", m.cfg.Clock.Since(start))
		}
	}

	return nil
}

// Close closes the current session, if any. Safe to call on shutdown
// regardless of state.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	conn := m.conn
	m.conn = nil
	if err := conn.Close(ctx); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	m.log.Info("session: closed", "age", m.cfg.Clock.Since(m.createdAt))
	return nil
}

// Run proactively closes an idle session on a ticker until ctx is done.
// This is an optimization only; Do performs the authoritative check. The
// reaper takes the same lock as Do, so it can never close a session that is
// mid-statement.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.cfg.Clock.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.reapIdle(ctx)
		}
	}
}

func (m *Manager) reapIdle(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return
	}
	idle := m.cfg.Clock.Now().Sub(m.lastUsed)
	if idle <= m.cfg.IdleTimeout {
		return
	}
	m.log.Info("session: reaping idle session", "idle", idle, "timeout", m.cfg.IdleTimeout)
	m.closeLocked(ctx)
}

func (m *Manager) dialLocked(ctx context.Context, now time.Time) error {
	start := m.cfg.Clock.Now()
	conn, err := m.cfg.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial database: %w", err)
	}
	m.conn = conn
	m.createdAt = now
	metrics.SessionsOpenedTotal.Inc()
	m.log.Info("session: established", "dialDuration", m.cfg.Clock.Since(start))
	return nil
}

func (m *Manager) closeLocked(ctx context.Context) {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(ctx); err != nil {
		m.log.Error("session: error closing session", "error", err)
	}
	m.conn = nil
}
