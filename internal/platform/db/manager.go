package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/singleflight"

	"github.com/kis-labs/webbuilder/internal/shared"
)

// Conn is the query surface shared by pools, connections and transactions.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Handle is a live, shareable data store handle. *pgxpool.Pool satisfies it.
type Handle interface {
	Conn
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// ConnectFunc establishes a new Handle.
type ConnectFunc func(ctx context.Context) (Handle, error)

// State is the lifecycle state of a Manager.
//
// StateFailed is observable but not sticky: Acquire treats it exactly like
// StateUninitialized and starts a fresh connect. It stays visible so health
// checks can report the last attempt's outcome.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const defaultConnectTimeout = 10 * time.Second

// Manager lazily establishes one process-wide Handle. Concurrent callers that
// arrive while a connect is in flight wait for that attempt instead of
// starting their own. A failed attempt leaves the manager in StateFailed and
// the next Acquire tries again.
type Manager struct {
	connect ConnectFunc
	timeout time.Duration
	logger  *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	handle  Handle
	lastErr error
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithConnectTimeout bounds each connect attempt.
func WithConnectTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewManager constructs an uninitialised Manager.
func NewManager(connect ConnectFunc, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		connect: connect,
		timeout: defaultConnectTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns the shared handle, connecting on first use. The caller's
// ctx bounds only its own wait; the connect attempt itself is detached from
// any single caller and bounded by the connect timeout.
func (m *Manager) Acquire(ctx context.Context) (Handle, error) {
	if h := m.ready(); h != nil {
		return h, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan("connect", func() (any, error) {
		return m.initialize(detached)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Handle), nil
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err returns the error of the most recent failed attempt, if any.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Close releases the handle and returns the manager to StateUninitialized.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil {
		m.handle.Close()
	}
	m.handle = nil
	m.state = StateUninitialized
	m.lastErr = nil
}

func (m *Manager) ready() Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateReady {
		return m.handle
	}
	return nil
}

func (m *Manager) initialize(ctx context.Context) (Handle, error) {
	m.mu.Lock()
	// A previous flight may have completed between the caller's ready check
	// and this call.
	if m.state == StateReady {
		h := m.handle
		m.mu.Unlock()
		return h, nil
	}
	m.state = StateInitializing
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	started := time.Now()
	m.logger.Info("database connect starting")
	h, err := m.connect(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("platform/db: connect: %w", err)
		m.state = StateFailed
		m.lastErr = err
		m.logger.Error("database connect failed",
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("error", err))
		return nil, err
	}
	m.state = StateReady
	m.handle = h
	m.lastErr = nil
	m.logger.Info("database connect ready", slog.Duration("elapsed", time.Since(started)))
	return h, nil
}

// AcquireError classifies an Acquire failure for callers that map errors to
// responses: the caller's own cancellation is returned unchanged, anything
// else is reported as shared.ErrConnectionUnavailable.
func AcquireError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", shared.ErrConnectionUnavailable, err)
}
