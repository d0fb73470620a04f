package pool

import (
	"context"
	"database/sql"
	"runtime/debug"
	"sync"
	"time"
)

// leaseState is the small bit of mutable state a LeaseHandle shares with
// every StatementHandle derived from it: a single closed flag so that
// closing a sub-handle never needs to reach back into the pool, and so a
// sub-handle reports itself closed the instant its parent does.
type leaseState struct {
	mu       sync.Mutex
	closed   bool
	closedAt time.Time
}

func (s *leaseState) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *leaseState) markClosed(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.closedAt = at
	}
}

// LeaseHandle is the consumer-facing wrapper around a session borrowed from
// a Pool. It forwards query operations to the backing session and
// intercepts Close so the raw session can never escape the pool's
// lifecycle management. A LeaseHandle must not be used from more than one
// goroutine concurrently, mirroring the backing session's own constraint.
type LeaseHandle struct {
	pool      *Pool
	ps        *pooledSession
	state     *leaseState
	createdAt time.Time
	stack     string
}

func newLeaseHandle(p *Pool, ps *pooledSession, createdAt time.Time) *LeaseHandle {
	return &LeaseHandle{
		pool:      p,
		ps:        ps,
		state:     &leaseState{},
		createdAt: createdAt,
		stack:     string(debug.Stack()),
	}
}

// Close returns the underlying session to the owning pool. It is idempotent
// and safe to call more than once or concurrently; only the first caller
// performs any work.
func (h *LeaseHandle) Close() error {
	return h.pool.Release(h)
}

// IsClosed reports whether Close has already completed for this handle.
func (h *LeaseHandle) IsClosed() bool {
	return h.state.isClosed()
}

// LeaseDuration reports how long this handle has held its session, or held
// it for in total if it has already been closed.
func (h *LeaseHandle) LeaseDuration() time.Duration {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if h.state.closed {
		return h.state.closedAt.Sub(h.createdAt)
	}
	return time.Since(h.createdAt)
}

func (h *LeaseHandle) checkOpen() error {
	if h.state.isClosed() {
		return ErrHandleClosed
	}
	return nil
}

// Exec forwards to the backing session's Exec.
func (h *LeaseHandle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	return h.ps.session.Exec(ctx, query, args...)
}

// Query forwards to the backing session's Query.
func (h *LeaseHandle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	return h.ps.session.Query(ctx, query, args...)
}

// Prepare forwards to the backing session's Prepare and wraps the result in
// a StatementHandle so it too cannot surface the raw session.
func (h *LeaseHandle) Prepare(ctx context.Context, query string) (*StatementHandle, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	stmt, err := h.ps.session.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return &StatementHandle{parent: h, stmt: stmt, state: h.state}, nil
}

// StatementHandle is a prepared statement scoped to a LeaseHandle. Closing
// it closes only the statement itself; it never releases the parent lease,
// and it reports itself closed the moment its parent does.
type StatementHandle struct {
	parent *LeaseHandle
	stmt   Statement
	state  *leaseState
}

func (s *StatementHandle) checkOpen() error {
	if s.state.isClosed() {
		return ErrHandleClosed
	}
	return nil
}

// IsClosed reports whether the parent lease has been closed. It does not
// track the statement's own Close separately; once Close has been called,
// further calls to Exec/Query will simply fail at the driver level.
func (s *StatementHandle) IsClosed() bool {
	return s.state.isClosed()
}

// Exec forwards to the prepared statement.
func (s *StatementHandle) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.stmt.Exec(ctx, args...)
}

// Query forwards to the prepared statement.
func (s *StatementHandle) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.stmt.Query(ctx, args...)
}

// Close closes the prepared statement. The parent lease is unaffected and
// must still be closed independently to return the session to the pool.
func (s *StatementHandle) Close() error {
	return s.stmt.Close()
}

// Unwrap would ordinarily hand back the raw backing session. A sub-handle
// never does that; it returns the owning LeaseHandle instead, so a caller
// asking for "the session" stays inside the pool's lifecycle management.
func (s *StatementHandle) Unwrap() *LeaseHandle {
	return s.parent
}

// LeaseDuration reports the owning lease's duration.
func (s *StatementHandle) LeaseDuration() time.Duration {
	return s.parent.LeaseDuration()
}
