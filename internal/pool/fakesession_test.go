package pool

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeSession is an in-memory Session used throughout this package's tests.
// It tracks enough state (auto-commit, isolation level, open/closed) to
// exercise the pool's handout and release contracts without a real driver.
type fakeSession struct {
	mu           sync.Mutex
	id           int64
	autoCommit   bool
	isolation    IsolationLevel
	closed       bool
	rolledBack   int
	execCount    int
	openConn     *bool
}

func newFakeSession(id int64) *fakeSession {
	return &fakeSession{id: id, autoCommit: true}
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) InAutoCommit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.autoCommit
}

func (f *fakeSession) SetAutoCommit(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoCommit = enabled
	return nil
}

func (f *fakeSession) Rollback(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolledBack++
	return nil
}

func (f *fakeSession) IsolationLevel(_ context.Context) (IsolationLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isolation, nil
}

func (f *fakeSession) SetIsolationLevel(_ context.Context, level IsolationLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isolation = level
	return nil
}

func (f *fakeSession) Exec(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("fakeSession: exec on closed session")
	}
	f.execCount++
	return nil, nil
}

func (f *fakeSession) Query(_ context.Context, _ string, _ ...any) (*sql.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("fakeSession: query on closed session")
	}
	return nil, nil
}

func (f *fakeSession) Prepare(_ context.Context, _ string) (Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("fakeSession: prepare on closed session")
	}
	return &fakeStatement{}, nil
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeStatement struct {
	closed bool
}

func (s *fakeStatement) Exec(_ context.Context, _ ...any) (sql.Result, error)  { return nil, nil }
func (s *fakeStatement) Query(_ context.Context, _ ...any) (*sql.Rows, error)  { return nil, nil }
func (s *fakeStatement) Close() error                                          { s.closed = true; return nil }

// fakeConnector opens fakeSessions with sequential ids. failNext, if
// positive, makes the next N Open calls fail before succeeding again, so
// tests can exercise ConnectorError paths deterministically.
type fakeConnector struct {
	nextID   int64
	failNext int32
	opened   int32
}

func (c *fakeConnector) Open(_ context.Context) (Session, error) {
	if atomic.LoadInt32(&c.failNext) > 0 {
		atomic.AddInt32(&c.failNext, -1)
		return nil, errors.New("fakeConnector: simulated dial failure")
	}
	atomic.AddInt32(&c.opened, 1)
	id := atomic.AddInt64(&c.nextID, 1)
	return newFakeSession(id), nil
}
