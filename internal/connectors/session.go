package connectors

import (
	"context"
	"database/sql"
	"sync"

	"github.com/netresearch/dbpool/internal/pool"
)

// sqlConnSession adapts a single *sql.Conn to pool.Session. database/sql has
// no concept of toggling auto-commit on an existing connection: bare
// Exec/Query calls always auto-commit, and the only way to turn that off is
// to wrap the connection in an explicit *sql.Tx. SetAutoCommit(false) does
// exactly that; subsequent Exec/Query run against the open transaction.
type sqlConnSession struct {
	conn *sql.Conn

	mu         sync.Mutex
	tx         *sql.Tx
	autoCommit bool
	level      pool.IsolationLevel
}

func newSQLConnSession(conn *sql.Conn) *sqlConnSession {
	return &sqlConnSession{conn: conn, autoCommit: true, level: pool.LevelDefault}
}

func (s *sqlConnSession) Close() error {
	return s.conn.Close()
}

func (s *sqlConnSession) InAutoCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoCommit
}

func (s *sqlConnSession) SetAutoCommit(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled == s.autoCommit && (enabled || s.tx != nil) {
		return nil
	}

	if enabled {
		if s.tx != nil {
			if err := s.tx.Commit(); err != nil {
				return err
			}
			s.tx = nil
		}
		s.autoCommit = true
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, &sql.TxOptions{Isolation: levelToSQL(s.level)})
	if err != nil {
		return err
	}
	s.tx = tx
	s.autoCommit = false
	return nil
}

func (s *sqlConnSession) Rollback(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

func (s *sqlConnSession) IsolationLevel(_ context.Context) (pool.IsolationLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level, nil
}

func (s *sqlConnSession) SetIsolationLevel(ctx context.Context, level pool.IsolationLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if level == s.level {
		return nil
	}
	s.level = level

	if s.tx == nil {
		return nil
	}

	if err := s.tx.Rollback(); err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, &sql.TxOptions{Isolation: levelToSQL(level)})
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *sqlConnSession) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	tx := s.tx
	s.mu.Unlock()

	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return s.conn.ExecContext(ctx, query, args...)
}

func (s *sqlConnSession) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s.mu.Lock()
	tx := s.tx
	s.mu.Unlock()

	if tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *sqlConnSession) Prepare(ctx context.Context, query string) (pool.Statement, error) {
	s.mu.Lock()
	tx := s.tx
	s.mu.Unlock()

	var stmt *sql.Stmt
	var err error
	if tx != nil {
		stmt, err = tx.PrepareContext(ctx, query)
	} else {
		stmt, err = s.conn.PrepareContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	return &sqlStatement{stmt: stmt}, nil
}

type sqlStatement struct {
	stmt *sql.Stmt
}

func (s *sqlStatement) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	return s.stmt.ExecContext(ctx, args...)
}

func (s *sqlStatement) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	return s.stmt.QueryContext(ctx, args...)
}

func (s *sqlStatement) Close() error {
	return s.stmt.Close()
}

func levelToSQL(l pool.IsolationLevel) sql.IsolationLevel {
	switch l {
	case pool.LevelReadUncommitted:
		return sql.LevelReadUncommitted
	case pool.LevelReadCommitted:
		return sql.LevelReadCommitted
	case pool.LevelRepeatableRead:
		return sql.LevelRepeatableRead
	case pool.LevelSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
