package connectors

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver

	"github.com/netresearch/dbpool/internal/pool"
	"github.com/netresearch/dbpool/internal/retry"
)

// MySQLConnector opens pool.Session instances backed by a *sql.DB using
// go-sql-driver/mysql. It holds the *sql.DB itself (which maintains its own
// internal dial pool); the pool package only ever sees the single
// *sql.Conn each Open call pins from it.
type MySQLConnector struct {
	db          *sql.DB
	retryConfig retry.Config
}

// NewMySQLConnector opens the underlying *sql.DB for dsn without dialing
// yet (database/sql connects lazily on first use).
func NewMySQLConnector(dsn string) (*MySQLConnector, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &MySQLConnector{db: db, retryConfig: retry.PoolConfig()}, nil
}

// Open implements pool.Connector.
func (c *MySQLConnector) Open(ctx context.Context) (pool.Session, error) {
	conn, err := retry.DoWithResultConfig(ctx, c.retryConfig, func() (*sql.Conn, error) {
		return c.db.Conn(ctx)
	})
	if err != nil {
		return nil, err
	}
	return newSQLConnSession(conn), nil
}

// Close shuts down the underlying *sql.DB. Call it after the owning
// pool.Pool has been shut down.
func (c *MySQLConnector) Close() error {
	return c.db.Close()
}
