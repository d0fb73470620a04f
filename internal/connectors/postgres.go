package connectors

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/netresearch/dbpool/internal/pool"
	"github.com/netresearch/dbpool/internal/retry"
)

// PostgresConnector opens pool.Session instances backed by a *sql.DB using
// lib/pq.
type PostgresConnector struct {
	db          *sql.DB
	retryConfig retry.Config
}

// NewPostgresConnector opens the underlying *sql.DB for dsn without
// dialing yet (database/sql connects lazily on first use).
func NewPostgresConnector(dsn string) (*PostgresConnector, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresConnector{db: db, retryConfig: retry.PoolConfig()}, nil
}

// Open implements pool.Connector.
func (c *PostgresConnector) Open(ctx context.Context) (pool.Session, error) {
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
func (c *PostgresConnector) Close() error {
	return c.db.Close()
}
