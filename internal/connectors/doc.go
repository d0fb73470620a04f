// Package connectors provides pool.Connector and pool.Session
// implementations backed by database/sql drivers.
//
// Both implementations open a single *sql.Conn pinned from a driver's
// *sql.DB and wrap it to satisfy pool.Session's explicit auto-commit and
// isolation-level contract, which database/sql itself does not expose on a
// bare connection. Opening a session retries transient dial failures with
// internal/retry's pool-tuned backoff profile.
package connectors
