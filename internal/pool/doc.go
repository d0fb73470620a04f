// Package pool provides a bounded, thread-safe cache of expensive, long-lived
// database sessions shared across concurrent workers.
//
// # Overview
//
// A Pool hands out sessions wrapped in a LeaseHandle, grows lazily up to a
// configured maximum, shrinks idle sessions that age past a configured
// limit, and retires sessions that have been leased too many times. All
// pool state — the set of managed sessions, the available queue, the leased
// map, and every counter — is protected by a single mutex/condition-variable
// pair; there is no finer-grained locking.
//
// # Components
//
//   - Connector opens a fresh backing Session on demand.
//   - IsolationPolicy enforces a declared transaction-isolation level on
//     handout.
//   - LeaseHandle is the consumer-visible wrapper through which a session is
//     used; closing it returns the session to the pool.
//   - Pool is the coordinator: acquisition, release, expiration, retirement,
//     shutdown.
//
// # Concurrency
//
// Sessions are only opened or closed while the pool's monitor is held; this
// bounds concurrent driver churn at the cost of serializing connection
// creation. Consumer use of an acquired session happens outside the lock.
// Waiters on acquire are woken by release, by an expiration pass that
// reduced the pool, or by shutdown; waits are chunked so a blocked goroutine
// periodically rechecks state even if a notification is lost.
package pool
