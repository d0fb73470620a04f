// Package metrics exports a pool.Pool's statistics as Prometheus metrics.
package metrics
