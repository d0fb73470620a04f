// Package admin exposes a small HTTP surface for operating a pool.Pool:
// liveness/readiness probes, a JSON statistics dump, and a Prometheus
// scrape endpoint.
package admin

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/netresearch/dbpool/internal/metrics"
	"github.com/netresearch/dbpool/internal/pool"
)

// App is the admin HTTP server for a single pool.Pool.
type App struct {
	pool     *pool.Pool
	fiber    *fiber.App
	registry *prometheus.Registry
}

// NewApp builds the admin server and registers p's metrics under
// namespace.
func NewApp(namespace string, p *pool.Pool) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewPoolCollector(namespace, p))

	f := fiber.New(fiber.Config{
		AppName: "dbpool-admin",
	})

	a := &App{pool: p, fiber: f, registry: registry}
	a.setupRoutes()
	return a
}

func (a *App) setupRoutes() {
	a.fiber.Get("/health/live", a.livenessHandler)
	a.fiber.Get("/health/ready", a.readinessHandler)
	a.fiber.Get("/stats", a.statsHandler)

	handler := promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	a.fiber.Get("/metrics", adaptor.HTTPHandler(handler))
}

// Listen starts serving on addr. It blocks until the server stops.
func (a *App) Listen(addr string) error {
	return a.fiber.Listen(addr)
}

// Shutdown gracefully stops the HTTP server. It does not touch the
// underlying pool; callers shut that down separately.
func (a *App) Shutdown(ctx context.Context) error {
	log.Info().Msg("admin: shutting down HTTP server")
	return a.fiber.ShutdownWithContext(ctx)
}
