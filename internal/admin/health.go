package admin

import "github.com/gofiber/fiber/v2"

// livenessHandler reports whether the process is up and the pool has not
// been shut down. It never reports unhealthy due to pool exhaustion; that
// is a capacity concern, not a liveness one.
func (a *App) livenessHandler(c *fiber.Ctx) error {
	if a.pool.IsShutdown() {
		c.Status(fiber.StatusServiceUnavailable)
		return c.JSON(fiber.Map{"status": "shut down"})
	}
	return c.JSON(fiber.Map{"status": "alive"})
}

// readinessHandler reports unready when the pool is shut down or has no
// sessions available and is already at its configured maximum, since a new
// request would have to queue indefinitely behind existing leases.
func (a *App) readinessHandler(c *fiber.Ctx) error {
	if a.pool.IsShutdown() {
		c.Status(fiber.StatusServiceUnavailable)
		return c.JSON(fiber.Map{"status": "not ready", "reason": "pool is shut down"})
	}

	stats := a.pool.Statistics()
	if stats.AvailableConnections == 0 && stats.CurrentPoolSize >= stats.MaximumSize {
		c.Status(fiber.StatusServiceUnavailable)
		return c.JSON(fiber.Map{
			"status": "not ready",
			"reason": "pool exhausted",
			"stats":  stats,
		})
	}

	return c.JSON(fiber.Map{"status": "ready"})
}

// statsHandler dumps the pool's current Statistics snapshot as JSON.
func (a *App) statsHandler(c *fiber.Ctx) error {
	return c.JSON(a.pool.Statistics())
}
