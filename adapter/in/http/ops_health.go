package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"bizops_server/infra/database"
	"bizops_server/pkg/metrics"
)

// HealthHandler serves liveness, readiness and runtime stats.
type HealthHandler struct {
	db      *pgxpool.Pool
	redis   *redis.Client
	metrics *metrics.Registry
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client, reg *metrics.Registry) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		metrics: reg,
	}
}

// Register registers health routes on the app root, outside auth.
func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/stats", h.Stats)
}

// Health is the liveness probe.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready checks backing stores.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["postgres"] = "healthy"
		}
	} else {
		checks["postgres"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats reports pool statistics and per-handler latency windows.
func (h *HealthHandler) Stats(c *fiber.Ctx) error {
	body := fiber.Map{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		body["pool"] = database.GetPoolStats(h.db)
	}
	if h.metrics != nil {
		body["latency"] = h.metrics.SnapshotAll()
	}

	return c.JSON(body)
}
