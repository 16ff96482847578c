package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

// ReadyzHandler reports not ready when either the batch store or the rate
// limit backend is unreachable. Scans can proceed without the limiter, but a
// replica with a dead limiter should still be rotated out.
func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		checks := fiber.Map{
			"postgres": checkStatus(sqlDB.PingContext(ctx)),
			"redis":    checkStatus(rdb.Ping(ctx).Err()),
		}

		status := "ready"
		statusCode := fiber.StatusOK
		for _, v := range checks {
			if v != "ok" {
				status = "not_ready"
				statusCode = fiber.StatusServiceUnavailable
			}
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

func checkStatus(err error) string {
	if err != nil {
		return "down"
	}
	return "ok"
}
