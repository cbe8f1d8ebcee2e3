package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds a readiness endpoint covering the store and Redis.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		storeStatus := "ok"
		redisStatus := "ok"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := pingStore(ctx, d); err != nil {
			storeStatus = err.Error()
		}
		if err := d.Cache.Ping(ctx).Err(); err != nil {
			redisStatus = err.Error()
		}
		status := http.StatusOK
		if storeStatus != "ok" || redisStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{d.Cfg.StoreDriver: storeStatus, "redis": redisStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func pingStore(ctx context.Context, d Deps) error {
	switch {
	case d.DB != nil:
		return d.DB.Ping(ctx)
	case d.Mongo != nil:
		return d.Mongo.Client().Ping(ctx, nil)
	default:
		return nil
	}
}
