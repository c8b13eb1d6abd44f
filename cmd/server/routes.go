package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyframestudio/stage/internal/app"
	"github.com/keyframestudio/stage/internal/handler"
)

// registerRoutes registers all HTTP routes. enqueuer is nil when the
// worker queue is disabled.
func registerRoutes(srv *fiber.App, stack *app.Stack, enqueuer handler.BakeEnqueuer) {
	checks := map[string]handler.Pinger{}
	if stack.Redis != nil {
		checks["redis"] = stack.Redis
	}
	if stack.Postgres != nil {
		checks["postgres"] = stack.Postgres
	}
	if stack.Animations != nil {
		checks["minio"] = stack.Animations
	}

	health := handler.NewHealthHandler(stack.Config.Server.Version, checks, stack.Breakers)
	health.RegisterRoutes(srv)
	srv.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := srv.Group("/v1")
	handler.NewBakeHandler(stack.Logger, stack.Bakes, enqueuer).RegisterRoutes(v1)
	handler.NewCameraHandler(stack.Logger, stack.Cameras).RegisterRoutes(v1)
}
