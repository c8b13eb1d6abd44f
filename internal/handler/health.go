package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/keyframestudio/stage/internal/pkg/circuitbreaker"
)

// Pinger is a dependency with a connectivity check
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping implements Pinger
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check endpoints
type HealthHandler struct {
	version   string
	startTime time.Time
	checks    map[string]Pinger
	breakers  func() []circuitbreaker.Stat
}

// NewHealthHandler creates a new health handler. checks holds the optional
// backends that are configured; breakers reports physics circuit state and
// may be nil.
func NewHealthHandler(version string, checks map[string]Pinger, breakers func() []circuitbreaker.Stat) *HealthHandler {
	if checks == nil {
		checks = map[string]Pinger{}
	}
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		checks:    checks,
		breakers:  breakers,
	}
}

// HealthStatus represents health check status
type HealthStatus struct {
	Status    string                `json:"status"`
	Version   string                `json:"version"`
	Uptime    string                `json:"uptime"`
	Timestamp string                `json:"timestamp"`
	Checks    map[string]string     `json:"checks"`
	Breakers  []circuitbreaker.Stat `json:"breakers,omitempty"`
}

// Health handles GET /health. An open physics breaker degrades the report
// without failing it, since camera endpoints still work.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string, len(h.checks)),
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			status.Status = "unhealthy"
			status.Checks[name] = "unhealthy: " + err.Error()
		} else {
			status.Checks[name] = "healthy"
		}
	}

	if h.breakers != nil {
		status.Breakers = h.breakers()
		for _, s := range status.Breakers {
			if s.State == circuitbreaker.StateOpen.String() && status.Status == "healthy" {
				status.Status = "degraded"
			}
		}
	}

	statusCode := fiber.StatusOK
	if status.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}
	return c.Status(statusCode).JSON(status)
}

// Liveness handles GET /health/live
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// Readiness handles GET /health/ready
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"reason": name + " unavailable",
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// Version handles GET /version
func (h *HealthHandler) Version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": h.version,
		"uptime":  time.Since(h.startTime).String(),
	})
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/health/live", h.Liveness)
	app.Get("/health/ready", h.Readiness)
	app.Get("/version", h.Version)
}
