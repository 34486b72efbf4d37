package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Triage         *handlers.TriageHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	triage := app.Group("/v1/triage", cfg.AuthMiddleware.Handle)
	triage.Post("/items/:id", auth.RequireScope(auth.ScopeTriageRun), cfg.Triage.ProcessItem)
	triage.Post("/run", auth.RequireScope(auth.ScopeTriageRun), cfg.Triage.Run)
	triage.Post("/recalculate", auth.RequireScope(auth.ScopeTriageRun), cfg.Triage.Recalculate)
	triage.Get("/items/:id/features", auth.RequireScope(auth.ScopeTriageRead), cfg.Triage.Features)
	triage.Get("/backlog", auth.RequireScope(auth.ScopeTriageRead), cfg.Triage.Backlog)
	triage.Get("/capacity-risk", auth.RequireScope(auth.ScopeTriageRead), cfg.Triage.CapacityRisk)
	triage.Get("/model", auth.RequireScope(auth.ScopeTriageRead), cfg.Triage.ModelStatus)
	triage.Post("/config/reload", auth.RequireScope(auth.ScopeTriageAdmin), cfg.Triage.ReloadConfig)
}
