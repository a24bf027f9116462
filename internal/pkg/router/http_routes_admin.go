package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/larinai/larinai/internal/pkg/middleware"
)

func (r ApiRouter) registerSuperadminRoutes(api fiber.Router) {
	s := r.h.Superadmin
	adminGroup := api.Group("/superadmin", middleware.RequireSuperadmin)
	adminGroup.Get("/users", s.HandleUsers)
	adminGroup.Get("/requests", s.HandleRequests)
	adminGroup.Patch("/requests/:id", s.HandleToggleRequest)
	adminGroup.Get("/functions", s.HandleFunctions)
	adminGroup.Get("/stats", s.HandleStats)
}
