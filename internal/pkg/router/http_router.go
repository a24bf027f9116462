package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/larinai/larinai/app/controllers"
	"github.com/larinai/larinai/internal/pkg/middleware"
)

type HttpRouter struct {
	handlers *controllers.Handlers
	tokens   middleware.TokenVerifier
	profiles middleware.ProfileLookup
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware(h.tokens, h.profiles))

	h.registerPublicRoutes(app)
}

func NewHttpRouter(d Deps) *HttpRouter {
	return &HttpRouter{handlers: d.Handlers, tokens: d.Tokens, profiles: d.Profiles}
}
