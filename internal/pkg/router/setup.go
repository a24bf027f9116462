package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/larinai/larinai/app/controllers"
	"github.com/larinai/larinai/internal/pkg/middleware"
)

// Router installs a set of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries what the routers mount.
type Deps struct {
	Handlers *controllers.Handlers
	Tokens   middleware.TokenVerifier
	Profiles middleware.ProfileLookup
}

func InstallRouter(app *fiber.App, d Deps) {
	// HttpRouter installs the global UserContext middleware and the routes
	// that bypass the API limiter, so it goes first.
	setup(app, NewHttpRouter(d), NewApiRouter(d.Handlers))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
