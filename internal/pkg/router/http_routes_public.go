package router

import (
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Stripe retries deliveries on its own schedule; signature-verified in controller
	app.Post("/api/stripe/webhook", h.handlers.Billing.HandleStripeWebhook)
}
