package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/larinai/larinai/app/controllers"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/env"
	"github.com/larinai/larinai/internal/pkg/middleware"
)

type ApiRouter struct {
	h *controllers.Handlers
}

func rateLimited(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"success": false,
		"error":   apperr.RateLimited,
		"message": "too many requests, try again later",
	})
}

// newLimiter keys on c.IP(). Forwarding headers only count when
// ApplyProxyConfig trusted the peer they came from.
func newLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimited,
	})
}

// ApplyProxyConfig makes c.IP() read PROXY_HEADER, but only for requests
// arriving from one of TRUSTED_PROXIES (comma separated IPs or CIDRs).
func ApplyProxyConfig(cfg *fiber.Config) {
	var trusted []string
	for _, p := range strings.Split(env.GetEnv("TRUSTED_PROXIES", ""), ",") {
		if p = strings.TrimSpace(p); p != "" {
			trusted = append(trusted, p)
		}
	}
	if len(trusted) == 0 {
		return
	}
	cfg.ProxyHeader = env.GetEnv("PROXY_HEADER", fiber.HeaderXForwardedFor)
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = trusted
}

func (r ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api",
		cors.New(cors.Config{
			AllowOrigins:     env.GetEnv("CORS_ALLOW_ORIGINS", env.GetEnv("APP_BASE_URL", "http://localhost:3000")),
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: !strings.Contains(env.GetEnv("CORS_ALLOW_ORIGINS", ""), "*"),
		}),
		newLimiter(env.GetEnvInt("API_RATE_LIMIT", 120), time.Minute),
	)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "LarinAI API",
		})
	})

	r.registerAuthRoutes(api)
	r.registerManageRoutes(api)
	r.registerArtifactRoutes(api)
	r.registerBillingRoutes(api)
	r.registerSuperadminRoutes(api)
}

func (r ApiRouter) registerAuthRoutes(api fiber.Router) {
	a := r.h.Auth
	auth := api.Group("/auth", newLimiter(env.GetEnvInt("AUTH_RATE_LIMIT", 10), time.Minute))
	auth.Post("/register", a.HandleRegister)
	auth.Post("/verify-otp", a.HandleVerifyOTP)
	auth.Post("/resend-otp", a.HandleResendOTP)
	auth.Post("/login", a.HandleLogin)
	auth.Post("/logout", middleware.RequireAPISessionAuth, a.HandleLogout)
	auth.Post("/change-password", middleware.RequireAPISessionAuth, a.HandleChangePassword)
}

func (r ApiRouter) registerManageRoutes(api fiber.Router) {
	m := r.h.Manage
	manage := api.Group("/manage", middleware.RequireAPISessionAuth)
	manage.Get("/check-requests", m.HandleCheckRequests)
	manage.Post("/request-access", m.HandleRequestAccess)
	manage.Post("/activate-function", m.HandleActivateFunction)

	api.Get("/functions", middleware.RequireAPISessionAuth, m.HandleListFunctions)
	api.Get("/functions/:code", middleware.RequireAPISessionAuth, m.HandleFunctionByCode)
	api.Get("/activations", middleware.RequireAPISessionAuth, m.HandleListActivations)
	api.Patch("/activations/:id", middleware.RequireAPISessionAuth, m.HandleRenameActivation)
}

func (r ApiRouter) registerArtifactRoutes(api fiber.Router) {
	a := r.h.Artifacts
	auth := middleware.RequireAPISessionAuth

	api.Post("/transcription/upload", auth, a.HandleTranscriptionUpload)
	api.Post("/transcription/process", auth, a.HandleTranscriptionProcess)
	api.Get("/transcriptions", auth, a.HandleListTranscriptions)
	api.Get("/transcriptions/:id", auth, a.HandleGetTranscription)
	api.Patch("/transcriptions/:id", auth, a.HandleRenameTranscription)

	api.Post("/pdf/compile", auth, a.HandlePdfCompile)
	api.Post("/pdf/process", auth, a.HandlePdfProcess)
	api.Get("/pdf-compilations", auth, a.HandleListPdfCompilations)
	api.Get("/pdf-compilations/:id", auth, a.HandleGetPdfCompilation)
	api.Patch("/pdf-compilations/:id", auth, a.HandleRenamePdfCompilation)

	api.Post("/email/draft", auth, a.HandleEmailDraft)
}

func (r ApiRouter) registerBillingRoutes(api fiber.Router) {
	b := r.h.Billing
	auth := middleware.RequireAPISessionAuth

	api.Get("/credits/balance", auth, b.HandleBalance)
	api.Get("/credits/transactions", auth, b.HandleTransactions)
	api.Post("/stripe/create-checkout", auth, b.HandleCreateCheckout)
}

func NewApiRouter(h *controllers.Handlers) *ApiRouter {
	return &ApiRouter{h: h}
}
