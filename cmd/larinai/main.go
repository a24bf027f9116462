package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/larinai/larinai/app/controllers"
	"github.com/larinai/larinai/app/repository"
	"github.com/larinai/larinai/internal/pkg/access"
	"github.com/larinai/larinai/internal/pkg/ai"
	"github.com/larinai/larinai/internal/pkg/artifacts"
	"github.com/larinai/larinai/internal/pkg/billing"
	"github.com/larinai/larinai/internal/pkg/cache"
	"github.com/larinai/larinai/internal/pkg/database"
	"github.com/larinai/larinai/internal/pkg/env"
	"github.com/larinai/larinai/internal/pkg/hcaptcha"
	"github.com/larinai/larinai/internal/pkg/jobqueue"
	"github.com/larinai/larinai/internal/pkg/mail"
	"github.com/larinai/larinai/internal/pkg/metrics"
	"github.com/larinai/larinai/internal/pkg/otp"
	"github.com/larinai/larinai/internal/pkg/router"
	"github.com/larinai/larinai/internal/pkg/session"
	"github.com/larinai/larinai/internal/pkg/storage"
	"github.com/larinai/larinai/internal/pkg/supabase"
	"github.com/larinai/larinai/internal/pkg/transcription"
)

func main() {
	app, shutdown := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatalf("[Server] Listen failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("[Server] Shutting down")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Errorf("[Server] Shutdown failed: %v", err)
	}
	shutdown()
}

// NewApplication wires every service and returns the app together with a
// function stopping the background workers.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	session.NewSessionStore()

	db := database.GetDB()
	repos := repository.NewRepositories(db)
	mailer := mail.NewFromEnv()

	identity := supabase.NewClient(supabase.ConfigFromEnv())
	tokens := supabase.NewTokenVerifier(env.GetEnv("SUPABASE_JWT_SECRET", ""))
	if !identity.Configured() {
		log.Warn("[Auth] Supabase is not configured, auth routes will fail")
	}

	ledger := billing.NewService(billing.NewRepository(db))
	accessSvc := access.NewService(repos, access.NewMailNotifier(mailer, env.GetEnv("ADMIN_NOTIFY_EMAIL", "")))

	var store storage.ObjectStore
	if cfg, err := storage.LoadConfig(); err != nil {
		log.Warnf("[Storage] Disabled: %v", err)
	} else if client, err := storage.NewClient(context.Background(), cfg); err != nil {
		log.Errorf("[Storage] Bucket check failed: %v", err)
	} else {
		store = client
	}

	jobs := jobqueue.GetManager()
	artifactSvc := artifacts.NewService(artifacts.Deps{
		Repos:       repos,
		Store:       store,
		Queue:       jobs.GetQueue(),
		Transcriber: transcription.NewAssemblyAI(transcription.ConfigFromEnv()),
		Assistant:   ai.NewClient(ai.ConfigFromEnv()),
		Ledger:      ledger,
	})
	artifactSvc.RegisterHandlers(jobs.GetQueue())
	jobs.Start()

	handlers := controllers.NewHandlers(controllers.Deps{
		Repos:     repos,
		Identity:  identity,
		OTP:       otp.NewService(repos.Profile, otp.NewMailSender(mailer), identity),
		Captcha:   hcaptcha.NewFromEnv(),
		Access:    accessSvc,
		Artifacts: artifactSvc,
		Billing:   ledger,
		Payments:  billing.NewStripe(billing.StripeConfigFromEnv()),
		Cache:     cache.Store{},
		Jobs:      jobs,
	})

	gauges, err := metrics.NewGaugeRefresher("@every 1m", func(ctx context.Context) (metrics.Snapshot, error) {
		var s metrics.Snapshot
		var err error
		if s.PendingRequests, err = repos.Request.CountPending(ctx); err != nil {
			return s, err
		}
		if s.ActiveSubscriptions, err = ledger.CountActiveSubscriptions(ctx); err != nil {
			return s, err
		}
		s.QueuedJobs, err = jobs.QueuedJobs(ctx)
		return s, err
	})
	if err != nil {
		log.Fatalf("[Metrics] Invalid gauge schedule: %v", err)
	}
	gauges.Start()

	cfg := fiber.Config{
		BodyLimit: 520 << 20, // audio uploads up to 500 MiB plus form overhead
	}
	router.ApplyProxyConfig(&cfg)
	app := fiber.New(cfg)

	// recovery and logging
	app.Use(recover.New(), logger.New(), metrics.Middleware())

	if pw := env.GetEnv("METRICS_PASSWORD", ""); pw != "" {
		guard := basicauth.New(basicauth.Config{
			Users: map[string]string{env.GetEnv("METRICS_USER", "metrics"): pw},
		})
		app.Get("/metrics", guard, adaptor.HTTPHandler(metrics.Handler()))
		app.Get("/monitor", guard, monitor.New(monitor.Config{Title: "LarinAI"}))
	} else {
		log.Warn("[Metrics] METRICS_PASSWORD not set, /metrics is disabled")
	}

	// SWAGGER / OPENAPI
	if doc := findOpenAPIFile(); doc != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: doc,
			Path:     "v1",
		}))
	}

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Handlers: handlers,
		Tokens:   tokens,
		Profiles: repos.Profile,
	})

	return app, func() {
		gauges.Stop()
		jobs.Stop()
	}
}

// findOpenAPIFile looks for the API document from the working directory and
// from cmd/larinai.
func findOpenAPIFile() string {
	for _, base := range []string{"./", "../../"} {
		p := base + "docs/openapi.yml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Warn("[Server] docs/openapi.yml not found, API docs disabled")
	return ""
}
