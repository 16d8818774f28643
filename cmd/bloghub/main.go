package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ManuelReschke/BlogHub/app/controllers"
	"github.com/ManuelReschke/BlogHub/app/repository"
	apiv1 "github.com/ManuelReschke/BlogHub/internal/api/v1"
	"github.com/ManuelReschke/BlogHub/internal/pkg/billing"
	"github.com/ManuelReschke/BlogHub/internal/pkg/cache"
	"github.com/ManuelReschke/BlogHub/internal/pkg/database"
	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
	"github.com/ManuelReschke/BlogHub/internal/pkg/jobqueue"
	"github.com/ManuelReschke/BlogHub/internal/pkg/mail"
	"github.com/ManuelReschke/BlogHub/internal/pkg/middleware"
	"github.com/ManuelReschke/BlogHub/internal/pkg/router"
)

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
	if sqlDB, err := database.GetDB().DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/bloghub to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// 1 MiB covers the largest provider event payloads.
	app := fiber.New(fiber.Config{
		AppName:   env.GetEnv("APP_NAME", "BlogHub"),
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if _, err := apiv1.LoadSpec(context.Background(), basePath+"public/docs/v1/openapi.yml"); err != nil {
		log.Fatalf("api docs: %v", err)
	}
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// BACKGROUND JOBS
	jobs := jobqueue.NewQueue(cache.GetClient(), env.GetEnvInt("JOB_WORKERS", 2))
	app.Hooks().OnShutdown(func() error {
		jobs.Stop()
		return nil
	})

	// ROUTER
	router.InstallRouter(app, newServices(jobs))
	jobs.Start()

	return app
}

func newServices(jobs *jobqueue.Queue) *router.Services {
	repos := repository.GetGlobalRepositories()
	plans := billing.PlanCatalogFromEnv()

	if env.GetEnv("STRIPE_WEBHOOK_SECRET", "") == "" {
		log.Println("Warning: STRIPE_WEBHOOK_SECRET is empty, every webhook delivery will be rejected")
	}

	observer, err := billing.NewPrometheusObserver(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}
	opts := []billing.ReconcilerOption{
		billing.WithObserver(observer),
		billing.WithCheckoutNotifier(
			jobqueue.NewMailOutbox(jobs, billing.NewMailNotifier(mail.SendMail)),
			billing.NewRedisDeduper(cache.GetClient(), env.GetEnvDuration("BILLING_DEDUP_TTL", billing.DefaultDedupTTL)),
		),
	}
	if raw := env.GetEnv("STRIPE_LIVEMODE", ""); raw != "" {
		live, err := strconv.ParseBool(raw)
		if err != nil {
			log.Fatalf("STRIPE_LIVEMODE: %v", err)
		}
		opts = append(opts, billing.WithExpectedLivemode(live))
	}
	reconciler := billing.NewReconciler(billing.NewStripeEventSourceFromEnv(plans), repos.Billing, opts...)

	return &router.Services{
		Webhooks:       reconciler,
		Checkout:       billing.NewProvisionerFromDB(database.GetDB(), plans),
		Entitlements:   repos.Billing,
		Posts:          repos.Post,
		Plans:          plans,
		Verifier:       middleware.NewTokenVerifierFromEnv(),
		LimiterStorage: cache.NewFiberStorage(cache.LimiterDatabase),
		Gatherer:       prometheus.DefaultGatherer,
		Health: map[string]controllers.Pinger{
			"database": func(ctx context.Context) error {
				sqlDB, err := database.GetDB().DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"cache": func(ctx context.Context) error {
				return cache.GetClient().Ping(ctx).Err()
			},
		},
	}
}
