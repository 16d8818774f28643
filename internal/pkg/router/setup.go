package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ManuelReschke/BlogHub/app/controllers"
	"github.com/ManuelReschke/BlogHub/app/repository"
	"github.com/ManuelReschke/BlogHub/internal/pkg/billing"
	"github.com/ManuelReschke/BlogHub/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Services carries everything the routes need. Build it once at startup.
type Services struct {
	Webhooks     controllers.WebhookHandler
	Checkout     controllers.CheckoutStarter
	Entitlements controllers.EntitlementReader
	Posts        repository.PostRepository
	Plans        *billing.PlanCatalog
	Verifier     *middleware.TokenVerifier
	// LimiterStorage backs the API rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
	// Gatherer is served on /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Health   map[string]controllers.Pinger
}

func InstallRouter(app *fiber.App, s *Services) {
	// Install HttpRouter first so the global UserContext middleware runs
	// before the API routes that depend on it.
	billingController := controllers.NewBillingController(s.Webhooks, s.Checkout, s.Entitlements, s.Plans)
	postController := controllers.NewPostController(s.Posts, s.Entitlements)
	setup(app,
		NewHttpRouter(s, billingController),
		NewApiRouter(s, billingController, postController),
	)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
