package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/BlogHub/app/controllers"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealth(h.services.Health))

	if h.services.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.services.Gatherer, promhttp.HandlerOpts{})))
	}

	// Billing provider webhooks (not rate limited, signature-verified in controller)
	app.Post("/webhooks/stripe", h.billing.HandleStripeWebhook)
}
