package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/BlogHub/app/controllers"
	apiv1 "github.com/ManuelReschke/BlogHub/internal/api/v1"
	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
	"github.com/ManuelReschke/BlogHub/internal/pkg/middleware"
)

type ApiRouter struct {
	services *Services
	billing  *controllers.BillingController
	posts    *controllers.PostController
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 60),
		Expiration: time.Minute,
		Storage:    h.services.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.billing, h.posts)
	apiv1.RegisterHandlersWithOptions(v1, apiServer, apiv1.FiberServerOptions{
		AuthMiddleware: middleware.RequireAPIAuth,
	})
}

func NewApiRouter(s *Services, billing *controllers.BillingController, posts *controllers.PostController) *ApiRouter {
	return &ApiRouter{services: s, billing: billing, posts: posts}
}
