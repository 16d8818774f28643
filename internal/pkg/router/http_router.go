package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/BlogHub/app/controllers"
	"github.com/ManuelReschke/BlogHub/internal/pkg/middleware"
)

type HttpRouter struct {
	services *Services
	billing  *controllers.BillingController
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware(h.services.Verifier))

	h.registerPublicRoutes(app)
}

func NewHttpRouter(s *Services, billing *controllers.BillingController) *HttpRouter {
	return &HttpRouter{services: s, billing: billing}
}
