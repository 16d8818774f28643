package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong defines model for Pong.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface represents all server handlers of public/docs/v1/openapi.yml.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /billing/plans)
	GetBillingPlans(c *fiber.Ctx) error
	// (POST /billing/checkout)
	PostBillingCheckout(c *fiber.Ctx) error
	// (GET /billing/entitlement)
	GetBillingEntitlement(c *fiber.Ctx) error
	// (GET /posts)
	GetPosts(c *fiber.Ctx) error
	// (POST /posts)
	PostPosts(c *fiber.Ctx) error
	// (GET /posts/{slug})
	GetPost(c *fiber.Ctx, slug string) error
	// (PATCH /posts/{slug})
	PatchPost(c *fiber.Ctx, slug string) error
	// (DELETE /posts/{slug})
	DeletePost(c *fiber.Ctx, slug string) error
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

// FiberServerOptions provides options for the Fiber server.
type FiberServerOptions struct {
	BaseURL string
	// AuthMiddleware guards the operations that declare bearerAuth security.
	AuthMiddleware fiber.Handler
}

func (siw *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return siw.Handler.GetPing(c)
}

func (siw *ServerInterfaceWrapper) GetBillingPlans(c *fiber.Ctx) error {
	return siw.Handler.GetBillingPlans(c)
}

func (siw *ServerInterfaceWrapper) PostBillingCheckout(c *fiber.Ctx) error {
	return siw.Handler.PostBillingCheckout(c)
}

func (siw *ServerInterfaceWrapper) GetBillingEntitlement(c *fiber.Ctx) error {
	return siw.Handler.GetBillingEntitlement(c)
}

func (siw *ServerInterfaceWrapper) GetPosts(c *fiber.Ctx) error {
	return siw.Handler.GetPosts(c)
}

func (siw *ServerInterfaceWrapper) PostPosts(c *fiber.Ctx) error {
	return siw.Handler.PostPosts(c)
}

func slugParam(c *fiber.Ctx) (string, error) {
	slug := c.Params("slug")
	if slug == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "Invalid format for parameter slug")
	}
	return slug, nil
}

func (siw *ServerInterfaceWrapper) GetPost(c *fiber.Ctx) error {
	slug, err := slugParam(c)
	if err != nil {
		return err
	}
	return siw.Handler.GetPost(c, slug)
}

func (siw *ServerInterfaceWrapper) PatchPost(c *fiber.Ctx) error {
	slug, err := slugParam(c)
	if err != nil {
		return err
	}
	return siw.Handler.PatchPost(c, slug)
}

func (siw *ServerInterfaceWrapper) DeletePost(c *fiber.Ctx) error {
	slug, err := slugParam(c)
	if err != nil {
		return err
	}
	return siw.Handler.DeletePost(c, slug)
}

// RegisterHandlers creates http.Handler with routing matching the OpenAPI document.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	RegisterHandlersWithOptions(router, si, FiberServerOptions{})
}

// RegisterHandlersWithOptions creates http.Handler with additional options
func RegisterHandlersWithOptions(router fiber.Router, si ServerInterface, options FiberServerOptions) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}
	auth := options.AuthMiddleware
	if auth == nil {
		auth = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get(options.BaseURL+"/ping", wrapper.GetPing)
	router.Get(options.BaseURL+"/billing/plans", wrapper.GetBillingPlans)
	router.Post(options.BaseURL+"/billing/checkout", auth, wrapper.PostBillingCheckout)
	router.Get(options.BaseURL+"/billing/entitlement", auth, wrapper.GetBillingEntitlement)
	router.Get(options.BaseURL+"/posts", wrapper.GetPosts)
	router.Post(options.BaseURL+"/posts", auth, wrapper.PostPosts)
	router.Get(options.BaseURL+"/posts/:slug", wrapper.GetPost)
	router.Patch(options.BaseURL+"/posts/:slug", auth, wrapper.PatchPost)
	router.Delete(options.BaseURL+"/posts/:slug", auth, wrapper.DeletePost)
}
