package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/BlogHub/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	billing *controllers.BillingController
	posts   *controllers.PostController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(billing *controllers.BillingController, posts *controllers.PostController) *APIServer {
	return &APIServer{billing: billing, posts: posts}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetBillingPlans lists the subscription offers that have a provider price.
func (s *APIServer) GetBillingPlans(c *fiber.Ctx) error {
	return s.billing.HandleListPlans(c)
}

// PostBillingCheckout opens a checkout session for the authenticated caller.
func (s *APIServer) PostBillingCheckout(c *fiber.Ctx) error {
	return s.billing.HandleCreateCheckout(c)
}

// GetBillingEntitlement returns the authenticated caller's entitlement.
func (s *APIServer) GetBillingEntitlement(c *fiber.Ctx) error {
	return s.billing.HandleGetEntitlement(c)
}

func (s *APIServer) GetPosts(c *fiber.Ctx) error {
	return s.posts.HandleListPosts(c)
}

// GetPost reads slug from route params; the wrapper already validated it.
func (s *APIServer) GetPost(c *fiber.Ctx, slug string) error {
	return s.posts.HandleGetPost(c)
}

// PostPosts creates a post authored by the caller.
func (s *APIServer) PostPosts(c *fiber.Ctx) error {
	return s.posts.HandleCreatePost(c)
}

func (s *APIServer) PatchPost(c *fiber.Ctx, slug string) error {
	return s.posts.HandleUpdatePost(c)
}

func (s *APIServer) DeletePost(c *fiber.Ctx, slug string) error {
	return s.posts.HandleDeletePost(c)
}
