package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/billing"
	"github.com/ManuelReschke/BlogHub/internal/pkg/usercontext"
)

const webhookTimeout = 15 * time.Second

// WebhookHandler consumes one signed provider delivery.
type WebhookHandler interface {
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (billing.Ack, error)
}

// CheckoutStarter opens provider checkout sessions.
type CheckoutStarter interface {
	StartCheckout(ctx context.Context, userID, email, planID string) (*billing.CheckoutSession, error)
}

// BillingController handles the provider webhook and the caller's billing endpoints
type BillingController struct {
	webhooks     WebhookHandler
	checkout     CheckoutStarter
	entitlements EntitlementReader
	plans        *billing.PlanCatalog
	validate     *validator.Validate
}

func NewBillingController(webhooks WebhookHandler, checkout CheckoutStarter, reader EntitlementReader, plans *billing.PlanCatalog) *BillingController {
	return &BillingController{
		webhooks:     webhooks,
		checkout:     checkout,
		entitlements: reader,
		plans:        plans,
		validate:     validator.New(),
	}
}

type webhookResponse struct {
	Received  bool            `json:"received"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Outcome   billing.Outcome `json:"outcome"`
}

// HandleStripeWebhook verifies and applies one delivery. A 2xx tells the
// provider to stop redelivering; 4xx are permanent rejections and 5xx ask
// for a retry.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer once the handler returns.
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(billing.SignatureHeader)

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	ack, err := bc.webhooks.HandleEvent(ctx, rawBody, signature)
	if err != nil {
		reason := billing.ReasonOf(err)
		status := webhookStatus(reason)
		if status >= fiber.StatusInternalServerError {
			log.Errorf("[Webhook] delivery failed: %v", err)
		} else {
			log.Warnf("[Webhook] delivery from %s rejected (%s): %v", GetClientIP(c), reason, err)
		}
		return jsonError(c, status, string(reason), "")
	}

	return c.Status(fiber.StatusOK).JSON(webhookResponse{
		Received:  true,
		EventID:   ack.EventID,
		EventType: ack.EventType,
		Outcome:   ack.Outcome,
	})
}

func webhookStatus(reason billing.RejectReason) int {
	switch reason {
	case billing.RejectInvalidSignature:
		return fiber.StatusUnauthorized
	case billing.RejectInvalidPayload:
		return fiber.StatusBadRequest
	case billing.RejectMissingUserReference:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusServiceUnavailable
	}
}

type checkoutRequest struct {
	PlanID string `json:"plan_id" validate:"required,oneof=monthly yearly"`
}

// HandleCreateCheckout starts a subscription checkout for the caller.
func (bc *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if err := bc.validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", "plan_id must be monthly or yearly")
	}

	session, err := bc.checkout.StartCheckout(c.UserContext(), userCtx.UserID, userCtx.Email, req.PlanID)
	if err != nil {
		return checkoutError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(session)
}

func checkoutError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrMissingUserOrEmail):
		return jsonError(c, fiber.StatusBadRequest, "missing_email", "an email address is required to subscribe")
	case errors.Is(err, billing.ErrUnknownPlan):
		return jsonError(c, fiber.StatusBadRequest, "unknown_plan", "")
	case errors.Is(err, billing.ErrAlreadySubscribed):
		return jsonError(c, fiber.StatusConflict, "already_subscribed", "")
	case errors.Is(err, billing.ErrCustomerTaken):
		return jsonError(c, fiber.StatusConflict, "customer_conflict", "")
	case errors.Is(err, billing.ErrPlanNotConfigured):
		log.Errorf("[Billing] checkout unavailable: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "plan_not_configured", "")
	case errors.Is(err, billing.ErrStorageUnavailable):
		log.Errorf("[Billing] checkout failed: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
	default:
		log.Errorf("[Billing] checkout failed: %v", err)
		return jsonError(c, fiber.StatusBadGateway, "provider_error", "payment provider request failed")
	}
}

type entitlementResponse struct {
	UserID           string     `json:"user_id"`
	PlanID           string     `json:"plan_id"`
	Status           string     `json:"status"`
	IsPremium        bool       `json:"is_premium"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

func newEntitlementResponse(e *models.Entitlement) entitlementResponse {
	resp := entitlementResponse{
		UserID:           e.UserID,
		PlanID:           e.PlanID,
		Status:           e.Status,
		IsPremium:        e.IsPremium,
		CurrentPeriodEnd: e.CurrentPeriodEnd,
	}
	if !e.UpdatedAt.IsZero() {
		updated := e.UpdatedAt.UTC()
		resp.UpdatedAt = &updated
	}
	return resp
}

// HandleGetEntitlement returns the caller's entitlement.
func (bc *BillingController) HandleGetEntitlement(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	ent, err := loadEntitlement(c.UserContext(), bc.entitlements, userCtx.UserID)
	if err != nil {
		log.Errorf("[Billing] entitlement lookup for %s failed: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
	}
	return c.JSON(newEntitlementResponse(ent))
}

// HandleListPlans returns the configured subscription offers.
func (bc *BillingController) HandleListPlans(c *fiber.Ctx) error {
	plans := make([]billing.Plan, 0, 2)
	for _, p := range bc.plans.Plans() {
		if p.PriceID != "" {
			plans = append(plans, p)
		}
	}
	return c.JSON(fiber.Map{"plans": plans})
}
