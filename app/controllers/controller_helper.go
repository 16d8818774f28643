package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
	"github.com/ManuelReschke/BlogHub/internal/pkg/usercontext"
)

// EntitlementReader is the read side of the entitlement store.
type EntitlementReader interface {
	GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error)
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	body := fiber.Map{"error": code}
	if message != "" {
		body["message"] = message
	}
	return c.Status(status).JSON(body)
}

// loadEntitlement returns the caller's record or an inactive one when the
// user never started a checkout.
func loadEntitlement(ctx context.Context, reader EntitlementReader, userID string) (*models.Entitlement, error) {
	ent, err := reader.GetEntitlement(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.Entitlement{UserID: userID, Provider: models.BillingProviderStripe}, nil
		}
		return nil, err
	}
	return ent, nil
}

// viewerFor builds the access-check view of the caller. Lookup failures
// degrade to a non-premium reader.
func viewerFor(c *fiber.Ctx, reader EntitlementReader) entitlements.Viewer {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return entitlements.Viewer{}
	}
	viewer := entitlements.Viewer{UserID: userCtx.UserID}
	if reader == nil {
		return viewer
	}
	ent, err := loadEntitlement(c.UserContext(), reader, userCtx.UserID)
	if err != nil {
		log.Warnf("[Posts] entitlement lookup for %s failed: %v", userCtx.UserID, err)
		return viewer
	}
	viewer.IsPremium = ent.IsPremium
	return viewer
}

// GetClientIP returns the originating client address, honoring the usual
// proxy headers.
func GetClientIP(c *fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(c.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return c.IP()
}
