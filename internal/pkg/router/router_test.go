package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BlogHub/app/controllers"
	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/app/repository"
	"github.com/ManuelReschke/BlogHub/internal/pkg/billing"
	"github.com/ManuelReschke/BlogHub/internal/pkg/middleware"
)

const (
	routerJWTSecret = "router-test-secret-router-test-secret"
	routerUserID    = "0b6f1c7a-2d4e-4f8a-9b3c-5e7d9f1a2b4c"
)

type stubWebhooks struct{ obs billing.Observer }

func (s stubWebhooks) HandleEvent(ctx context.Context, payload []byte, header string) (billing.Ack, error) {
	if header == "" {
		s.obs.ObserveWebhook("", string(billing.RejectInvalidSignature))
		return billing.Ack{}, billing.ErrInvalidSignature
	}
	s.obs.ObserveWebhook(billing.EventSubscriptionUpdated, string(billing.OutcomeApplied))
	return billing.Ack{EventID: "evt_1", EventType: billing.EventSubscriptionUpdated, Outcome: billing.OutcomeApplied}, nil
}

type stubEntitlements struct{}

func (stubEntitlements) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	if userID == routerUserID {
		return &models.Entitlement{UserID: userID, Status: "trialing", IsPremium: true}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubPosts struct{ repository.PostRepository }

func (stubPosts) ListPublished(q repository.PostQuery) ([]models.Post, error) { return nil, nil }
func (stubPosts) CountPublished(q repository.PostQuery) (int64, error)        { return 0, nil }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	reg := prometheus.NewRegistry()
	obs, err := billing.NewPrometheusObserver(reg)
	require.NoError(t, err)

	app := fiber.New()
	InstallRouter(app, &Services{
		Webhooks:     stubWebhooks{obs: obs},
		Checkout:     nil,
		Entitlements: stubEntitlements{},
		Posts:        stubPosts{},
		Plans:        billing.NewPlanCatalog(),
		Verifier:     middleware.NewTokenVerifier(routerJWTSecret, "authenticated"),
		Gatherer:     reg,
		Health: map[string]controllers.Pinger{
			"database": func(context.Context) error { return nil },
		},
	})
	return app
}

func bearer(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Email: "reader@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   routerUserID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(routerJWTSecret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestEntitlementRouteRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/billing/entitlement", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/entitlement", nil)
	req.Header.Set("Authorization", bearer(t))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"is_premium":true`)
}

func TestPublicRoutes(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ping":"pong"}`, readBody(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookRouteFeedsMetrics(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set(billing.SignatureHeader, "t=1,v1=00")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, `bloghub_webhook_events_total{outcome="applied",type="customer.subscription.updated"} 1`)
	assert.Contains(t, body, `bloghub_webhook_events_total{outcome="invalid_signature",type="unknown"} 1`)
}

func TestHealthReportsFailingDependency(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", controllers.HandleHealth(map[string]controllers.Pinger{
		"database": func(context.Context) error { return errors.New("connection refused") },
	}))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "connection refused")
}
