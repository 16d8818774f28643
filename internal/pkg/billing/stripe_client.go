package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
)

const defaultStripeAPIBaseURL = stripe.APIURL

type CustomerParams struct {
	UserID string
	Email  string
}

type CheckoutParams struct {
	UserID     string
	CustomerID string
	Plan       Plan
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// CheckoutProvider is the outbound half of provisioning.
type CheckoutProvider interface {
	CreateCustomer(ctx context.Context, p CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
}

// StripeClient implements CheckoutProvider with stripe-go.
type StripeClient struct {
	api       *client.API
	secretKey string
}

// NewStripeClient builds a client against baseURL ("" for the live API) with
// network retries disabled.
func NewStripeClient(secretKey, baseURL string, httpClient *http.Client) *StripeClient {
	secretKey = strings.TrimSpace(secretKey)
	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelWarn},
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &StripeClient{
		api:       client.New(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		secretKey: secretKey,
	}
}

func NewStripeClientFromEnv() *StripeClient {
	return NewStripeClient(
		env.GetEnv("STRIPE_SECRET_KEY", ""),
		env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL),
		&http.Client{Timeout: 15 * time.Second},
	)
}

// CreateCustomer creates a provider customer tagged with the local user id.
// The idempotency key makes concurrent first checkouts converge on one customer.
func (c *StripeClient) CreateCustomer(ctx context.Context, p CustomerParams) (string, error) {
	if c.secretKey == "" {
		return "", errors.New("STRIPE_SECRET_KEY is not configured")
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(p.Email),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, p.UserID)
	params.SetIdempotencyKey("customer-" + p.UserID)

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", providerError("create customer", err)
	}
	if strings.TrimSpace(cus.ID) == "" {
		return "", fmt.Errorf("%w: customer response missing id", ErrProviderRequest)
	}
	return cus.ID, nil
}

// CreateCheckoutSession starts a subscription checkout. The subscription
// metadata carries user_id so webhook events can be mapped without a lookup.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if c.secretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.Plan.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataUserID: p.UserID,
				MetadataPlanID: p.Plan.ID,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, p.UserID)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, providerError("create checkout session", err)
	}
	if strings.TrimSpace(sess.ID) == "" || strings.TrimSpace(sess.URL) == "" {
		return nil, fmt.Errorf("%w: checkout session response incomplete", ErrProviderRequest)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func providerError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %s: status=%d %s: %s", ErrProviderRequest, op, se.HTTPStatusCode, se.Type, se.Msg)
	}
	return fmt.Errorf("%w: %s: %v", ErrProviderRequest, op, err)
}
