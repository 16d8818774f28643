package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
)

// Provisioner prepares a user for checkout: it binds a provider customer to
// the user once and opens checkout sessions that carry the user reference
// the reconciler relies on.
type Provisioner struct {
	repo       Repository
	provider   CheckoutProvider
	plans      *PlanCatalog
	successURL string
	cancelURL  string
}

func NewProvisioner(repo Repository, provider CheckoutProvider, plans *PlanCatalog, successURL, cancelURL string) *Provisioner {
	return &Provisioner{
		repo:       repo,
		provider:   provider,
		plans:      plans,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// NewProvisionerFromDB wires the GORM repository and the REST client.
func NewProvisionerFromDB(db *gorm.DB, plans *PlanCatalog) *Provisioner {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	return NewProvisioner(
		NewRepository(db),
		NewStripeClientFromEnv(),
		plans,
		base+"/dashboard?session_id={CHECKOUT_SESSION_ID}",
		base+"/subscribe",
	)
}

// StartCheckout returns a checkout session for planID.
func (p *Provisioner) StartCheckout(ctx context.Context, userID, email, planID string) (*CheckoutSession, error) {
	userID = strings.TrimSpace(userID)
	email = strings.TrimSpace(email)
	if userID == "" || email == "" {
		return nil, ErrMissingUserOrEmail
	}

	plan, ok := p.plans.Lookup(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}
	if plan.PriceID == "" {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotConfigured, plan.ID)
	}

	ent, err := p.repo.EnsureEntitlement(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if ent.IsPremium {
		return nil, ErrAlreadySubscribed
	}

	customerID, err := p.ensureCustomer(ctx, ent, email)
	if err != nil {
		return nil, err
	}

	session, err := p.provider.CreateCheckoutSession(ctx, CheckoutParams{
		UserID:     userID,
		CustomerID: customerID,
		Plan:       plan,
		SuccessURL: p.successURL,
		CancelURL:  p.cancelURL,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Billing] checkout session %s opened for user %s (plan %s)", session.ID, userID, plan.ID)
	return session, nil
}

// ensureCustomer reuses the cached customer id or creates one. The stored id
// never changes once assigned.
func (p *Provisioner) ensureCustomer(ctx context.Context, ent *models.Entitlement, email string) (string, error) {
	if ent.ProviderCustomerID != "" {
		return ent.ProviderCustomerID, nil
	}

	customerID, err := p.provider.CreateCustomer(ctx, CustomerParams{UserID: ent.UserID, Email: email})
	if err != nil {
		return "", err
	}
	updated, err := p.repo.AssignCustomerID(ctx, ent.UserID, customerID)
	if errors.Is(err, ErrCustomerTaken) {
		log.Errorf("[Billing] provider returned customer %s for user %s, but it belongs to another user", customerID, ent.UserID)
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if updated.ProviderCustomerID != customerID {
		log.Warnf("[Billing] user %s already bound to customer %s, discarding %s", ent.UserID, updated.ProviderCustomerID, customerID)
	}
	return updated.ProviderCustomerID, nil
}
