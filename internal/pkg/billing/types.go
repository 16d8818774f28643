package billing

import (
	"errors"
	"time"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
)

// Rejections surfaced to the webhook transport. Everything except
// ErrStorageUnavailable is permanent for the payload it was returned for.
var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMalformedEvent       = errors.New("malformed webhook event")
	ErrMissingUserReference = errors.New("event metadata carries no user reference")
	ErrStorageUnavailable   = errors.New("billing storage unavailable")
)

// Provisioning errors.
var (
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrPlanNotConfigured  = errors.New("plan has no provider price configured")
	ErrAlreadySubscribed  = errors.New("user already has an active subscription")
	ErrProviderRequest    = errors.New("payment provider request failed")
	ErrMissingUserOrEmail = errors.New("user id and email are required")
	ErrCustomerTaken      = errors.New("provider customer is bound to another user")
)

// RejectReason is the stable, machine readable name of a rejection.
type RejectReason string

const (
	RejectNone                 RejectReason = ""
	RejectInvalidSignature     RejectReason = "invalid_signature"
	RejectInvalidPayload       RejectReason = "invalid_payload"
	RejectMissingUserReference RejectReason = "missing_user_reference"
	RejectStorageUnavailable   RejectReason = "storage_unavailable"
)

// ReasonOf maps an error returned by Reconciler.HandleEvent to its reason.
func ReasonOf(err error) RejectReason {
	switch {
	case err == nil:
		return RejectNone
	case errors.Is(err, ErrInvalidSignature):
		return RejectInvalidSignature
	case errors.Is(err, ErrMalformedEvent):
		return RejectInvalidPayload
	case errors.Is(err, ErrMissingUserReference):
		return RejectMissingUserReference
	default:
		return RejectStorageUnavailable
	}
}

// Outcome describes what a successfully acknowledged delivery did.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeStale      Outcome = "stale"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeNoop       Outcome = "noop"
)

// Ack is returned for every delivery the provider should not redeliver.
type Ack struct {
	EventID     string              `json:"event_id"`
	EventType   string              `json:"event_type"`
	UserID      string              `json:"user_id,omitempty"`
	Outcome     Outcome             `json:"outcome"`
	Entitlement *models.Entitlement `json:"-"`
}

// SubscriptionWrite is a total replacement of the subscription fields of a
// user's entitlement, stamped with the event that produced it.
type SubscriptionWrite struct {
	UserID                 string
	ProviderCustomerID     string
	ProviderSubscriptionID string
	PlanID                 string
	Status                 entitlements.Status
	CurrentPeriodEnd       *time.Time
	EventID                string
	EventAt                time.Time

	// Deleted marks the provider's deletion of ProviderSubscriptionID.
	Deleted bool
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	UserID          string
	PayloadJSON     string
}
