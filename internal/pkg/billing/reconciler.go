package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
)

const sideEffectCheckoutWelcome = "checkout_welcome"

// Reconciler maps verified provider events onto entitlement writes. It keeps
// no state of its own: durability of "eventually applied" comes from the
// provider redelivering whatever was not acknowledged.
type Reconciler struct {
	source   EventSource
	repo     Repository
	notifier Notifier
	deduper  Deduper
	observer Observer
	livemode *bool
}

type ReconcilerOption func(*Reconciler)

// WithCheckoutNotifier enables the checkout side effect. It needs a deduper
// because the side effect is not naturally idempotent.
func WithCheckoutNotifier(n Notifier, d Deduper) ReconcilerOption {
	return func(r *Reconciler) {
		r.notifier = n
		r.deduper = d
	}
}

func WithObserver(o Observer) ReconcilerOption {
	return func(r *Reconciler) {
		r.observer = o
	}
}

// WithExpectedLivemode acknowledges, without effect, events whose livemode
// flag differs from live (test-mode events reaching production and the
// reverse).
func WithExpectedLivemode(live bool) ReconcilerOption {
	return func(r *Reconciler) {
		r.livemode = &live
	}
}

func NewReconciler(source EventSource, repo Repository, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{source: source, repo: repo, observer: nopObserver{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleEvent processes one delivery. payload must be the exact request body.
//
// It returns an Ack for everything the provider should not redeliver and an
// error wrapping ErrInvalidSignature, ErrMalformedEvent,
// ErrMissingUserReference or ErrStorageUnavailable otherwise.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (Ack, error) {
	env, ev, err := r.source.Verify(payload, signatureHeader)
	if err != nil {
		r.observer.ObserveWebhook(env.Type, string(ReasonOf(err)))
		if errors.Is(err, ErrInvalidSignature) {
			log.Warnf("[Webhook] rejected delivery: %v", err)
		} else {
			log.Warnf("[Webhook] undecodable event %q: %v", env.ID, err)
		}
		return Ack{EventID: env.ID, EventType: env.Type}, err
	}

	if r.livemode != nil && env.Livemode != *r.livemode {
		log.Warnf("[Webhook] ignoring event %s: livemode=%t, expected %t", env.ID, env.Livemode, *r.livemode)
		r.observer.ObserveWebhook(env.Type, string(OutcomeIgnored))
		return Ack{EventID: env.ID, EventType: env.Type, Outcome: OutcomeIgnored}, nil
	}

	ack, err := r.process(ctx, env, ev, payload)
	if err != nil {
		r.observer.ObserveWebhook(env.Type, string(ReasonOf(err)))
		return ack, err
	}
	r.observer.ObserveWebhook(env.Type, string(ack.Outcome))
	return ack, nil
}

func (r *Reconciler) process(ctx context.Context, env Envelope, ev Event, payload []byte) (Ack, error) {
	userID := UserReference(ev)
	ack := Ack{EventID: env.ID, EventType: env.Type, UserID: userID}

	if IsMutating(ev) && userID == "" {
		// The checkout flow attaches user_id to subscription metadata; a
		// subscription without it is a contract violation upstream.
		log.Errorf("[Webhook] event %s (%s) has no user reference in metadata", env.ID, env.Type)
		return ack, fmt.Errorf("%w: event %s", ErrMissingUserReference, env.ID)
	}

	created, stored, err := r.repo.CreateWebhookEventIfNotExists(ctx, &models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: env.ID,
		EventType:       env.Type,
		UserID:          userID,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		log.Errorf("[Webhook] failed to record event %s: %v", env.ID, err)
		return ack, fmt.Errorf("%w: record event: %v", ErrStorageUnavailable, err)
	}
	if !created && stored.Succeeded() {
		ack.Outcome = OutcomeDuplicate
		return ack, nil
	}

	ack, applyErr := r.apply(ctx, env, ev, ack)

	errMsg := ""
	if applyErr != nil {
		errMsg = applyErr.Error()
	}
	if err := r.repo.MarkWebhookProcessed(ctx, stored.ID, userID, errMsg); err != nil {
		log.Errorf("[Webhook] failed to mark event %s processed: %v", env.ID, err)
		if applyErr == nil {
			// The write itself landed; a redelivery reapplies it idempotently.
			return ack, fmt.Errorf("%w: mark processed: %v", ErrStorageUnavailable, err)
		}
	}
	if applyErr != nil {
		return ack, applyErr
	}
	return ack, nil
}

func (r *Reconciler) apply(ctx context.Context, env Envelope, ev Event, ack Ack) (Ack, error) {
	switch e := ev.(type) {
	case SubscriptionChanged:
		return r.applySubscription(ctx, env, e.Subscription, e.Subscription.Status, e.Subscription.CurrentPeriodEnd, false, ack)
	case SubscriptionDeleted:
		return r.applySubscription(ctx, env, e.Subscription, entitlements.StatusCanceled, nil, true, ack)
	case CheckoutCompleted:
		// The subscription events that follow are authoritative for access.
		r.notifyCheckout(ctx, env, e)
		ack.Outcome = OutcomeNoop
		return ack, nil
	case Unrecognized:
		log.Debugf("[Webhook] ignoring unhandled event type %s", e.Type)
		ack.Outcome = OutcomeIgnored
		return ack, nil
	default:
		ack.Outcome = OutcomeIgnored
		return ack, nil
	}
}

func (r *Reconciler) applySubscription(ctx context.Context, env Envelope, sub Subscription, status entitlements.Status, periodEnd *time.Time, deleted bool, ack Ack) (Ack, error) {
	if !status.Known() {
		log.Warnf("[Webhook] event %s carries unknown subscription status %q; stored as non-entitling", env.ID, status)
	}
	rec, res, err := r.repo.ApplySubscription(ctx, SubscriptionWrite{
		UserID:                 sub.UserID,
		ProviderCustomerID:     sub.CustomerID,
		ProviderSubscriptionID: sub.ID,
		PlanID:                 sub.PlanID,
		Status:                 status,
		CurrentPeriodEnd:       periodEnd,
		EventID:                env.ID,
		EventAt:                env.Created,
		Deleted:                deleted,
	})
	if err != nil {
		log.Errorf("[Webhook] failed to apply %s for user %s: %v", env.ID, sub.UserID, err)
		return ack, fmt.Errorf("%w: apply subscription: %v", ErrStorageUnavailable, err)
	}
	if res.CustomerConflict {
		log.Warnf("[Billing] event %s names customer %s for user %s, which conflicts with an existing binding; keeping %q",
			env.ID, sub.CustomerID, sub.UserID, rec.ProviderCustomerID)
	}

	ack.Outcome = res.Outcome
	ack.Entitlement = rec
	switch res.Outcome {
	case OutcomeStale:
		log.Infof("[Webhook] skipped stale event %s for user %s (stored event is newer)", env.ID, sub.UserID)
	case OutcomeSuperseded:
		log.Infof("[Webhook] subscription %s no longer current for user %s, event %s not applied", sub.ID, sub.UserID, env.ID)
	default:
		log.Infof("[Webhook] user %s subscription %s -> %s (premium=%t)", sub.UserID, sub.ID, rec.Status, rec.IsPremium)
	}
	return ack, nil
}

func (r *Reconciler) notifyCheckout(ctx context.Context, env Envelope, e CheckoutCompleted) {
	if r.notifier == nil || r.deduper == nil {
		return
	}
	claimed, err := r.deduper.Claim(ctx, sideEffectCheckoutWelcome, env.ID)
	if err != nil {
		log.Warnf("[Webhook] dedup unavailable, skipping checkout notification for %s: %v", env.ID, err)
		return
	}
	if !claimed {
		return
	}
	if err := r.notifier.CheckoutCompleted(ctx, e); err != nil {
		log.Warnf("[Webhook] checkout notification for %s failed: %v", env.ID, err)
		if relErr := r.deduper.Release(ctx, sideEffectCheckoutWelcome, env.ID); relErr != nil {
			log.Warnf("[Webhook] failed to release dedup marker for %s: %v", env.ID, relErr)
		}
	}
}
