package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/BlogHub/internal/pkg/billing"
)

// MailOutbox defers checkout notifications to the queue so a slow or failing
// mail server never holds up a webhook delivery.
type MailOutbox struct {
	queue *Queue
}

var _ billing.Notifier = (*MailOutbox)(nil)

// NewMailOutbox registers the welcome mail handler on q and returns a
// notifier that enqueues into it.
func NewMailOutbox(q *Queue, deliver billing.Notifier) *MailOutbox {
	q.Register(JobTypeWelcomeMail, welcomeMailHandler(deliver))
	return &MailOutbox{queue: q}
}

func (o *MailOutbox) CheckoutCompleted(ctx context.Context, e billing.CheckoutCompleted) error {
	if e.Email == "" {
		return errors.New("checkout session has no customer email")
	}
	payload := WelcomeMailJobPayload{
		SessionID:      e.SessionID,
		CustomerID:     e.CustomerID,
		SubscriptionID: e.SubscriptionID,
		UserID:         e.UserID,
		Email:          e.Email,
	}
	_, err := o.queue.EnqueueJob(ctx, JobTypeWelcomeMail, payload.ToMap())
	return err
}

func welcomeMailHandler(deliver billing.Notifier) Handler {
	return func(ctx context.Context, job *Job) error {
		p, err := WelcomeMailJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("decode welcome mail payload: %w", err)
		}
		return deliver.CheckoutCompleted(ctx, billing.CheckoutCompleted{
			SessionID:      p.SessionID,
			CustomerID:     p.CustomerID,
			SubscriptionID: p.SubscriptionID,
			UserID:         p.UserID,
			Email:          p.Email,
			Mode:           "subscription",
		})
	}
}
