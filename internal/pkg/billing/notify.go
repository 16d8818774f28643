package billing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
)

// Notifier receives side effects that are not part of the entitlement state.
type Notifier interface {
	CheckoutCompleted(ctx context.Context, e CheckoutCompleted) error
}

// Deduper guards non-idempotent side effects by provider event id.
type Deduper interface {
	Claim(ctx context.Context, kind, eventID string) (bool, error)
	Release(ctx context.Context, kind, eventID string) error
}

// MailFunc matches mail.SendMail.
type MailFunc func(to, subject, body string) error

// MailNotifier sends a welcome mail after a completed checkout.
type MailNotifier struct {
	send     MailFunc
	siteName string
	baseURL  string
}

func NewMailNotifier(send MailFunc) *MailNotifier {
	return &MailNotifier{
		send:     send,
		siteName: env.GetEnv("APP_NAME", "BlogHub"),
		baseURL:  env.GetEnv("PUBLIC_DOMAIN", ""),
	}
}

func (n *MailNotifier) CheckoutCompleted(ctx context.Context, e CheckoutCompleted) error {
	if e.Email == "" {
		return errors.New("checkout session has no customer email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("Welcome to %s Premium", n.siteName)
	body := fmt.Sprintf(
		"<p>Thanks for subscribing to %s Premium!</p><p>Your access is activated as soon as the payment is confirmed.</p><p><a href=\"%s/premium\">Browse premium posts</a></p>",
		html.EscapeString(n.siteName), html.EscapeString(n.baseURL),
	)
	return n.send(e.Email, subject, body)
}

// DefaultDedupTTL outlives the provider's redelivery window (three days).
const DefaultDedupTTL = 30 * 24 * time.Hour

// RedisDeduper claims "billing:side_effect:<kind>:<event id>" with SETNX.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func dedupKey(kind, eventID string) string {
	return "billing:side_effect:" + kind + ":" + eventID
}

func (d *RedisDeduper) Claim(ctx context.Context, kind, eventID string) (bool, error) {
	return d.client.SetNX(ctx, dedupKey(kind, eventID), time.Now().Unix(), d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, kind, eventID string) error {
	return d.client.Del(ctx, dedupKey(kind, eventID)).Err()
}
