package billing

import (
	"time"

	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
)

// EventSource yields only events whose origin has been proven. Tests
// substitute a fake that returns pre-verified events.
type EventSource interface {
	Verify(payload []byte, signatureHeader string) (Envelope, Event, error)
}

type StripeEventSource struct {
	verifier SignatureVerifier
	decoder  Decoder
}

func NewStripeEventSource(secret string, tolerance time.Duration, plans *PlanCatalog) *StripeEventSource {
	return &StripeEventSource{
		verifier: SignatureVerifier{Secret: secret, Tolerance: tolerance},
		decoder:  Decoder{Plans: plans},
	}
}

// NewStripeEventSourceFromEnv reads STRIPE_WEBHOOK_SECRET and STRIPE_WEBHOOK_TOLERANCE.
func NewStripeEventSourceFromEnv(plans *PlanCatalog) *StripeEventSource {
	return NewStripeEventSource(
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		env.GetEnvDuration("STRIPE_WEBHOOK_TOLERANCE", DefaultSignatureTolerance),
		plans,
	)
}

// Verify authenticates payload before decoding it; nothing is parsed from
// an unauthenticated body.
func (s *StripeEventSource) Verify(payload []byte, signatureHeader string) (Envelope, Event, error) {
	if err := s.verifier.Verify(payload, signatureHeader); err != nil {
		return Envelope{}, nil, err
	}
	return s.decoder.Decode(payload)
}
