package billing

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer records webhook outcomes.
type Observer interface {
	ObserveWebhook(eventType, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveWebhook(string, string) {}

// PrometheusObserver exports bloghub_webhook_events_total{type,outcome}.
type PrometheusObserver struct {
	events *prometheus.CounterVec
}

func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bloghub",
		Name:      "webhook_events_total",
		Help:      "Payment provider webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	if err := reg.Register(events); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			events = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, fmt.Errorf("register webhook metric: %w", err)
		}
	}
	return &PrometheusObserver{events: events}, nil
}

func (o *PrometheusObserver) ObserveWebhook(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	// Unhandled types are collapsed to keep label cardinality bounded.
	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted, EventCheckoutCompleted, "unknown":
	default:
		eventType = "other"
	}
	o.events.WithLabelValues(eventType, outcome).Inc()
}
