package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
)

// Provider event types with an effect on entitlements.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventCheckoutCompleted   = "checkout.session.completed"
)

// Metadata keys that carry the local user id. The legacy key is what the
// first version of the checkout flow attached.
const (
	MetadataUserID       = "user_id"
	MetadataLegacyUserID = "supabase_user_id"
	MetadataPlanID       = "plan_id"
)

// Envelope holds the fields shared by every provider event.
type Envelope struct {
	ID       string
	Type     string
	Created  time.Time
	Livemode bool
}

// Event is a closed set: SubscriptionChanged, SubscriptionDeleted,
// CheckoutCompleted and Unrecognized.
type Event interface {
	EventType() string
	isEvent()
}

// Subscription is the decoded subset of a provider subscription object.
type Subscription struct {
	ID               string
	CustomerID       string
	Status           entitlements.Status
	PriceID          string
	PlanID           string
	UserID           string
	CurrentPeriodEnd *time.Time
}

// SubscriptionChanged covers both created and updated deliveries; they share
// one code path.
type SubscriptionChanged struct {
	Type         string
	Subscription Subscription
}

type SubscriptionDeleted struct {
	Subscription Subscription
}

type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
	UserID         string
	Email          string
	Mode           string
}

// Unrecognized is acknowledged without effect.
type Unrecognized struct {
	Type string
}

func (e SubscriptionChanged) EventType() string { return e.Type }
func (SubscriptionDeleted) EventType() string   { return EventSubscriptionDeleted }
func (CheckoutCompleted) EventType() string     { return EventCheckoutCompleted }
func (e Unrecognized) EventType() string        { return e.Type }

func (SubscriptionChanged) isEvent() {}
func (SubscriptionDeleted) isEvent() {}
func (CheckoutCompleted) isEvent()   {}
func (Unrecognized) isEvent()        {}

// UserReference returns the user id an event refers to, if any.
func UserReference(ev Event) string {
	switch e := ev.(type) {
	case SubscriptionChanged:
		return e.Subscription.UserID
	case SubscriptionDeleted:
		return e.Subscription.UserID
	case CheckoutCompleted:
		return e.UserID
	default:
		return ""
	}
}

// IsMutating reports whether ev writes the entitlement record.
func IsMutating(ev Event) bool {
	switch ev.(type) {
	case SubscriptionChanged, SubscriptionDeleted:
		return true
	default:
		return false
	}
}

// Decoder turns a verified payload into a typed event.
type Decoder struct {
	Plans *PlanCatalog
}

type wireEnvelope struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// expandableID accepts either "cus_123" or an expanded {"id":"cus_123",...}.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*e = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type wireSubscription struct {
	ID               string            `json:"id"`
	Customer         expandableID      `json:"customer"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type wireCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          expandableID      `json:"customer"`
	Subscription      expandableID      `json:"subscription"`
	Mode              string            `json:"mode"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	CustomerEmail     string            `json:"customer_email"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// Decode parses payload once. Unknown types decode to Unrecognized.
func (d Decoder) Decode(payload []byte) (Envelope, Event, error) {
	var w wireEnvelope
	if err := json.Unmarshal(payload, &w); err != nil {
		return Envelope{}, nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	env := Envelope{
		ID:       strings.TrimSpace(w.ID),
		Type:     strings.TrimSpace(w.Type),
		Livemode: w.Livemode,
	}
	if w.Created > 0 {
		env.Created = time.Unix(w.Created, 0).UTC()
	}
	if env.ID == "" || env.Type == "" {
		return env, nil, fmt.Errorf("%w: event id and type are required", ErrMalformedEvent)
	}

	switch env.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		sub, err := d.decodeSubscription(w.Data.Object)
		if err != nil {
			return env, nil, err
		}
		return env, SubscriptionChanged{Type: env.Type, Subscription: sub}, nil
	case EventSubscriptionDeleted:
		sub, err := d.decodeSubscription(w.Data.Object)
		if err != nil {
			return env, nil, err
		}
		return env, SubscriptionDeleted{Subscription: sub}, nil
	case EventCheckoutCompleted:
		cs, err := decodeCheckoutSession(w.Data.Object)
		if err != nil {
			return env, nil, err
		}
		return env, cs, nil
	default:
		return env, Unrecognized{Type: env.Type}, nil
	}
}

func (d Decoder) decodeSubscription(raw json.RawMessage) (Subscription, error) {
	if len(raw) == 0 {
		return Subscription{}, fmt.Errorf("%w: missing data.object", ErrMalformedEvent)
	}
	var ws wireSubscription
	if err := json.Unmarshal(raw, &ws); err != nil {
		return Subscription{}, fmt.Errorf("%w: subscription: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(ws.ID) == "" {
		return Subscription{}, fmt.Errorf("%w: subscription id is required", ErrMalformedEvent)
	}

	periodEnd := ws.CurrentPeriodEnd
	priceID := ""
	if len(ws.Items.Data) > 0 {
		item := ws.Items.Data[0]
		priceID = item.Price.ID
		// Newer API versions moved the billing period onto the item.
		if periodEnd == 0 {
			periodEnd = item.CurrentPeriodEnd
		}
	}

	sub := Subscription{
		ID:         strings.TrimSpace(ws.ID),
		CustomerID: strings.TrimSpace(string(ws.Customer)),
		Status:     entitlements.NormalizeStatus(ws.Status),
		PriceID:    strings.TrimSpace(priceID),
		UserID:     userIDFromMetadata(ws.Metadata),
		PlanID:     d.Plans.ResolvePlanID(priceID, ws.Metadata[MetadataPlanID]),
	}
	if periodEnd > 0 {
		t := time.Unix(periodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &t
	}
	return sub, nil
}

func decodeCheckoutSession(raw json.RawMessage) (CheckoutCompleted, error) {
	if len(raw) == 0 {
		return CheckoutCompleted{}, fmt.Errorf("%w: missing data.object", ErrMalformedEvent)
	}
	var ws wireCheckoutSession
	if err := json.Unmarshal(raw, &ws); err != nil {
		return CheckoutCompleted{}, fmt.Errorf("%w: checkout session: %v", ErrMalformedEvent, err)
	}
	userID := userIDFromMetadata(ws.Metadata)
	if userID == "" {
		userID = strings.TrimSpace(ws.ClientReferenceID)
	}
	email := strings.TrimSpace(ws.CustomerDetails.Email)
	if email == "" {
		email = strings.TrimSpace(ws.CustomerEmail)
	}
	return CheckoutCompleted{
		SessionID:      strings.TrimSpace(ws.ID),
		CustomerID:     strings.TrimSpace(string(ws.Customer)),
		SubscriptionID: strings.TrimSpace(string(ws.Subscription)),
		UserID:         userID,
		Email:          email,
		Mode:           ws.Mode,
	}, nil
}

func userIDFromMetadata(md map[string]string) string {
	if v := strings.TrimSpace(md[MetadataUserID]); v != "" {
		return v
	}
	return strings.TrimSpace(md[MetadataLegacyUserID])
}
