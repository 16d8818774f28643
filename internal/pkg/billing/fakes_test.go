package billing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/BlogHub/app/models"
)

const testSecret = "whsec_test_secret"

// memoryRepository applies the same merge policy as the GORM repository.
type memoryRepository struct {
	mu          sync.Mutex
	records     map[string]models.Entitlement
	events      map[string]*models.BillingWebhookEvent
	nextEventID uint
	writes      int
	failApply   error
	failRecord  error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		records: map[string]models.Entitlement{},
		events:  map[string]*models.BillingWebhookEvent{},
	}
}

func (m *memoryRepository) ApplySubscription(ctx context.Context, w SubscriptionWrite) (*models.Entitlement, ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failApply != nil {
		return nil, ApplyResult{}, m.failApply
	}
	current, ok := m.records[w.UserID]
	if !ok {
		current = models.Entitlement{UserID: w.UserID, Provider: models.BillingProviderStripe}
	}
	owner := ""
	for uid, rec := range m.records {
		if w.ProviderCustomerID != "" && rec.ProviderCustomerID == w.ProviderCustomerID && uid != w.UserID {
			owner = uid
		}
	}
	w, taken := claimCustomer(current, w, owner)
	next, res := mergeSubscription(current, w)
	res.CustomerConflict = res.CustomerConflict || taken
	if res.Outcome != OutcomeApplied {
		if !ok {
			m.records[w.UserID] = current
		}
		return &current, res, nil
	}
	m.records[w.UserID] = next
	m.writes++
	return &next, res, nil
}

func (m *memoryRepository) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	if !ok {
		return nil, errors.New("record not found")
	}
	return &e, nil
}

func (m *memoryRepository) EnsureEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	m.mu.Lock()
	e, ok := m.records[userID]
	if !ok {
		e = models.Entitlement{UserID: userID, Provider: models.BillingProviderStripe}
		m.records[userID] = e
	}
	m.mu.Unlock()
	return &e, nil
}

func (m *memoryRepository) AssignCustomerID(ctx context.Context, userID, customerID string) (*models.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, rec := range m.records {
		if uid != userID && rec.ProviderCustomerID == customerID {
			return nil, ErrCustomerTaken
		}
	}
	e := m.records[userID]
	if e.ProviderCustomerID == "" {
		e.ProviderCustomerID = customerID
		m.records[userID] = e
	}
	return &e, nil
}

func (m *memoryRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecord != nil {
		return false, nil, m.failRecord
	}
	if stored, ok := m.events[event.ProviderEventID]; ok {
		stored.Attempts++
		copied := *stored
		return false, &copied, nil
	}
	m.nextEventID++
	stored := *event
	stored.ID = m.nextEventID
	stored.Attempts = 1
	m.events[event.ProviderEventID] = &stored
	copied := stored
	return true, &copied, nil
}

func (m *memoryRepository) MarkWebhookProcessed(ctx context.Context, id uint, userID, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("event not found")
}

func (m *memoryRepository) record(t *testing.T, userID string) (models.Entitlement, bool) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[userID]
	return e, ok
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []CheckoutCompleted
	err   error
}

func (f *fakeNotifier) CheckoutCompleted(ctx context.Context, e CheckoutCompleted) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, e)
	return f.err
}

type memoryDeduper struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{claimed: map[string]bool{}}
}

func (d *memoryDeduper) Claim(ctx context.Context, kind, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := dedupKey(kind, eventID)
	if d.claimed[key] {
		return false, nil
	}
	d.claimed[key] = true
	return true, nil
}

func (d *memoryDeduper) Release(ctx context.Context, kind, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, dedupKey(kind, eventID))
	return nil
}

type eventFixture struct {
	ID      string
	Type    string
	Created int64
	Object  map[string]interface{}
}

func (f eventFixture) payload(t *testing.T) []byte {
	t.Helper()
	created := f.Created
	if created == 0 {
		created = 1700000000
	}
	b, err := json.Marshal(map[string]interface{}{
		"id":       f.ID,
		"object":   "event",
		"type":     f.Type,
		"created":  created,
		"livemode": false,
		"data":     map[string]interface{}{"object": f.Object},
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return b
}

func subscriptionObject(id, customer, status, priceID string, metadata map[string]string, periodEnd int64) map[string]interface{} {
	obj := map[string]interface{}{
		"id":       id,
		"object":   "subscription",
		"customer": customer,
		"status":   status,
		"metadata": metadata,
		"items": map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{"price": map[string]interface{}{"id": priceID}},
			},
		},
	}
	if periodEnd > 0 {
		obj["current_period_end"] = periodEnd
	}
	return obj
}

func signed(t *testing.T, payload []byte) string {
	t.Helper()
	return SignPayload(payload, testSecret, time.Now())
}

func testPlans() *PlanCatalog {
	return NewPlanCatalog(
		Plan{ID: PlanMonthly, Name: "Monthly", PriceID: "price_monthly", Amount: 900, Interval: "month"},
		Plan{ID: PlanYearly, Name: "Yearly", PriceID: "price_yearly", Amount: 8900, Interval: "year"},
	)
}
