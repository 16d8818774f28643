package billing

import (
	"strings"

	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
)

const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// Plan is a priced subscription offer. PriceID is the provider's price reference.
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PriceID  string `json:"-"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

// PlanCatalog maps internal plan ids to provider prices and back.
type PlanCatalog struct {
	plans   []Plan
	byID    map[string]Plan
	byPrice map[string]Plan
}

func NewPlanCatalog(plans ...Plan) *PlanCatalog {
	c := &PlanCatalog{
		byID:    make(map[string]Plan, len(plans)),
		byPrice: make(map[string]Plan, len(plans)),
	}
	for _, p := range plans {
		p.ID = normalizePlanID(p.ID)
		p.PriceID = strings.TrimSpace(p.PriceID)
		if p.ID == "" {
			continue
		}
		c.plans = append(c.plans, p)
		c.byID[p.ID] = p
		if p.PriceID != "" {
			c.byPrice[p.PriceID] = p
		}
	}
	return c
}

// PlanCatalogFromEnv builds the monthly/yearly offers from STRIPE_*_PRICE_ID.
func PlanCatalogFromEnv() *PlanCatalog {
	return NewPlanCatalog(
		Plan{
			ID:       PlanMonthly,
			Name:     "Monthly",
			PriceID:  env.GetEnv("STRIPE_MONTHLY_PRICE_ID", ""),
			Amount:   int64(env.GetEnvInt("STRIPE_MONTHLY_AMOUNT", 900)),
			Currency: "usd",
			Interval: "month",
		},
		Plan{
			ID:       PlanYearly,
			Name:     "Yearly",
			PriceID:  env.GetEnv("STRIPE_YEARLY_PRICE_ID", ""),
			Amount:   int64(env.GetEnvInt("STRIPE_YEARLY_AMOUNT", 8900)),
			Currency: "usd",
			Interval: "year",
		},
	)
}

func (c *PlanCatalog) Plans() []Plan {
	if c == nil {
		return nil
	}
	return append([]Plan(nil), c.plans...)
}

func (c *PlanCatalog) Lookup(planID string) (Plan, bool) {
	if c == nil {
		return Plan{}, false
	}
	p, ok := c.byID[normalizePlanID(planID)]
	return p, ok
}

func (c *PlanCatalog) PlanForPrice(priceID string) (Plan, bool) {
	if c == nil {
		return Plan{}, false
	}
	p, ok := c.byPrice[strings.TrimSpace(priceID)]
	return p, ok
}

// ResolvePlanID prefers the catalog entry for the subscribed price, since
// plan changes made at the provider do not update checkout metadata.
func (c *PlanCatalog) ResolvePlanID(priceID, metadataPlanID string) string {
	if p, ok := c.PlanForPrice(priceID); ok {
		return p.ID
	}
	if id := normalizePlanID(metadataPlanID); id != "" {
		return id
	}
	return strings.TrimSpace(priceID)
}

func normalizePlanID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
