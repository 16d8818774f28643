package models

import (
	"time"

	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
)

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

// Entitlement mirrors the payment provider's view of a user's subscription.
// There is exactly one row per user; rows are never deleted.
type Entitlement struct {
	ID                     uint       `gorm:"primaryKey" json:"-"`
	UserID                 string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_entitlements_user" json:"user_id"`
	Provider               string     `gorm:"type:varchar(20);not null;default:'stripe'" json:"provider"`
	ProviderCustomerID     string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_customer_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_subscription_id"`
	PlanID                 string     `gorm:"type:varchar(191);not null;default:''" json:"plan_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'';index" json:"status"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end"`
	IsPremium              bool       `gorm:"not null;default:false;index" json:"is_premium"`
	LastEventID            string     `gorm:"type:varchar(191);not null;default:''" json:"last_event_id"`
	LastEventAt            *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Refresh recomputes the derived premium flag. Call it before every write.
func (e *Entitlement) Refresh() {
	e.IsPremium = entitlements.IsPremium(entitlements.Status(e.Status))
}

// IsStaleFor reports whether an event created at eventAt is older than the
// newest event already applied to this record.
func (e *Entitlement) IsStaleFor(eventAt time.Time) bool {
	if e.LastEventAt == nil || eventAt.IsZero() {
		return false
	}
	return eventAt.Before(*e.LastEventAt)
}
