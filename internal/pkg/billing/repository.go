package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/BlogHub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the reconciler and provisioner.
type Repository interface {
	ApplySubscription(ctx context.Context, w SubscriptionWrite) (*models.Entitlement, ApplyResult, error)
	GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error)
	EnsureEntitlement(ctx context.Context, userID string) (*models.Entitlement, error)
	AssignCustomerID(ctx context.Context, userID, customerID string) (*models.Entitlement, error)
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, userID, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// ApplySubscription replaces the subscription fields of the user's row in a
// single transaction. The row is locked so concurrent deliveries for the
// same user serialize; whichever commits last wins.
func (r *gormRepository) ApplySubscription(ctx context.Context, w SubscriptionWrite) (*models.Entitlement, ApplyResult, error) {
	if strings.TrimSpace(w.UserID) == "" {
		return nil, ApplyResult{}, ErrMissingUserReference
	}

	var (
		stored models.Entitlement
		res    ApplyResult
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockEntitlement(tx, w.UserID)
		if err != nil {
			return err
		}
		owner, err := customerOwner(tx, w.ProviderCustomerID, w.UserID)
		if err != nil {
			return err
		}
		write, taken := claimCustomer(*current, w, owner)
		next, result := mergeSubscription(*current, write)
		result.CustomerConflict = result.CustomerConflict || taken
		res = result
		if result.Outcome != OutcomeApplied {
			stored = *current
			return nil
		}
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		stored = next
		return nil
	})
	if err != nil {
		return nil, ApplyResult{}, err
	}
	return &stored, res, nil
}

// lockEntitlement makes sure the row exists and reads it FOR UPDATE.
func lockEntitlement(tx *gorm.DB, userID string) (*models.Entitlement, error) {
	seed := models.Entitlement{UserID: userID, Provider: models.BillingProviderStripe}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	var current models.Entitlement
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&current).Error; err != nil {
		return nil, err
	}
	return &current, nil
}

// customerOwner returns the user other than userID bound to customerID, or "".
func customerOwner(tx *gorm.DB, customerID, userID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", nil
	}
	var owner models.Entitlement
	err := tx.Select("user_id").
		Where("provider_customer_id = ? AND user_id <> ?", customerID, userID).
		Take(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return owner.UserID, nil
}

func (r *gormRepository) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	var e models.Entitlement
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *gormRepository) EnsureEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	db := r.db.WithContext(ctx)
	seed := models.Entitlement{UserID: userID, Provider: models.BillingProviderStripe}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	return r.GetEntitlement(ctx, userID)
}

// AssignCustomerID binds customerID to the user only if no customer is bound
// yet. The returned record carries whichever customer id won.
func (r *gormRepository) AssignCustomerID(ctx context.Context, userID, customerID string) (*models.Entitlement, error) {
	customerID = strings.TrimSpace(customerID)
	if userID == "" || customerID == "" {
		return nil, errors.New("user_id and provider_customer_id are required")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := customerOwner(tx, customerID, userID)
		if err != nil {
			return err
		}
		if owner != "" {
			return fmt.Errorf("%w: %s", ErrCustomerTaken, customerID)
		}
		return tx.Model(&models.Entitlement{}).
			Where("user_id = ? AND provider_customer_id = ''", userID).
			Update("provider_customer_id", customerID).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetEntitlement(ctx, userID)
}

// CreateWebhookEventIfNotExists inserts the delivery or, for a redelivery,
// bumps the attempt counter and returns the stored row.
func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	if !created {
		if err := db.Model(&models.BillingWebhookEvent{}).
			Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
			UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
			return false, nil, err
		}
	}

	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, userID, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	if userID != "" {
		updates["user_id"] = userID
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
