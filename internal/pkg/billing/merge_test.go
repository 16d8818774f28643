package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
)

func TestMergeSubscriptionReplacesFields(t *testing.T) {
	end := time.Unix(1702592100, 0).UTC()
	at := time.Unix(1700000000, 0).UTC()

	next, res := mergeSubscription(models.Entitlement{UserID: "u-1"}, SubscriptionWrite{
		UserID:                 "u-1",
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		PlanID:                 "monthly",
		Status:                 entitlements.StatusTrialing,
		CurrentPeriodEnd:       &end,
		EventID:                "evt_1",
		EventAt:                at,
	})

	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.False(t, res.CustomerConflict)
	assert.Equal(t, "cus_1", next.ProviderCustomerID)
	assert.Equal(t, "sub_1", next.ProviderSubscriptionID)
	assert.Equal(t, "monthly", next.PlanID)
	assert.Equal(t, "trialing", next.Status)
	assert.True(t, next.IsPremium)
	assert.Equal(t, &end, next.CurrentPeriodEnd)
	assert.Equal(t, "evt_1", next.LastEventID)
	assert.Equal(t, &at, next.LastEventAt)
}

func TestMergeSubscriptionPremiumFollowsStatus(t *testing.T) {
	statuses := []entitlements.Status{
		entitlements.StatusActive, entitlements.StatusTrialing, entitlements.StatusPastDue,
		entitlements.StatusCanceled, entitlements.StatusIncomplete, entitlements.StatusUnpaid,
		"brand_new_status",
	}
	current := models.Entitlement{UserID: "u-1", IsPremium: false}
	for _, s := range statuses {
		next, _ := mergeSubscription(current, SubscriptionWrite{UserID: "u-1", ProviderSubscriptionID: "sub_1", Status: s})
		assert.Equal(t, entitlements.IsPremium(s), next.IsPremium, "status %q", s)
		current = next
	}
}

func TestMergeSubscriptionStaleGuard(t *testing.T) {
	newer := time.Unix(1700000200, 0).UTC()
	current := models.Entitlement{UserID: "u-1", Status: "canceled", ProviderSubscriptionID: "sub_1", LastEventAt: &newer}

	out, res := mergeSubscription(current, SubscriptionWrite{
		UserID: "u-1", ProviderSubscriptionID: "sub_1", Status: entitlements.StatusActive,
		EventAt: newer.Add(-time.Minute),
	})
	assert.Equal(t, OutcomeStale, res.Outcome)
	assert.Equal(t, current, out)

	// Same second is applied so replays stay idempotent.
	_, res = mergeSubscription(current, SubscriptionWrite{
		UserID: "u-1", ProviderSubscriptionID: "sub_1", Status: entitlements.StatusCanceled, EventAt: newer,
	})
	assert.Equal(t, OutcomeApplied, res.Outcome)
}

func TestMergeSubscriptionKeepsBoundCustomer(t *testing.T) {
	current := models.Entitlement{UserID: "u-1", ProviderCustomerID: "cus_original"}

	next, res := mergeSubscription(current, SubscriptionWrite{
		UserID: "u-1", ProviderCustomerID: "cus_other", ProviderSubscriptionID: "sub_1", Status: entitlements.StatusActive,
	})
	assert.True(t, res.CustomerConflict)
	assert.Equal(t, "cus_original", next.ProviderCustomerID)
	assert.Equal(t, "active", next.Status)
}

func TestMergeSubscriptionOldSubscriptionDoesNotDisplaceActiveOne(t *testing.T) {
	current := models.Entitlement{UserID: "u-1", ProviderSubscriptionID: "sub_new", Status: "active", IsPremium: true}

	out, res := mergeSubscription(current, SubscriptionWrite{
		UserID: "u-1", ProviderSubscriptionID: "sub_old", Status: entitlements.StatusCanceled,
	})
	assert.Equal(t, OutcomeSuperseded, res.Outcome)
	assert.Equal(t, current, out)

	// An entitling write for a new subscription always applies.
	next, res := mergeSubscription(current, SubscriptionWrite{
		UserID: "u-1", ProviderSubscriptionID: "sub_newer", Status: entitlements.StatusActive,
	})
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "sub_newer", next.ProviderSubscriptionID)
}

func TestMergeSubscriptionIsTotalOverwrite(t *testing.T) {
	current := models.Entitlement{UserID: "u-1", ProviderSubscriptionID: "sub_1", PlanID: "yearly", Status: "active", IsPremium: true}

	next, res := mergeSubscription(current, SubscriptionWrite{
		UserID: "u-1", ProviderSubscriptionID: "sub_1", Status: entitlements.StatusPastDue,
	})
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Empty(t, next.PlanID, "a write without a plan clears the previous one")
	assert.Equal(t, "past_due", next.Status)
	assert.False(t, next.IsPremium)
}

func TestMergeSubscriptionLateDeletionOfOldSubscription(t *testing.T) {
	current := models.Entitlement{UserID: "u-1", ProviderSubscriptionID: "sub_2", Status: "past_due"}

	out, res := mergeSubscription(current, SubscriptionWrite{
		UserID: "u-1", ProviderSubscriptionID: "sub_1", Status: entitlements.StatusCanceled, Deleted: true,
	})
	assert.Equal(t, OutcomeSuperseded, res.Outcome)
	assert.Equal(t, current, out)

	// Deleting the current subscription applies.
	next, res := mergeSubscription(current, SubscriptionWrite{
		UserID: "u-1", ProviderSubscriptionID: "sub_2", Status: entitlements.StatusCanceled, Deleted: true,
	})
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "canceled", next.Status)

	// A fresh record accepts any deletion.
	_, res = mergeSubscription(models.Entitlement{UserID: "u-1"}, SubscriptionWrite{
		UserID: "u-1", ProviderSubscriptionID: "sub_1", Status: entitlements.StatusCanceled, Deleted: true,
	})
	assert.Equal(t, OutcomeApplied, res.Outcome)
}

func TestClaimCustomer(t *testing.T) {
	w := SubscriptionWrite{UserID: "B", ProviderCustomerID: "cus_1"}

	got, taken := claimCustomer(models.Entitlement{UserID: "B"}, w, "A")
	assert.True(t, taken)
	assert.Empty(t, got.ProviderCustomerID)

	got, taken = claimCustomer(models.Entitlement{UserID: "B"}, w, "")
	assert.False(t, taken)
	assert.Equal(t, "cus_1", got.ProviderCustomerID)

	_, taken = claimCustomer(models.Entitlement{UserID: "B"}, w, "B")
	assert.False(t, taken)
}
