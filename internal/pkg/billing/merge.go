package billing

import (
	"strings"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
)

// ApplyResult reports what mergeSubscription decided.
type ApplyResult struct {
	Outcome Outcome
	// CustomerConflict is set when the write named a different customer than
	// the one already bound to the user. The stored customer is kept.
	CustomerConflict bool
}

// mergeSubscription computes the record that replaces current. It is the
// single place the write policy lives; repositories call it while holding
// the row lock.
func mergeSubscription(current models.Entitlement, w SubscriptionWrite) (models.Entitlement, ApplyResult) {
	if current.IsStaleFor(w.EventAt) {
		return current, ApplyResult{Outcome: OutcomeStale}
	}

	incomingSub := strings.TrimSpace(w.ProviderSubscriptionID)
	// A write for another subscription never displaces the current one when
	// it would revoke access or when it is that other subscription's deletion.
	if incomingSub != "" && current.ProviderSubscriptionID != "" && incomingSub != current.ProviderSubscriptionID {
		if w.Deleted || (current.IsPremium && !entitlements.IsPremium(w.Status)) {
			return current, ApplyResult{Outcome: OutcomeSuperseded}
		}
	}

	next := current
	res := ApplyResult{Outcome: OutcomeApplied}

	next.UserID = w.UserID
	next.Provider = models.BillingProviderStripe

	customer := strings.TrimSpace(w.ProviderCustomerID)
	switch {
	case current.ProviderCustomerID == "":
		next.ProviderCustomerID = customer
	case customer != "" && customer != current.ProviderCustomerID:
		res.CustomerConflict = true
	}

	next.ProviderSubscriptionID = incomingSub
	next.PlanID = strings.TrimSpace(w.PlanID)
	next.Status = string(entitlements.NormalizeStatus(string(w.Status)))
	next.CurrentPeriodEnd = w.CurrentPeriodEnd
	next.LastEventID = w.EventID
	if !w.EventAt.IsZero() {
		at := w.EventAt.UTC()
		next.LastEventAt = &at
	}
	next.Refresh()
	return next, res
}

// claimCustomer drops the customer id from w when owner, the user already
// bound to it, is someone else. It reports whether it did.
func claimCustomer(current models.Entitlement, w SubscriptionWrite, owner string) (SubscriptionWrite, bool) {
	if current.ProviderCustomerID != "" || owner == "" || owner == w.UserID {
		return w, false
	}
	w.ProviderCustomerID = ""
	return w, true
}
