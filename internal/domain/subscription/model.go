package subscription

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sitequote/billing/internal/domain/user"
	"github.com/sitequote/billing/internal/types"
)

// Subscription is the local record of a customer's recurring billing
// subscription. MonthlyCost is the current recurring charge in main currency
// units. UpgradedCost is the cumulative ledger of recurring cost deltas and
// one-off service fees.
type Subscription struct {
	ID                     string              `db:"id" json:"id"`
	UserID                 string              `db:"user_id" json:"user_id"`
	ProviderSubscriptionID string              `db:"provider_subscription_id" json:"provider_subscription_id"`
	QuotationID            string              `db:"quotation_id" json:"quotation_id"`
	QuotationType          types.QuotationType `db:"quotation_type" json:"quotation_type"`
	MonthlyCost            decimal.Decimal     `db:"monthly_cost" json:"monthly_cost"`
	UpgradedCost           decimal.Decimal     `db:"upgraded_cost" json:"upgraded_cost"`
	Currency               string              `db:"currency" json:"currency"`

	// User is populated by GetWithUser only
	User *user.User `db:"-" json:"user,omitempty"`

	types.BaseModel
}

// NewSubscription seeds a subscription whose ledger starts at the initial
// monthly cost
func NewSubscription(ctx context.Context, userID, providerSubscriptionID, quotationID string, quotationType types.QuotationType, monthlyCost decimal.Decimal) *Subscription {
	return &Subscription{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:                 userID,
		ProviderSubscriptionID: providerSubscriptionID,
		QuotationID:            quotationID,
		QuotationType:          quotationType,
		MonthlyCost:            monthlyCost,
		UpgradedCost:           monthlyCost,
		Currency:               types.DefaultCurrency,
		BaseModel:              types.GetDefaultBaseModel(ctx),
	}
}
