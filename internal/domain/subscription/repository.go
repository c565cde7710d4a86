package subscription

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetWithUser is Get with the owning user joined
	GetWithUser(ctx context.Context, id string) (*Subscription, error)

	// ApplyMonthlyCost sets monthly_cost to amount and moves upgraded_cost by
	// the same delta in a single statement. Returns the updated record and
	// the applied delta.
	ApplyMonthlyCost(ctx context.Context, id string, amount decimal.Decimal) (*Subscription, decimal.Decimal, error)

	// IncrementUpgradedCost atomically adds amount to upgraded_cost
	IncrementUpgradedCost(ctx context.Context, id string, amount decimal.Decimal) (*Subscription, error)
}
