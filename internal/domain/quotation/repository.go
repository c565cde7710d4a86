package quotation

import (
	"context"

	"github.com/sitequote/billing/internal/types"
)

// Repository is the store of one quotation category
type Repository interface {
	Category() types.QuotationType
	Get(ctx context.Context, id string) (*Quotation, error)
	Create(ctx context.Context, q *Quotation) error
	UpdateCostDetails(ctx context.Context, id string, details CostDetails) error
}
