package tracking

import (
	"context"
	"time"

	"github.com/sitequote/billing/internal/types"
)

// Tracking is one status event in a subscription's history. Append-only.
type Tracking struct {
	ID             string    `db:"id" json:"id"`
	SubscriptionID string    `db:"subscription_id" json:"subscription_id"`
	Status         string    `db:"status" json:"status"`
	Note           string    `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	CreatedBy      string    `db:"created_by" json:"created_by"`
}

func NewTracking(ctx context.Context, subscriptionID, status, note string) *Tracking {
	return &Tracking{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRACKING),
		SubscriptionID: subscriptionID,
		Status:         status,
		Note:           note,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      types.GetUserID(ctx),
	}
}

type Repository interface {
	Create(ctx context.Context, t *Tracking) error
	// ListBySubscription returns events oldest first, empty when there are none
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*Tracking, error)
}
