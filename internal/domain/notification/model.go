package notification

import (
	"context"
	"time"

	"github.com/sitequote/billing/internal/types"
)

type Notification struct {
	ID         string                 `db:"id" json:"id"`
	UserID     string                 `db:"user_id" json:"user_id"`
	QuoteType  types.QuotationType    `db:"quote_type" json:"quote_type"`
	QuoteID    string                 `db:"quote_id" json:"quote_id"`
	Type       types.NotificationType `db:"type" json:"type"`
	StatusSeen bool                   `db:"status_seen" json:"status_seen"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`
}

func NewNotification(userID string, quoteType types.QuotationType, quoteID string, notificationType types.NotificationType) *Notification {
	return &Notification{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION),
		UserID:     userID,
		QuoteType:  quoteType,
		QuoteID:    quoteID,
		Type:       notificationType,
		StatusSeen: false,
		CreatedAt:  time.Now().UTC(),
	}
}

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string) ([]*Notification, error)
}
