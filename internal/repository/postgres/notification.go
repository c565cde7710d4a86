package postgres

import (
	"context"

	"github.com/sitequote/billing/internal/domain/notification"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/postgres"
)

type notificationRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewNotificationRepository(db *postgres.DB, logger *logger.Logger) notification.Repository {
	return &notificationRepository{db: db, logger: logger}
}

func (r *notificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, quote_type, quote_id, type, status_seen, created_at)
		VALUES (:id, :user_id, :quote_type, :quote_id, :type, :status_seen, :created_at)
	`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, n); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create notification").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	query := `SELECT id, user_id, quote_type, quote_id, type, status_seen, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`

	notifications := []*notification.Notification{}
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list notifications").
			Mark(ierr.ErrDatabase)
	}
	return notifications, nil
}
