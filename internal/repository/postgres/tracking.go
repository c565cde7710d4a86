package postgres

import (
	"context"

	"github.com/sitequote/billing/internal/domain/tracking"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/postgres"
)

type trackingRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewTrackingRepository(db *postgres.DB, logger *logger.Logger) tracking.Repository {
	return &trackingRepository{db: db, logger: logger}
}

func (r *trackingRepository) Create(ctx context.Context, t *tracking.Tracking) error {
	query := `
		INSERT INTO trackings (id, subscription_id, status, note, created_at, created_by)
		VALUES (:id, :subscription_id, :status, :note, :created_at, :created_by)
	`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, t); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create tracking event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *trackingRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*tracking.Tracking, error) {
	query := `SELECT id, subscription_id, status, note, created_at, created_by
		FROM trackings
		WHERE subscription_id = $1
		ORDER BY created_at ASC, id ASC`

	events := []*tracking.Tracking{}
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &events, query, subscriptionID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list tracking events").
			WithReportableDetails(map[string]any{
				"subscription_id": subscriptionID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return events, nil
}
