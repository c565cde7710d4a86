package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitequote/billing/internal/domain/subscription"
	"github.com/sitequote/billing/internal/domain/user"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/postgres"
	"github.com/sitequote/billing/internal/types"
)

const subscriptionColumns = `
	s.id,
	s.user_id,
	s.provider_subscription_id,
	s.quotation_id,
	s.quotation_type,
	s.monthly_cost,
	s.upgraded_cost,
	s.currency,
	s.status,
	s.created_at,
	s.updated_at,
	s.created_by,
	s.updated_by`

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id,
			user_id,
			provider_subscription_id,
			quotation_id,
			quotation_type,
			monthly_cost,
			upgraded_cost,
			currency,
			status,
			created_at,
			updated_at,
			created_by,
			updated_by
		) VALUES (
			:id,
			:user_id,
			:provider_subscription_id,
			:quotation_id,
			:quotation_type,
			:monthly_cost,
			:upgraded_cost,
			:currency,
			:status,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		WHERE s.id = $1 AND s.status = $2`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, id, types.StatusPublished); err != nil {
		return nil, wrapQueryError(err, "subscription", id, "Failed to get subscription")
	}
	return &sub, nil
}

// subscriptionWithUserRow flattens the user join into prefixed columns
type subscriptionWithUserRow struct {
	subscription.Subscription
	OwnerID    string `db:"owner_id"`
	OwnerName  string `db:"owner_name"`
	OwnerEmail string `db:"owner_email"`
	OwnerPhone string `db:"owner_phone"`
	OwnerRole  string `db:"owner_role"`
}

func (r *subscriptionRepository) GetWithUser(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `,
			u.id AS owner_id,
			u.name AS owner_name,
			u.email AS owner_email,
			u.phone AS owner_phone,
			u.role AS owner_role
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.status = $2`

	var row subscriptionWithUserRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, id, types.StatusPublished); err != nil {
		return nil, wrapQueryError(err, "subscription", id, "Failed to get subscription")
	}

	sub := row.Subscription
	sub.User = &user.User{
		ID:    row.OwnerID,
		Name:  row.OwnerName,
		Email: row.OwnerEmail,
		Phone: row.OwnerPhone,
		Role:  row.OwnerRole,
	}
	return &sub, nil
}

type appliedCostRow struct {
	subscription.Subscription
	AppliedDelta decimal.Decimal `db:"applied_delta"`
}

// ApplyMonthlyCost reads the previous monthly cost through a self join so the
// delta and both columns change in one statement
func (r *subscriptionRepository) ApplyMonthlyCost(ctx context.Context, id string, amount decimal.Decimal) (*subscription.Subscription, decimal.Decimal, error) {
	query := `
		UPDATE subscriptions AS s
		SET
			upgraded_cost = s.upgraded_cost + ($2::numeric - prev.monthly_cost),
			monthly_cost = $2::numeric,
			updated_at = $3,
			updated_by = $4
		FROM subscriptions AS prev
		WHERE s.id = $1 AND prev.id = s.id AND s.status = $5
		RETURNING ` + subscriptionColumns + `,
			($2::numeric - prev.monthly_cost) AS applied_delta`

	var row appliedCostRow
	err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query,
		id,
		amount,
		time.Now().UTC(),
		types.GetUserID(ctx),
		types.StatusPublished,
	)
	if err != nil {
		return nil, decimal.Zero, wrapQueryError(err, "subscription", id, "Failed to update subscription monthly cost")
	}

	r.logger.Debugw("applied monthly cost",
		"subscription_id", id,
		"monthly_cost", row.MonthlyCost,
		"upgraded_cost", row.UpgradedCost,
		"delta", row.AppliedDelta,
	)

	sub := row.Subscription
	return &sub, row.AppliedDelta, nil
}

func (r *subscriptionRepository) IncrementUpgradedCost(ctx context.Context, id string, amount decimal.Decimal) (*subscription.Subscription, error) {
	query := `
		UPDATE subscriptions AS s
		SET
			upgraded_cost = s.upgraded_cost + $2::numeric,
			updated_at = $3,
			updated_by = $4
		WHERE s.id = $1 AND s.status = $5
		RETURNING ` + subscriptionColumns

	var sub subscription.Subscription
	err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query,
		id,
		amount,
		time.Now().UTC(),
		types.GetUserID(ctx),
		types.StatusPublished,
	)
	if err != nil {
		return nil, wrapQueryError(err, "subscription", id, "Failed to increment subscription upgraded cost")
	}
	return &sub, nil
}
