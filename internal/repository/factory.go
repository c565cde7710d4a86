package repository

import (
	"github.com/sitequote/billing/internal/domain/notification"
	"github.com/sitequote/billing/internal/domain/quotation"
	"github.com/sitequote/billing/internal/domain/subscription"
	"github.com/sitequote/billing/internal/domain/tracking"
	"github.com/sitequote/billing/internal/domain/user"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/postgres"
	postgresRepo "github.com/sitequote/billing/internal/repository/postgres"
)

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return postgresRepo.NewUserRepository(db, logger)
}

func NewTrackingRepository(db *postgres.DB, logger *logger.Logger) tracking.Repository {
	return postgresRepo.NewTrackingRepository(db, logger)
}

func NewNotificationRepository(db *postgres.DB, logger *logger.Logger) notification.Repository {
	return postgresRepo.NewNotificationRepository(db, logger)
}

// NewQuotationRepositories returns one store per quotation category
func NewQuotationRepositories(db *postgres.DB, logger *logger.Logger) ([]quotation.Repository, error) {
	return postgresRepo.NewQuotationRepositories(db, logger)
}
