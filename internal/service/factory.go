package service

import (
	"github.com/sitequote/billing/internal/cache"
	"github.com/sitequote/billing/internal/config"
	"github.com/sitequote/billing/internal/domain/billing"
	"github.com/sitequote/billing/internal/domain/notification"
	"github.com/sitequote/billing/internal/domain/subscription"
	"github.com/sitequote/billing/internal/domain/tracking"
	"github.com/sitequote/billing/internal/domain/user"
	"github.com/sitequote/billing/internal/idempotency"
	"github.com/sitequote/billing/internal/locker"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/postgres"
	"github.com/sitequote/billing/internal/publisher"
	"github.com/sitequote/billing/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger      *logger.Logger
	Config      *config.Configuration
	DB          postgres.IClient
	Sentry      *sentry.Service
	Cache       cache.Cache
	Locker      locker.Locker
	Idempotency *idempotency.Generator

	// Repositories
	SubRepo          subscription.Repository
	UserRepo         user.Repository
	TrackingRepo     tracking.Repository
	NotificationRepo notification.Repository

	// Billing provider
	BillingProvider billing.Provider

	// Publishers
	EventPublisher publisher.EventPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentrySvc *sentry.Service,
	cache cache.Cache,
	locker locker.Locker,
	subRepo subscription.Repository,
	userRepo user.Repository,
	trackingRepo tracking.Repository,
	notificationRepo notification.Repository,
	billingProvider billing.Provider,
	eventPublisher publisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		Sentry:           sentrySvc,
		Cache:            cache,
		Locker:           locker,
		Idempotency:      idempotency.NewGenerator(),
		SubRepo:          subRepo,
		UserRepo:         userRepo,
		TrackingRepo:     trackingRepo,
		NotificationRepo: notificationRepo,
		BillingProvider:  billingProvider,
		EventPublisher:   eventPublisher,
	}
}
