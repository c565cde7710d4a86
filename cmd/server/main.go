package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitequote/billing/internal/api"
	v1 "github.com/sitequote/billing/internal/api/v1"
	"github.com/sitequote/billing/internal/cache"
	"github.com/sitequote/billing/internal/config"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/integration/stripe"
	"github.com/sitequote/billing/internal/locker"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/postgres"
	"github.com/sitequote/billing/internal/publisher"
	"github.com/sitequote/billing/internal/pubsub"
	"github.com/sitequote/billing/internal/pubsub/memory"
	"github.com/sitequote/billing/internal/repository"
	"github.com/sitequote/billing/internal/sentry"
	"github.com/sitequote/billing/internal/service"
	"github.com/sitequote/billing/internal/types"
	"github.com/sitequote/billing/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		// Request validation is package level state
		fx.Invoke(validator.NewValidator),
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			provideDBClient,

			// Locking
			locker.NewLocker,

			// Outbound notifications
			memory.NewPubSub,
			provideSubscriber,
			publisher.NewEventPublisher,

			// Billing provider
			stripe.NewClient,
			stripe.NewProvider,

			// Repositories
			repository.NewUserRepository,
			repository.NewSubscriptionRepository,
			repository.NewTrackingRepository,
			repository.NewNotificationRepository,
			repository.NewQuotationRepositories,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewQuotationResolver,
			service.NewChangeNotifier,
			service.NewBillingSyncService,
			service.NewServiceFeeService,
			service.NewSubscriptionDetailService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideDBClient(db *postgres.DB) postgres.IClient {
	return db
}

func provideSubscriber(ps pubsub.PubSub) pubsub.Subscriber {
	return ps
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	db *postgres.DB,
	subscriber pubsub.Subscriber,
	detailService service.SubscriptionDetailService,
	billingSyncService service.BillingSyncService,
	serviceFeeService service.ServiceFeeService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(db, logger),
		Subscription: v1.NewSubscriptionHandler(detailService, billingSyncService, serviceFeeService, logger),
		Notification: v1.NewNotificationHandler(subscriber, cfg, logger),
	}
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	db *postgres.DB,
	ps pubsub.PubSub,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := ps.Close(); err != nil {
				log.Errorw("failed to close pubsub", "error", err)
			}
			db.Close()
			return nil
		},
	})
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !ierr.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}
