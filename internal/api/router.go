package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/sitequote/billing/internal/api/v1"
	"github.com/sitequote/billing/internal/config"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/rest/middleware"
	"github.com/sitequote/billing/internal/types"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscription *v1.SubscriptionHandler
	Notification *v1.NotificationHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CORSMiddleware,
		middleware.RequestIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.ActorMiddleware)

	subscriptions := v1Group.Group("/subscriptions")
	{
		subscriptions.GET("/:id/detail", handlers.Subscription.GetSubscriptionDetail)
		subscriptions.PUT("/:id/cost", handlers.Subscription.UpdateCost)
		subscriptions.POST("/:id/service-fee", handlers.Subscription.ChargeServiceFee)
	}

	notifications := v1Group.Group("/notifications")
	{
		notifications.GET("/stream", handlers.Notification.Stream)
	}

	return router
}
